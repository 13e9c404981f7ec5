package poller

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dormworry/dormclient/internal/config"
	"github.com/dormworry/dormclient/internal/domain"
	"github.com/dormworry/dormclient/internal/reconcile"
	"github.com/dormworry/dormclient/pkg/log"
)

// Fetcher retrieves the newest messages for a room. Satisfied by
// *api.Client.
type Fetcher interface {
	LatestMessages(ctx context.Context, roomID string, limit int) ([]domain.IncomingMessage, error)
}

// Applier runs fetched batches through the reconciliation policy.
// Satisfied by *reconcile.Reconciler.
type Applier interface {
	ApplyBatch(roomID string, batch []domain.IncomingMessage, source reconcile.Source) int
}

type roomPoll struct {
	cancel     context.CancelFunc
	lastNewest string
	ticks      int
}

// Poller is the fallback delivery path: while a room is active it
// periodically re-fetches the newest messages and reconciles them, so the
// timeline self-heals when the push channel silently drops events.
//
// To avoid amplifying chatter, a tick whose newest fetched id matches the
// previous tick's is skipped, except for a forced refresh every K ticks.
type Poller struct {
	cfg   config.PollConfig
	fetch Fetcher
	apply Applier
	sf    singleflight.Group

	mu    sync.Mutex
	rooms map[string]*roomPoll
}

func New(cfg config.PollConfig, fetch Fetcher, apply Applier) *Poller {
	return &Poller{
		cfg:   cfg,
		fetch: fetch,
		apply: apply,
		rooms: make(map[string]*roomPoll),
	}
}

// Activate starts polling a room. Activating an already-active room is a
// no-op.
func (p *Poller) Activate(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, active := p.rooms[roomID]; active {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.rooms[roomID] = &roomPoll{cancel: cancel}

	go p.run(ctx, roomID)
	log.L().Debug().Str(log.FieldRoomID, roomID).Msg("polling activated")
}

// Deactivate stops polling a room and cancels any in-flight fetch for it.
func (p *Poller) Deactivate(roomID string) {
	p.mu.Lock()
	state, active := p.rooms[roomID]
	if active {
		delete(p.rooms, roomID)
	}
	p.mu.Unlock()

	if active {
		state.cancel()
		log.L().Debug().Str(log.FieldRoomID, roomID).Msg("polling deactivated")
	}
}

// Active reports whether a room is being polled.
func (p *Poller) Active(roomID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, active := p.rooms[roomID]
	return active
}

// Close stops all room polls.
func (p *Poller) Close() {
	p.mu.Lock()
	states := make([]*roomPoll, 0, len(p.rooms))
	for roomID, state := range p.rooms {
		states = append(states, state)
		delete(p.rooms, roomID)
	}
	p.mu.Unlock()

	for _, state := range states {
		state.cancel()
	}
}

func (p *Poller) run(ctx context.Context, roomID string) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, roomID)
		}
	}
}

// pollOnce performs one tick: fetch, decide, reconcile. Returns how many
// messages changed the cache; -1 means the tick was skipped.
func (p *Poller) pollOnce(ctx context.Context, roomID string) int {
	batch, err := p.fetchBatch(ctx, roomID)
	if err != nil {
		if ctx.Err() == nil {
			log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("poll fetch failed")
		}
		return -1
	}

	// The room may have been deactivated while the fetch was in flight;
	// dropping the result here keeps a leaked response from mutating a
	// timeline the user already left.
	p.mu.Lock()
	state, active := p.rooms[roomID]
	if !active {
		p.mu.Unlock()
		return -1
	}
	state.ticks++
	newest := newestID(batch)
	forced := p.cfg.ForceRefreshEvery > 0 && state.ticks%p.cfg.ForceRefreshEvery == 0
	unchanged := newest != "" && newest == state.lastNewest
	state.lastNewest = newest
	p.mu.Unlock()

	if unchanged && !forced {
		return -1
	}

	return p.apply.ApplyBatch(roomID, batch, reconcile.SourcePoll)
}

// fetchBatch collapses concurrent fetches for the same room into one
// request.
func (p *Poller) fetchBatch(ctx context.Context, roomID string) ([]domain.IncomingMessage, error) {
	result, err, _ := p.sf.Do(roomID, func() (interface{}, error) {
		return p.fetch.LatestMessages(ctx, roomID, p.cfg.Limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.IncomingMessage), nil
}

func newestID(batch []domain.IncomingMessage) string {
	if len(batch) == 0 {
		return ""
	}
	return batch[len(batch)-1].ID
}
