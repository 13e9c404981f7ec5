package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dormworry/dormclient/internal/domain"
)

// LatestMessages fetches the newest limit messages for a room, oldest
// first. This is the polling fallback's data source; results go through the
// reconciler exactly like socket deliveries.
func (c *Client) LatestMessages(ctx context.Context, roomID string, limit int) ([]domain.IncomingMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var messages []domain.IncomingMessage
	if err := c.get(ctx, "/delivery-rooms/"+roomID+"/messages", q, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
