package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp is returned when no known wire shape matches.
var ErrBadTimestamp = errors.New("unrecognized timestamp shape")

// epochMillisCutoff separates second-precision epochs from millisecond ones.
// Anything at or above it is treated as milliseconds (~Sep 2001 in ms,
// year ~33658 in seconds, so the ranges never collide for real data).
const epochMillisCutoff = 1e12

// Timestamp wraps time.Time and accepts the four wire shapes a message
// time arrives in: an RFC3339-ish string, a numeric epoch (seconds or
// milliseconds), and a {seconds, nanoseconds} object. All values normalize
// to UTC so comparisons are stable across delivery paths.
type Timestamp struct {
	time.Time
}

// NewTimestamp builds a Timestamp from a time.Time, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC()}
}

type secondsNanos struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseTimeString(s)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil

	case '{':
		var sn secondsNanos
		if err := json.Unmarshal(data, &sn); err != nil {
			return fmt.Errorf("%w: %s", ErrBadTimestamp, data)
		}
		t.Time = time.Unix(sn.Seconds, sn.Nanoseconds).UTC()
		return nil

	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrBadTimestamp, data)
		}
		t.Time = fromEpoch(f).UTC()
		return nil
	}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// Normalize converts any supported in-memory timestamp shape into a UTC
// time.Time. It is idempotent: normalizing an already-normalized value
// returns the same instant.
func Normalize(v interface{}) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x.UTC(), nil
	case Timestamp:
		return x.Time.UTC(), nil
	case *Timestamp:
		return x.Time.UTC(), nil
	case int64:
		return fromEpoch(float64(x)).UTC(), nil
	case int:
		return fromEpoch(float64(x)).UTC(), nil
	case float64:
		return fromEpoch(x).UTC(), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrBadTimestamp, v)
		}
		return fromEpoch(f).UTC(), nil
	case string:
		parsed, err := parseTimeString(x)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	case map[string]interface{}:
		sec, okS := numberField(x, "seconds")
		if !okS {
			return time.Time{}, fmt.Errorf("%w: %v", ErrBadTimestamp, v)
		}
		nanos, _ := numberField(x, "nanoseconds")
		return time.Unix(int64(sec), int64(nanos)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrBadTimestamp, v)
	}
}

func fromEpoch(f float64) time.Time {
	if math.Abs(f) >= epochMillisCutoff {
		return time.UnixMilli(int64(f))
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, nil
		}
	}
	// Numeric epoch delivered as a string.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
