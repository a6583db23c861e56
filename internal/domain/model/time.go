package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp is returned when an event timestamp cannot be interpreted.
var ErrBadTimestamp = errors.New("unparsable timestamp")

// Representable range of a persisted timestamp: years 0 through 9999.
var (
	minTimestamp = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(9999, time.December, 31, 23, 59, 59, 999_999_000, time.UTC)
)

// Precision is the resolution every persisted timestamp is truncated to.
const Precision = time.Microsecond

// Normalize converts t to UTC at storage precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// ParseTimestamp accepts RFC 3339 strings, epoch milliseconds as a JSON
// number or a numeric string, and time.Time values.
func ParseTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return checkRange(Normalize(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, fmt.Errorf("%w: empty", ErrBadTimestamp)
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return checkRange(Normalize(t))
		}
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			return fromMillis(ms)
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	case json.Number:
		ms, err := x.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, x.String())
		}
		return fromMillis(ms)
	case float64:
		return fromMillis(x)
	case int64:
		return fromMillis(float64(x))
	case int:
		return fromMillis(float64(x))
	case nil:
		return time.Time{}, fmt.Errorf("%w: missing", ErrBadTimestamp)
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrBadTimestamp, v)
	}
}

func fromMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) ||
		ms < float64(minTimestamp.UnixMilli()) || ms > float64(maxTimestamp.UnixMilli()) {
		return time.Time{}, fmt.Errorf("%w: %v out of range", ErrBadTimestamp, ms)
	}
	return Normalize(time.UnixMicro(int64(math.Round(ms * 1000)))), nil
}

func checkRange(t time.Time) (time.Time, error) {
	if t.Before(minTimestamp) || t.After(maxTimestamp) {
		return time.Time{}, fmt.Errorf("%w: %s out of range", ErrBadTimestamp, t.Format(time.RFC3339))
	}
	return t, nil
}

// FormatTimestamp renders t the way every API response does.
func FormatTimestamp(t time.Time) string {
	return Normalize(t).Format(time.RFC3339Nano)
}
