package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// increment adds N to the stored number, treating a missing field as zero.
type increment struct{ n int64 }

// arrayAppend appends values to the stored array, treating a missing field as empty.
type arrayAppend struct{ values []any }

// serverTimestamp resolves to the commit time.
type serverTimestamp struct{}

// Increment returns a mutator adding n to a numeric field.
func Increment(n int64) any { return increment{n: n} }

// ArrayAppend returns a mutator appending values to an array field.
func ArrayAppend(values ...any) any { return arrayAppend{values: values} }

// ServerTimestamp returns a mutator that stores the commit time.
func ServerTimestamp() any { return serverTimestamp{} }

// apply resolves w.Data against current and returns the new document.
func apply(current Document, w Write, now time.Time) (Document, error) {
	if !w.Merge || current == nil {
		current = Document{}
	} else {
		current = cloneDoc(current)
	}
	if err := mergeInto(current, w.Data, now); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrInvalidWrite, w.Collection, w.ID, err)
	}
	return current, nil
}

func mergeInto(dst, src Document, now time.Time) error {
	for k, v := range src {
		switch x := v.(type) {
		case increment:
			sum, err := addNumber(dst[k], x.n)
			if err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			dst[k] = sum
		case arrayAppend:
			arr, err := asArray(dst[k])
			if err != nil {
				return fmt.Errorf("field %s: %w", k, err)
			}
			for _, item := range x.values {
				arr = append(arr, resolveValue(item, now))
			}
			dst[k] = arr
		case serverTimestamp:
			dst[k] = now
		case Document:
			if err := mergeMap(dst, k, x, now); err != nil {
				return err
			}
		case map[string]any:
			if err := mergeMap(dst, k, Document(x), now); err != nil {
				return err
			}
		default:
			dst[k] = resolveValue(v, now)
		}
	}
	return nil
}

func mergeMap(dst Document, k string, src Document, now time.Time) error {
	var child Document
	switch existing := dst[k].(type) {
	case Document:
		child = existing
	case map[string]any:
		child = Document(existing)
	default:
		child = Document{}
	}
	if err := mergeInto(child, src, now); err != nil {
		return err
	}
	dst[k] = map[string]any(child)
	return nil
}

// resolveValue replaces mutators nested in plain values and copies containers.
func resolveValue(v any, now time.Time) any {
	switch x := v.(type) {
	case serverTimestamp:
		return now
	case increment:
		return x.n
	case arrayAppend:
		out := make([]any, len(x.values))
		for i, item := range x.values {
			out[i] = resolveValue(item, now)
		}
		return out
	case Document:
		return resolveValue(map[string]any(x), now)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = resolveValue(item, now)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = resolveValue(item, now)
		}
		return out
	default:
		return v
	}
}

func addNumber(v any, n int64) (any, error) {
	switch x := v.(type) {
	case nil:
		return n, nil
	case int64:
		return x + n, nil
	case int:
		return int64(x) + n, nil
	case int32:
		return int64(x) + n, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x) + n, nil
		}
		return x + float64(n), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i + n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f + float64(n), nil
	default:
		return nil, fmt.Errorf("cannot increment %T", v)
	}
}

func asArray(v any) ([]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return x, nil
	default:
		return nil, fmt.Errorf("cannot append to %T", v)
	}
}

func cloneDoc(d Document) Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Document:
		return map[string]any(cloneDoc(x))
	case map[string]any:
		return map[string]any(cloneDoc(Document(x)))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// orderValue extracts the order field as a time.
func orderValue(d Document, field string) (time.Time, bool) {
	switch x := d[field].(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		return t, err == nil
	default:
		return time.Time{}, false
	}
}

// after reports whether (ts, id) sorts after c in (ts DESC, id ASC) order.
func after(ts time.Time, id string, c *Cursor) bool {
	if c == nil {
		return true
	}
	if ts.Before(c.Value) {
		return true
	}
	return c.ID != "" && ts.Equal(c.Value) && id > c.ID
}
