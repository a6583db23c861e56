package pagination

import (
	"strconv"
	"strings"
	"time"

	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/domain/apperr"
	"github.com/okian/tagtrail/internal/domain/model"
)

const opCursor = "pagination.cursor"

// cursorSep separates the timestamp from the tie-break id.
const cursorSep = "|"

// ParseLimit reads a limit query value the lenient way: leading digits are
// used, anything else yields zero, which Clamp turns into the default.
func ParseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) {
		c := raw[end]
		if (c >= '0' && c <= '9') || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0
	}
	return n
}

// Clamp coerces n into [1, max]. Zero means def.
func Clamp(n, def, max int) int {
	switch {
	case n == 0:
		n = def
	case n < 1:
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}

// EncodeCursor renders the position of the last item of a page.
func EncodeCursor(lastSeen time.Time, id string) string {
	return model.FormatTimestamp(lastSeen) + cursorSep + id
}

// ParseCursor decodes a cursor. An empty string is no cursor. A bare
// timestamp is accepted and resumes strictly older than it. The timestamp
// never contains the separator, so everything after the first one is the id.
func ParseCursor(raw string) (*docstore.Cursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, id := raw, ""
	if i := strings.Index(raw, cursorSep); i >= 0 {
		ts, id = raw[:i], raw[i+len(cursorSep):]
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, apperr.New(opCursor, apperr.ErrValidation, "invalid startAfter cursor %q", raw)
	}
	return &docstore.Cursor{Value: model.Normalize(t), ID: id}, nil
}
