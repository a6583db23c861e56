package pagination_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/okian/tagtrail/internal/adapters/docstore"
	"github.com/okian/tagtrail/internal/domain/model"
	"github.com/okian/tagtrail/internal/domain/pagination"
)

func TestProperty_PagesCoverEveryRecordOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// Offsets come from a narrow range so ties on lastSeen are common.
	properties.Property("following nextCursor yields each record exactly once in order", prop.ForAll(
		func(offsets []int, limit int) bool {
			ctx := context.Background()
			store := docstore.NewMemoryStore()
			for i, off := range offsets {
				err := store.Set(ctx, docstore.Write{Collection: model.CollectionStats, ID: fmt.Sprintf("u%03d", i), Data: docstore.Document{
					"lastSeen": base.Add(time.Duration(off) * time.Second),
				}})
				if err != nil {
					return false
				}
			}
			r := pagination.New(store, nil)

			seen := map[string]bool{}
			var prev *model.StatsRecord
			cursor := ""
			for pages := 0; pages <= len(offsets)+1; pages++ {
				page, err := r.ListStats(ctx, limit, cursor)
				if err != nil {
					return false
				}
				for i := range page.Data {
					rec := page.Data[i]
					if seen[rec.UID] {
						return false
					}
					seen[rec.UID] = true
					if prev != nil && (rec.LastSeen.After(prev.LastSeen) ||
						(rec.LastSeen.Equal(prev.LastSeen) && rec.UID < prev.UID)) {
						return false
					}
					prev = &rec
				}
				if page.NextCursor == nil {
					return len(seen) == len(offsets)
				}
				cursor = *page.NextCursor
			}
			return false
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.IntRange(1, 7),
	))

	properties.TestingRun(t)
}
