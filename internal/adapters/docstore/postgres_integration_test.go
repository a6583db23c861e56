//go:build integration

package docstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/tagtrail/internal/adapters/docstore"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tagtrail"),
		tcpostgres.WithUsername("tagtrail"),
		tcpostgres.WithPassword("tagtrail"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, docstore.Migrate(dsn))
	// A second run is a no-op.
	require.NoError(t, docstore.Migrate(dsn))
	return dsn
}

func TestPostgresStore(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	store, err := docstore.NewPostgresStore(ctx, dsn, docstore.WithMaxAttempts(50), docstore.WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(ctx))

	t.Run("merge and mutators", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, docstore.Write{Collection: "stats", ID: "u1", Data: docstore.Document{
			"platform": "ios",
			"lastSeen": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}}))
		require.NoError(t, store.Set(ctx, docstore.Write{Collection: "stats", ID: "u1", Merge: true, Data: docstore.Document{
			"pageViews": docstore.Increment(2),
			"history":   docstore.ArrayAppend("t1"),
		}}))

		snap, err := store.Get(ctx, "stats", "u1")
		require.NoError(t, err)
		require.True(t, snap.Exists)

		var got struct {
			Platform  string   `json:"platform"`
			PageViews int64    `json:"pageViews"`
			History   []string `json:"history"`
		}
		require.NoError(t, snap.DataTo(&got))
		require.Equal(t, "ios", got.Platform)
		require.Equal(t, int64(2), got.PageViews)
		require.Equal(t, []string{"t1"}, got.History)
	})

	t.Run("concurrent create and increment", func(t *testing.T) {
		const n = 40
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
					snap, err := tx.Get(ctx, "tags", "beef")
					if err != nil {
						return err
					}
					entry := map[string]any{"deviceId": fmt.Sprintf("d%d", i)}
					if !snap.Exists {
						tx.Set(docstore.Write{Collection: "tags", ID: "beef", Data: docstore.Document{
							"scanCount": int64(1),
							"history":   []any{entry},
							"lastSeen":  docstore.ServerTimestamp(),
						}})
						return nil
					}
					tx.Set(docstore.Write{Collection: "tags", ID: "beef", Merge: true, Data: docstore.Document{
						"scanCount": docstore.Increment(1),
						"history":   docstore.ArrayAppend(entry),
						"lastSeen":  docstore.ServerTimestamp(),
					}})
					return nil
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		snap, err := store.Get(ctx, "tags", "beef")
		require.NoError(t, err)
		var got struct {
			ScanCount int64            `json:"scanCount"`
			History   []map[string]any `json:"history"`
		}
		require.NoError(t, snap.DataTo(&got))
		require.Equal(t, int64(n), got.ScanCount)
		require.Len(t, got.History, n)
	})

	t.Run("ordered pages with tie-break", func(t *testing.T) {
		base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		ids := []string{"p1", "p2", "p3", "p4", "p5"}
		for i, id := range ids {
			ts := base.Add(time.Duration(len(ids)-i) * time.Second)
			if id == "p3" {
				ts = base.Add(4 * time.Second) // same as p2
			}
			require.NoError(t, store.Set(ctx, docstore.Write{Collection: "pages", ID: id, Data: docstore.Document{"lastSeen": ts}}))
		}

		var (
			seen   []string
			cursor *docstore.Cursor
		)
		for {
			page, err := store.Query(ctx, docstore.Query{Collection: "pages", OrderBy: "lastSeen", Limit: 2, After: cursor})
			require.NoError(t, err)
			for _, s := range page {
				seen = append(seen, s.ID)
			}
			if len(page) < 2 {
				break
			}
			last := page[len(page)-1]
			var row struct {
				LastSeen time.Time `json:"lastSeen"`
			}
			require.NoError(t, last.DataTo(&row))
			cursor = &docstore.Cursor{Value: row.LastSeen, ID: last.ID}
		}
		require.Equal(t, ids, seen)

		_, err := store.Query(ctx, docstore.Query{Collection: "pages", OrderBy: "firstSeen", Limit: 2})
		require.ErrorIs(t, err, docstore.ErrInvalidQuery)
	})
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	_, err = conn.Exec(ctx, `UPDATE schema_migrations SET dirty = true`)
	require.NoError(t, err)

	require.ErrorIs(t, docstore.Migrate(dsn), docstore.ErrDirtySchema)
}
