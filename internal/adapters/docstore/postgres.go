package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresBackend = "postgres"

var _ Store = (*PostgresStore)(nil)

// SQLSTATE codes treated as a retryable conflict.
var conflictCodes = map[string]struct{}{ //nolint:gochecknoglobals // static lookup
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"23505": {}, // unique_violation: concurrent create of the same document
}

// PostgresStore keeps documents as JSONB rows in a single table. Transaction
// reads lock their rows with SELECT ... FOR UPDATE; creating a document that
// was read as absent uses a plain INSERT so a concurrent creator surfaces as
// a unique violation and the transaction is retried.
type PostgresStore struct {
	pool  *pgxpool.Pool
	opts  options
	retry retryPolicy
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newPostgresStore(pool, o), nil
}

// NewPostgresStoreFromPool wraps an existing pool. Close closes the pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newPostgresStore(pool, o)
}

func newPostgresStore(pool *pgxpool.Pool, o options) *PostgresStore {
	return &PostgresStore{
		pool:  pool,
		opts:  o,
		retry: retryPolicy{attempts: o.attempts, base: o.backoff, backend: postgresBackend},
	}
}

func (s *PostgresStore) now() time.Time {
	return s.opts.now().UTC().Truncate(time.Microsecond)
}

// Get reads one document without locking it.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	defer observe(postgresBackend, "get", time.Now())
	return readDoc(ctx, s.pool, collection, id, false)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readDoc(ctx context.Context, q querier, collection, id string, lock bool) (*Snapshot, error) {
	sql := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	err := q.QueryRow(ctx, sql, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Snapshot{ID: id}, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	data, err := decodeDoc(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &Snapshot{ID: id, Exists: true, Data: data}, nil
}

func decodeDoc(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return d, nil
}

// Set applies a single write.
func (s *PostgresStore) Set(ctx context.Context, w Write) error {
	return s.Batch(ctx, []Write{w})
}

// Batch applies every write inside one database transaction.
func (s *PostgresStore) Batch(ctx context.Context, writes []Write) error {
	defer observe(postgresBackend, "batch", time.Now())
	return s.retry.run(ctx, "docstore.postgres.batch", func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			return s.commitWrites(ctx, tx, make(map[docKey]*pgState), writes)
		})
	})
}

type pgState struct {
	exists bool
	data   Document
}

type pgTx struct {
	tx     pgx.Tx
	known  map[docKey]*pgState
	writes []Write
}

func (t *pgTx) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	snap, err := readDoc(ctx, t.tx, collection, id, true)
	if err != nil {
		return nil, err
	}
	t.known[docKey{collection, id}] = &pgState{exists: snap.Exists, data: snap.Data}
	return &Snapshot{ID: id, Exists: snap.Exists, Data: cloneDoc(snap.Data)}, nil
}

func (t *pgTx) Set(w Write) {
	t.writes = append(t.writes, w)
}

// RunTransaction runs fn inside a database transaction and retries it on
// serialization failures, deadlocks and concurrent creates.
func (s *PostgresStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	defer observe(postgresBackend, "transaction", time.Now())
	return s.retry.run(ctx, "docstore.postgres.tx", func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			ptx := &pgTx{tx: tx, known: make(map[docKey]*pgState)}
			if err := fn(ctx, ptx); err != nil {
				return err
			}
			return s.commitWrites(ctx, tx, ptx.known, ptx.writes)
		})
	})
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

func (s *PostgresStore) commitWrites(ctx context.Context, tx pgx.Tx, known map[docKey]*pgState, writes []Write) error {
	now := s.now()
	for _, w := range writes {
		if w.Collection == "" || w.ID == "" {
			return fmt.Errorf("%w: collection and id are required", ErrInvalidWrite)
		}
		k := docKey{w.Collection, w.ID}
		st, ok := known[k]
		if !ok {
			snap, err := readDoc(ctx, tx, w.Collection, w.ID, true)
			if err != nil {
				return err
			}
			st = &pgState{exists: snap.Exists, data: snap.Data}
			known[k] = st
		}
		next, err := apply(st.data, w, now)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("%w: encode %s/%s: %w", ErrInvalidWrite, w.Collection, w.ID, err)
		}
		var orderTS pgtype.Timestamptz
		if ts, ok := orderValue(next, s.opts.orderField); ok {
			orderTS = pgtype.Timestamptz{Time: ts, Valid: true}
		}
		if st.exists {
			_, err = tx.Exec(ctx,
				`UPDATE documents SET data = $3, order_ts = $4, version = version + 1, updated_at = now()
				 WHERE collection = $1 AND id = $2`,
				w.Collection, w.ID, raw, orderTS)
		} else {
			_, err = tx.Exec(ctx,
				`INSERT INTO documents (collection, id, data, order_ts) VALUES ($1, $2, $3, $4)`,
				w.Collection, w.ID, raw, orderTS)
		}
		if err != nil {
			return err
		}
		st.exists, st.data = true, next
	}
	return nil
}

// Query reads one page ordered by (order field DESC, id ASC).
func (s *PostgresStore) Query(ctx context.Context, q Query) ([]*Snapshot, error) {
	defer observe(postgresBackend, "query", time.Now())
	if q.Collection == "" || q.Limit < 1 {
		return nil, fmt.Errorf("%w: collection and positive limit are required", ErrInvalidQuery)
	}
	if q.OrderBy != s.opts.orderField {
		return nil, fmt.Errorf("%w: only %q is indexed, got %q", ErrInvalidQuery, s.opts.orderField, q.OrderBy)
	}

	sql := `SELECT id, data FROM documents WHERE collection = $1 AND order_ts IS NOT NULL`
	args := []any{q.Collection, q.Limit}
	switch {
	case q.After == nil:
	case q.After.ID == "":
		sql += ` AND order_ts < $3`
		args = append(args, q.After.Value)
	default:
		sql += ` AND (order_ts < $3 OR (order_ts = $3 AND id > $4))`
		args = append(args, q.After.Value, q.After.ID)
	}
	sql += ` ORDER BY order_ts DESC, id ASC LIMIT $2`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := decodeDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", q.Collection, id, err)
		}
		out = append(out, &Snapshot{ID: id, Exists: true, Data: data})
	}
	return out, rows.Err()
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// classify maps retryable SQLSTATEs onto ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := conflictCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}
