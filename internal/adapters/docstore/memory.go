package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/tagtrail/pkg/metrics"
)

const memoryBackend = "memory"

var _ Store = (*MemoryStore)(nil)

type memDoc struct {
	version uint64
	data    Document
}

type docKey struct {
	collection string
	id         string
}

// MemoryStore is an in-process Store. Transactions are optimistic: reads
// record document versions and the commit fails with ErrConflict if any of
// them moved.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]map[string]*memDoc
	opts   options
	retry  retryPolicy
	closed bool
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		docs:  make(map[string]map[string]*memDoc),
		opts:  o,
		retry: retryPolicy{attempts: o.attempts, base: o.backoff, backend: memoryBackend},
	}
}

func (s *MemoryStore) now() time.Time {
	return s.opts.now().UTC().Truncate(time.Microsecond)
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	defer observe(memoryBackend, "get", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	snap, _ := s.read(collection, id)
	return snap, nil
}

// read must be called with s.mu held.
func (s *MemoryStore) read(collection, id string) (*Snapshot, uint64) {
	d, ok := s.docs[collection][id]
	if !ok {
		return &Snapshot{ID: id}, 0
	}
	return &Snapshot{ID: id, Exists: true, Data: cloneDoc(d.data)}, d.version
}

// Set applies a single write.
func (s *MemoryStore) Set(ctx context.Context, w Write) error {
	return s.Batch(ctx, []Write{w})
}

// Batch applies all writes under one lock. Nothing is written if any write
// is invalid.
func (s *MemoryStore) Batch(_ context.Context, writes []Write) error {
	defer observe(memoryBackend, "batch", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.commit(writes)
}

// commit must be called with s.mu held.
func (s *MemoryStore) commit(writes []Write) error {
	now := s.now()
	staged := make(map[docKey]Document, len(writes))
	for _, w := range writes {
		if w.Collection == "" || w.ID == "" {
			return fmt.Errorf("%w: collection and id are required", ErrInvalidWrite)
		}
		k := docKey{w.Collection, w.ID}
		current, ok := staged[k]
		if !ok {
			if d, exists := s.docs[w.Collection][w.ID]; exists {
				current = d.data
			}
		}
		next, err := apply(current, w, now)
		if err != nil {
			return err
		}
		staged[k] = next
	}
	for k, data := range staged {
		col, ok := s.docs[k.collection]
		if !ok {
			col = make(map[string]*memDoc)
			s.docs[k.collection] = col
		}
		var version uint64
		if d, exists := col[k.id]; exists {
			version = d.version
		}
		col[k.id] = &memDoc{version: version + 1, data: data}
	}
	return nil
}

type memTx struct {
	store  *MemoryStore
	reads  map[docKey]uint64
	writes []Write
}

func (t *memTx) Get(_ context.Context, collection, id string) (*Snapshot, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if t.store.closed {
		return nil, ErrClosed
	}
	snap, version := t.store.read(collection, id)
	k := docKey{collection, id}
	if prev, seen := t.reads[k]; seen && prev != version {
		return nil, ErrConflict
	}
	t.reads[k] = version
	return snap, nil
}

func (t *memTx) Set(w Write) {
	t.writes = append(t.writes, w)
}

// RunTransaction runs fn and commits its writes if nothing it read changed.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	defer observe(memoryBackend, "transaction", time.Now())
	return s.retry.run(ctx, "docstore.memory.tx", func() error {
		tx := &memTx{store: s, reads: make(map[docKey]uint64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return ErrClosed
		}
		for k, version := range tx.reads {
			var current uint64
			if d, ok := s.docs[k.collection][k.id]; ok {
				current = d.version
			}
			if current != version {
				return ErrConflict
			}
		}
		return s.commit(tx.writes)
	})
}

// Query scans the collection and sorts by the order field.
func (s *MemoryStore) Query(_ context.Context, q Query) ([]*Snapshot, error) {
	defer observe(memoryBackend, "query", time.Now())
	if q.Collection == "" || q.OrderBy == "" || q.Limit < 1 {
		return nil, fmt.Errorf("%w: collection, order field and positive limit are required", ErrInvalidQuery)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	type row struct {
		ts   time.Time
		id   string
		data Document
	}
	rows := make([]row, 0, len(s.docs[q.Collection]))
	for id, d := range s.docs[q.Collection] {
		ts, ok := orderValue(d.data, q.OrderBy)
		if !ok || !after(ts, id, q.After) {
			continue
		}
		rows = append(rows, row{ts: ts, id: id, data: d.data})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ts.Equal(rows[j].ts) {
			return rows[i].ts.After(rows[j].ts)
		}
		return rows[i].id < rows[j].id
	})
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]*Snapshot, len(rows))
	for i, r := range rows {
		out[i] = &Snapshot{ID: r.id, Exists: true, Data: cloneDoc(r.data)}
	}
	return out, nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
