// Package docstore defines the document store used by the tag registry, the
// event pipeline and the paginated reader, with an in-process and a Postgres
// implementation.
//
// Documents are JSON-like maps. Writes may carry field mutators (Increment,
// ArrayAppend, ServerTimestamp) that are resolved against the stored value at
// commit time, which makes them atomic per document.
package docstore

import (
	"context"
	"encoding/json"
	"time"
)

// Document is a JSON-like field map.
type Document map[string]any

// Snapshot is the result of a read.
type Snapshot struct {
	ID     string
	Exists bool
	Data   Document
}

// DataTo decodes the snapshot into dst through its JSON form.
func (s *Snapshot) DataTo(dst any) error {
	b, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// Write is one document mutation. With Merge the fields are deep-merged into
// the stored document, otherwise the document is replaced.
type Write struct {
	Collection string
	ID         string
	Data       Document
	Merge      bool
}

// Cursor marks a position in an ordered query. An empty ID means "strictly
// older than Value" regardless of identifier.
type Cursor struct {
	Value time.Time
	ID    string
}

// Query selects documents ordered by OrderBy descending, then by id
// ascending. Documents lacking the order field are not returned.
type Query struct {
	Collection string
	OrderBy    string
	Limit      int
	After      *Cursor
}

// Tx is the view of the store inside RunTransaction. Reads go through the
// store, writes are buffered and applied on commit.
type Tx interface {
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	Set(w Write)
}

// TxFunc is the body of a transaction. It may run several times.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the document store contract.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	Set(ctx context.Context, w Write) error
	// Batch applies every write in one commit. Each document is written
	// atomically; the batch is either attempted as a whole or not at all.
	Batch(ctx context.Context, writes []Write) error
	// RunTransaction runs fn and commits its writes atomically, retrying fn
	// on conflicting writes with exponential backoff.
	RunTransaction(ctx context.Context, fn TxFunc) error
	Query(ctx context.Context, q Query) ([]*Snapshot, error)
	Ping(ctx context.Context) error
	Close() error
}
