package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names a group of documents
type Collection string

const (
	Events Collection = "events"
	Guests Collection = "guests"
	Polls  Collection = "polls"
)

// Collections lists every collection the registry uses
var Collections = []Collection{Events, Guests, Polls}

// ErrNotFound is returned when updating a document that does not exist
var ErrNotFound = errors.New("document not found")

// ErrClosed is returned by any operation on a closed store
var ErrClosed = errors.New("store is closed")

// Fields is a flat, JSON-shaped document body
type Fields map[string]any

// Document is one stored record
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Snapshot is the full content of a collection at one revision
type Snapshot struct {
	Collection Collection
	Revision   uint64
	Docs       []Document
}

// Listener receives full snapshots, never diffs
type Listener func(Snapshot)

// Store is a document store with change notification.
//
// Writes to a single document are observed by subscribers in commit
// order. Nothing is transactional across documents.
type Store interface {
	Create(ctx context.Context, c Collection, fields Fields) (string, error)
	ReadAll(ctx context.Context, c Collection) ([]Document, error)
	Update(ctx context.Context, c Collection, id string, partial Fields) error
	Delete(ctx context.Context, c Collection, id string) error
	Subscribe(ctx context.Context, c Collection, fn Listener) (func(), error)
	Close() error
}

func validCollection(c Collection) error {
	switch c {
	case Events, Guests, Polls:
		return nil
	}
	return fmt.Errorf("unknown collection %q", c)
}

// cloneFields deep copies fields through JSON so stored values never
// alias caller memory and always have JSON types.
func cloneFields(f Fields) (Fields, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if out == nil {
		out = Fields{}
	}
	return out, nil
}

func cloneDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		f, err := cloneFields(d.Fields)
		if err != nil {
			// stored fields were produced by cloneFields already
			f = Fields{}
		}
		out[i] = Document{ID: d.ID, Fields: f}
	}
	return out
}
