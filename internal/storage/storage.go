package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileStore keeps every collection in memory and mirrors it to a JSON
// file after each write. An empty path keeps it in memory only.
type FileStore struct {
	mu        sync.RWMutex
	docs      map[Collection][]Document
	revisions map[Collection]uint64
	file      string
	closed    bool
	hub       *hub
}

type fileData struct {
	Collections map[Collection][]Document `json:"collections"`
}

// NewFileStore creates a new file store, loading existing data if the file exists
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		docs:      make(map[Collection][]Document),
		revisions: make(map[Collection]uint64),
		file:      filePath,
		hub:       newHub(),
	}

	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		if _, err := os.Stat(filePath); err == nil {
			if err := s.Load(); err != nil {
				return nil, fmt.Errorf("failed to load storage: %w", err)
			}
		}
	}

	return s, nil
}

// NewMemoryStore creates a file store that never touches disk
func NewMemoryStore() *FileStore {
	s, _ := NewFileStore("")
	return s
}

// Create adds a new document and returns its generated id
func (s *FileStore) Create(ctx context.Context, c Collection, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validCollection(c); err != nil {
		return "", err
	}
	stored, err := cloneFields(fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	id := uuid.NewString()
	s.docs[c] = append(s.docs[c], Document{ID: id, Fields: stored})
	snap, err := s.commit(c)
	s.mu.Unlock()

	s.hub.publish(snap)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReadAll returns the documents of a collection in arrival order
func (s *FileStore) ReadAll(ctx context.Context, c Collection) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validCollection(c); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return cloneDocs(s.docs[c]), nil
}

// Update merges partial into an existing document
func (s *FileStore) Update(ctx context.Context, c Collection, id string, partial Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validCollection(c); err != nil {
		return err
	}
	patch, err := cloneFields(partial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	found := false
	for i, d := range s.docs[c] {
		if d.ID == id {
			for k, v := range patch {
				s.docs[c][i].Fields[k] = v
			}
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", c, id, ErrNotFound)
	}
	snap, err := s.commit(c)
	s.mu.Unlock()

	s.hub.publish(snap)
	return err
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *FileStore) Delete(ctx context.Context, c Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validCollection(c); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	idx := -1
	for i, d := range s.docs[c] {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.docs[c] = append(s.docs[c][:idx], s.docs[c][idx+1:]...)
	snap, err := s.commit(c)
	s.mu.Unlock()

	s.hub.publish(snap)
	return err
}

// Subscribe registers fn and immediately delivers the current snapshot
func (s *FileStore) Subscribe(ctx context.Context, c Collection, fn Listener) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validCollection(c); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	id := s.hub.add(c, fn)
	snap := Snapshot{Collection: c, Revision: s.revisions[c], Docs: cloneDocs(s.docs[c])}
	s.mu.RUnlock()

	fn(snap)

	var once sync.Once
	return func() {
		once.Do(func() { s.hub.remove(c, id) })
	}, nil
}

// Close drops all subscribers. The file is already up to date.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.hub.clear()
	return nil
}

// commit bumps the revision, persists and captures the snapshot to publish.
// The in-memory change stands even when persisting fails, so the snapshot
// is always returned. Callers hold the write lock.
func (s *FileStore) commit(c Collection) (Snapshot, error) {
	s.revisions[c]++
	snap := Snapshot{Collection: c, Revision: s.revisions[c], Docs: cloneDocs(s.docs[c])}
	if err := s.Save(); err != nil {
		return snap, fmt.Errorf("failed to persist %s: %w", c, err)
	}
	return snap, nil
}

// Save writes all collections to a temporary file next to the target
// and renames it into place, so a crash never leaves a truncated file.
func (s *FileStore) Save() error {
	if s.file == "" {
		return nil
	}

	data, err := json.MarshalIndent(fileData{Collections: s.docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.file)
}

// Load loads all collections from file
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		s.docs = make(map[Collection][]Document)
		return nil
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if fd.Collections != nil {
		s.docs = fd.Collections
	}
	for c, docs := range s.docs {
		for i := range docs {
			if docs[i].Fields == nil {
				docs[i].Fields = Fields{}
			}
		}
		s.revisions[c] = 1
	}

	return nil
}
