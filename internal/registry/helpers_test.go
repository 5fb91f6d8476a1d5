package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"speed-dating-events/internal/models"
	"speed-dating-events/internal/storage"
)

var errInjected = errors.New("injected failure")

// faultyStore wraps a store and fails selected writes
type faultyStore struct {
	storage.Store

	mu         sync.Mutex
	failCreate map[storage.Collection]bool
	failUpdate map[storage.Collection]bool
	failDelete map[storage.Collection]bool
	blockOn    chan struct{}
	entered    chan struct{}
}

func newFaultyStore(inner storage.Store) *faultyStore {
	return &faultyStore{
		Store:      inner,
		failCreate: map[storage.Collection]bool{},
		failUpdate: map[storage.Collection]bool{},
		failDelete: map[storage.Collection]bool{},
	}
}

func (f *faultyStore) set(m map[storage.Collection]bool, c storage.Collection, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m[c] = fail
}

func (f *faultyStore) fails(m map[storage.Collection]bool, c storage.Collection) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[c]
}

func (f *faultyStore) Create(ctx context.Context, c storage.Collection, fields storage.Fields) (string, error) {
	f.mu.Lock()
	block, entered := f.blockOn, f.entered
	f.mu.Unlock()
	if block != nil && c == storage.Guests {
		entered <- struct{}{}
		<-block
	}
	if f.fails(f.failCreate, c) {
		return "", errInjected
	}
	return f.Store.Create(ctx, c, fields)
}

func (f *faultyStore) Update(ctx context.Context, c storage.Collection, id string, partial storage.Fields) error {
	if f.fails(f.failUpdate, c) {
		return errInjected
	}
	return f.Store.Update(ctx, c, id, partial)
}

func (f *faultyStore) Delete(ctx context.Context, c storage.Collection, id string) error {
	if f.fails(f.failDelete, c) {
		return errInjected
	}
	return f.Store.Delete(ctx, c, id)
}

var testNow = time.Date(2026, 2, 14, 19, 30, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, store storage.Store, opts Options) *Registry {
	t.Helper()
	if opts.BaseURL == "" {
		opts.BaseURL = "https://party.example.com"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	r := New(store, opts)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Close)
	return r
}

func mustEvent(t *testing.T, r *Registry, name string) models.Event {
	t.Helper()
	e, err := r.CreateEvent(context.Background(), name, "2026-02-14")
	require.NoError(t, err)
	return e
}

func mustRegister(t *testing.T, r *Registry, eventID, name string, age int) *Result {
	t.Helper()
	res, err := r.RegisterGuest(context.Background(), "actor-"+name, Registration{
		EventID:   eventID,
		Name:      name,
		Age:       age,
		Important: "honesty",
		Goal:      "meet someone",
	})
	require.NoError(t, err)
	require.NoError(t, res.SyncWarning)
	return res
}

func eventPollsFromStore(t *testing.T, store storage.Store, eventID string) []models.Poll {
	t.Helper()
	docs, err := store.ReadAll(context.Background(), storage.Polls)
	require.NoError(t, err)
	var out []models.Poll
	for _, d := range docs {
		p, err := models.FromFields[models.Poll](d.ID, d.Fields)
		require.NoError(t, err)
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out
}

func eventGuestsFromStore(t *testing.T, store storage.Store, eventID string) []models.Guest {
	t.Helper()
	docs, err := store.ReadAll(context.Background(), storage.Guests)
	require.NoError(t, err)
	var out []models.Guest
	for _, d := range docs {
		g, err := models.FromFields[models.Guest](d.ID, d.Fields)
		require.NoError(t, err)
		if g.EventID == eventID {
			out = append(out, g)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return n.err
}
