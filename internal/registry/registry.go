package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speed-dating-events/internal/logging"
	"speed-dating-events/internal/metrics"
	"speed-dating-events/internal/models"
	"speed-dating-events/internal/storage"
)

// Notifier receives short organizer notices, e.g. new registrations
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Options configures a Registry. Zero values are usable.
type Options struct {
	// BaseURL is the public origin embedded in guest QR codes
	BaseURL  string
	Logger   *zerolog.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Now      func() time.Time
	NewToken func() (string, error)
}

// Registry keeps events, guests and polls consistent on top of a
// document store. It holds live snapshots of all three collections, fed
// by store subscriptions; writes always go to the store and come back
// through the next snapshot.
type Registry struct {
	store    storage.Store
	baseURL  string
	log      zerolog.Logger
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
	newToken func() (string, error)

	mu        sync.RWMutex
	events    []models.Event
	guests    []models.Guest
	polls     []models.Poll
	revisions map[storage.Collection]uint64
	seen      map[storage.Collection]bool

	// optimistic vote state, dropped once a snapshot confirms it or a write fails
	pending    map[string]pendingVote
	localVotes map[string]struct{}

	latchMu  sync.Mutex
	inflight map[string]struct{}

	// docLocks serializes read-modify-write cycles per poll, guest and event
	docLocks keyedMutex

	unsubscribe []func()
}

type pendingVote struct {
	points     int
	activities []string
}

// New creates a registry. Call Start before using it.
func New(store storage.Store, opts Options) *Registry {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newToken := opts.NewToken
	if newToken == nil {
		newToken = func() (string, error) { return NewGuestToken(now()) }
	}

	return &Registry{
		store:      store,
		baseURL:    opts.BaseURL,
		log:        logging.Component(log, "Registry"),
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		now:        now,
		newToken:   newToken,
		revisions:  make(map[storage.Collection]uint64),
		seen:       make(map[storage.Collection]bool),
		pending:    make(map[string]pendingVote),
		localVotes: make(map[string]struct{}),
		inflight:   make(map[string]struct{}),
	}
}

// Start subscribes to all collections. The store delivers an initial
// snapshot per collection right away.
func (r *Registry) Start(ctx context.Context) error {
	for _, c := range storage.Collections {
		unsub, err := r.store.Subscribe(ctx, c, r.apply)
		if err != nil {
			r.Close()
			r.metrics.StoreError("subscribe")
			return fmt.Errorf("%w: subscribe %s: %w", ErrStore, c, err)
		}
		r.unsubscribe = append(r.unsubscribe, unsub)
	}
	r.log.Info().Msg("Subscribed to events, guests and polls")
	return nil
}

// Close stops all subscriptions. The store itself stays open.
func (r *Registry) Close() {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
	r.unsubscribe = nil
}

// Ready reports whether a snapshot of every collection has arrived
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range storage.Collections {
		if !r.seen[c] {
			return false
		}
	}
	return true
}

// apply replaces the cached collection with snap unless it is stale
func (r *Registry) apply(snap storage.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[snap.Collection] && snap.Revision <= r.revisions[snap.Collection] {
		return
	}
	r.seen[snap.Collection] = true
	r.revisions[snap.Collection] = snap.Revision

	switch snap.Collection {
	case storage.Events:
		r.events = decodeAll[models.Event](r.log, snap.Docs)
	case storage.Guests:
		r.guests = decodeAll[models.Guest](r.log, snap.Docs)
		r.reconcilePending()
	case storage.Polls:
		r.polls = decodeAll[models.Poll](r.log, snap.Docs)
		r.reconcileLocalVotes()
	}
}

// reconcilePending drops optimistic deltas the snapshot has caught up with
func (r *Registry) reconcilePending() {
	for id, p := range r.pending {
		g, ok := findGuest(r.guests, id)
		if !ok || g.Points >= p.points {
			delete(r.pending, id)
		}
	}
}

func (r *Registry) reconcileLocalVotes() {
	for _, p := range r.polls {
		for _, voter := range p.VotedGuests {
			delete(r.localVotes, voteKey(voter, p.ID))
		}
	}
}

// acquire takes the single-flight latch for key
func (r *Registry) acquire(key string) bool {
	r.latchMu.Lock()
	defer r.latchMu.Unlock()
	if _, busy := r.inflight[key]; busy {
		return false
	}
	r.inflight[key] = struct{}{}
	return true
}

func (r *Registry) release(key string) {
	r.latchMu.Lock()
	defer r.latchMu.Unlock()
	delete(r.inflight, key)
}

func decodeAll[T any](log zerolog.Logger, docs []storage.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := models.FromFields[T](d.ID, d.Fields)
		if err != nil {
			log.Warn().Err(err).Str("doc_id", d.ID).Msg("Skipping undecodable document")
			continue
		}
		out = append(out, v)
	}
	return out
}

func findGuest(guests []models.Guest, id string) (models.Guest, bool) {
	i := slices.IndexFunc(guests, func(g models.Guest) bool { return g.ID == id })
	if i < 0 {
		return models.Guest{}, false
	}
	return guests[i], true
}

func voteKey(voterID, pollID string) string {
	return voterID + "|" + pollID
}
