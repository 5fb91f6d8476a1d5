package registry

import (
	"fmt"
	"slices"

	"speed-dating-events/internal/models"
)

// ResolveGuestByToken finds the guest whose public token is guestID. It
// only looks at the live snapshot: ErrNotFound right after start-up may
// just mean the first guest snapshot has not arrived, so callers retry.
func (r *Registry) ResolveGuestByToken(guestID string) (models.Guest, error) {
	g, ok := r.guestByToken(guestID)
	if !ok {
		return models.Guest{}, fmt.Errorf("guest token %q: %w", guestID, ErrNotFound)
	}
	return g, nil
}

func (r *Registry) guestByToken(token string) (models.Guest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.guests {
		if g.GuestID == token {
			return r.withPending(g), true
		}
	}
	return models.Guest{}, false
}

// Guest returns a guest by document id, including any vote whose
// durable write has not been confirmed yet.
func (r *Registry) Guest(id string) (models.Guest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := findGuest(r.guests, id)
	if !ok {
		return models.Guest{}, fmt.Errorf("guest %s: %w", id, ErrNotFound)
	}
	return r.withPending(g), nil
}

// Guests returns the guests of one event from the snapshot
func (r *Registry) Guests(eventID string) []models.Guest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Guest, 0)
	for _, g := range r.guests {
		if g.EventID == eventID {
			out = append(out, r.withPending(g))
		}
	}
	return out
}

// Poll returns a poll by id from the snapshot
func (r *Registry) Poll(id string) (models.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.polls, func(p models.Poll) bool { return p.ID == id })
	if i < 0 {
		return models.Poll{}, fmt.Errorf("poll %s: %w", id, ErrNotFound)
	}
	return r.polls[i], nil
}

// PollAbout returns the poll whose subject is the guest with document id guestID
func (r *Registry) PollAbout(guestID string) (models.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.polls, func(p models.Poll) bool { return p.GuestID == guestID })
	if i < 0 {
		return models.Poll{}, fmt.Errorf("poll about %s: %w", guestID, ErrNotFound)
	}
	return r.polls[i], nil
}

// AvailablePolls lists the polls a guest may vote on: every poll in
// their event except the one about themselves.
func (r *Registry) AvailablePolls(guestID string) ([]models.Poll, error) {
	guest, err := r.Guest(guestID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Poll, 0)
	for _, p := range r.polls {
		if p.EventID == guest.EventID && p.GuestID != guest.ID {
			out = append(out, p)
		}
	}
	return out, nil
}

// HasVoted reports whether the guest is known to have voted on the poll,
// counting confirmed votes not yet visible in the snapshot.
func (r *Registry) HasVoted(p models.Poll, guestID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasVoted(p, guestID)
}

func (r *Registry) hasVoted(p models.Poll, guestID string) bool {
	if p.HasVoted(guestID) {
		return true
	}
	_, ok := r.localVotes[voteKey(guestID, p.ID)]
	return ok
}

// withPending overlays an unconfirmed vote delta. Callers hold r.mu.
func (r *Registry) withPending(g models.Guest) models.Guest {
	g.Activities = slices.Clone(g.Activities)
	if p, ok := r.pending[g.ID]; ok {
		g.Points = p.points
		g.Activities = slices.Clone(p.activities)
	}
	return g
}
