package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"speed-dating-events/internal/metrics"
	"speed-dating-events/internal/models"
	"speed-dating-events/internal/qr"
	"speed-dating-events/internal/storage"
)

const tokenAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Registration is the input collected by the registration form
type Registration struct {
	EventID   string
	Name      string
	Age       int
	Important string
	Goal      string
}

// Result is a completed registration. SyncWarning is set when the new
// guest and poll were stored but refreshing maxVotes on sibling polls
// partially failed; the registration itself still counts as successful.
type Result struct {
	Guest       models.Guest
	Poll        models.Poll
	SyncWarning error
}

// NewGuestToken returns a public guest token: a millisecond timestamp
// plus a random suffix, so tokens issued in the same millisecond differ.
func NewGuestToken(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(tokenAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("failed to generate guest token: %w", err)
	}
	return models.GuestTokenPrefix + strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix, nil
}

// Validate checks the required registration fields
func (in Registration) Validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case in.Age <= 0:
		return fmt.Errorf("%w: age is required", ErrValidation)
	case strings.TrimSpace(in.EventID) == "":
		return fmt.Errorf("%w: select an event", ErrValidation)
	}
	return nil
}

// RegisterGuest stores a new guest together with the poll about them and
// brings maxVotes of every poll in the event up to date. actor identifies
// the submitting session; a second call for the same actor while the
// first is still running fails with ErrAlreadyInProgress.
func (r *Registry) RegisterGuest(ctx context.Context, actor string, in Registration) (*Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.EventID = strings.TrimSpace(in.EventID)
	if err := in.Validate(); err != nil {
		r.metrics.Registration(metrics.OutcomeRejected)
		return nil, err
	}

	latch := "register:" + actor
	if !r.acquire(latch) {
		return nil, ErrAlreadyInProgress
	}
	defer r.release(latch)

	event, err := r.readEvent(ctx, in.EventID)
	if err != nil {
		r.metrics.Registration(metrics.OutcomeRejected)
		return nil, err
	}

	token, err := r.uniqueToken()
	if err != nil {
		r.metrics.Registration(metrics.OutcomeError)
		return nil, err
	}

	now := r.now()
	guest := models.Guest{
		GuestID:      token,
		Name:         in.Name,
		Age:          in.Age,
		Important:    strings.TrimSpace(in.Important),
		Goal:         strings.TrimSpace(in.Goal),
		EventID:      event.ID,
		RegisteredAt: now,
		QRCode:       qr.GuestURL(r.baseURL, token),
		Points:       0,
		Activities:   []string{},
	}
	guest.ID, err = r.create(ctx, storage.Guests, guest, "create_guest")
	if err != nil {
		r.metrics.Registration(metrics.OutcomeError)
		return nil, err
	}

	// the guest is stored; finish the remaining writes regardless of the caller
	ctx = context.WithoutCancel(ctx)

	// count, poll and fan-out run one registration at a time per event,
	// so the last one to finish sees every guest and maxVotes converges
	unlock := r.docLocks.Lock("event:" + event.ID)
	maxVotes := models.MaxVotes(r.countEventGuests(ctx, event.ID, guest.ID))

	poll := models.NewPoll(guest, maxVotes, now)
	poll.ID, err = r.create(ctx, storage.Polls, poll, "create_poll")
	if err != nil {
		// a guest without a poll would never be voted on; undo it
		if delErr := r.store.Delete(ctx, storage.Guests, guest.ID); delErr != nil {
			r.log.Error().Err(delErr).Str("guest_id", guest.ID).Msg("Failed to remove guest after poll creation failed")
		}
		unlock()
		r.metrics.Registration(metrics.OutcomeError)
		return nil, err
	}

	res := &Result{Guest: guest, Poll: poll}
	err = r.syncMaxVotes(ctx, event.ID, poll.ID, maxVotes)
	unlock()
	if err != nil {
		res.SyncWarning = err
		r.metrics.SyncWarning()
		r.log.Warn().Err(err).Str("event_id", event.ID).Int("max_votes", maxVotes).Msg("maxVotes out of sync across polls")
	}

	r.metrics.Registration(metrics.OutcomeOK)
	r.log.Info().
		Str("event_id", event.ID).
		Str("guest_id", guest.ID).
		Str("token", token).
		Int("max_votes", maxVotes).
		Msg("Guest registered")

	if r.notifier != nil {
		text := fmt.Sprintf("New guest %s (%d) registered for %s", guest.Name, guest.Age, event.Name)
		if err := r.notifier.Notify(ctx, text); err != nil {
			r.log.Warn().Err(err).Msg("Failed to notify organizer")
		}
	}

	return res, nil
}

// uniqueToken draws tokens until one is not present in the guest snapshot
func (r *Registry) uniqueToken() (string, error) {
	for range 5 {
		token, err := r.newToken()
		if err != nil {
			return "", err
		}
		if _, taken := r.guestByToken(token); !taken {
			return token, nil
		}
	}
	return "", errors.New("could not generate a unique guest token")
}

// countEventGuests counts the guests of eventID from the store, the new
// guest included. When the read fails it falls back to the snapshot.
func (r *Registry) countEventGuests(ctx context.Context, eventID, newGuestID string) int {
	docs, err := r.store.ReadAll(ctx, storage.Guests)
	if err == nil {
		n := 0
		for _, g := range decodeAll[models.Guest](r.log, docs) {
			if g.EventID == eventID {
				n++
			}
		}
		return n
	}

	r.metrics.StoreError("read_guests")
	r.log.Warn().Err(err).Msg("Counting guests from snapshot")
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 1
	for _, g := range r.guests {
		if g.EventID == eventID && g.ID != newGuestID {
			n++
		}
	}
	return n
}

// syncMaxVotes rewrites maxVotes on every other poll of the event. It is
// a fan-out of independent writes; failures are collected, not rolled back.
func (r *Registry) syncMaxVotes(ctx context.Context, eventID, skipPollID string, maxVotes int) error {
	var errs []error
	for _, p := range r.eventPolls(ctx, eventID) {
		if p.ID == skipPollID {
			continue
		}
		if err := r.store.Update(ctx, storage.Polls, p.ID, storage.Fields{"maxVotes": maxVotes}); err != nil {
			r.metrics.StoreError("update_poll")
			errs = append(errs, fmt.Errorf("poll %s: %w", p.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: update maxVotes: %w", ErrStore, errors.Join(errs...))
	}
	return nil
}

// eventPolls reads the polls of an event from the store, falling back to
// the snapshot when the read fails.
func (r *Registry) eventPolls(ctx context.Context, eventID string) []models.Poll {
	var all []models.Poll
	docs, err := r.store.ReadAll(ctx, storage.Polls)
	if err != nil {
		r.metrics.StoreError("read_polls")
		r.log.Warn().Err(err).Msg("Reading polls from snapshot")
		r.mu.RLock()
		all = append(all, r.polls...)
		r.mu.RUnlock()
	} else {
		all = decodeAll[models.Poll](r.log, docs)
	}

	out := make([]models.Poll, 0, len(all))
	for _, p := range all {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out
}

// eventGuests mirrors eventPolls for guests
func (r *Registry) eventGuests(ctx context.Context, eventID string) []models.Guest {
	var all []models.Guest
	docs, err := r.store.ReadAll(ctx, storage.Guests)
	if err != nil {
		r.metrics.StoreError("read_guests")
		r.log.Warn().Err(err).Msg("Reading guests from snapshot")
		r.mu.RLock()
		all = append(all, r.guests...)
		r.mu.RUnlock()
	} else {
		all = decodeAll[models.Guest](r.log, docs)
	}

	out := make([]models.Guest, 0, len(all))
	for _, g := range all {
		if g.EventID == eventID {
			out = append(out, g)
		}
	}
	return out
}

// create stores v as a new document in c
func (r *Registry) create(ctx context.Context, c storage.Collection, v any, op string) (string, error) {
	fields, err := models.ToFields(v)
	if err != nil {
		return "", err
	}
	id, err := r.store.Create(ctx, c, fields)
	if err != nil {
		r.metrics.StoreError(op)
		r.log.Error().Err(err).Str("collection", string(c)).Msg("Create failed")
		return "", fmt.Errorf("%w: create %s: %w", ErrStore, c, err)
	}
	return id, nil
}
