package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"speed-dating-events/internal/models"
	"speed-dating-events/internal/storage"
)

// Events returns the current event snapshot in arrival order
func (r *Registry) Events() []models.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Event returns one event from the snapshot
func (r *Registry) Event(id string) (models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
}

// EnsureDefaultEvent returns the first event, creating the default one
// when there are none, so at least one event always exists.
func (r *Registry) EnsureDefaultEvent(ctx context.Context) (models.Event, error) {
	events, err := r.readEvents(ctx)
	if err != nil {
		return models.Event{}, err
	}
	if len(events) > 0 {
		return events[0], nil
	}

	r.log.Info().Msg("No events found, creating default event")
	return r.CreateEvent(ctx, models.DefaultEventName, r.now().Format(models.DateLayout))
}

// CreateEvent stores a new event
func (r *Registry) CreateEvent(ctx context.Context, name, date string) (models.Event, error) {
	event := models.Event{
		Name:      strings.TrimSpace(name),
		Date:      strings.TrimSpace(date),
		CreatedAt: r.now(),
	}
	if err := validateEvent(event); err != nil {
		return models.Event{}, err
	}

	id, err := r.create(ctx, storage.Events, event, "create_event")
	if err != nil {
		return models.Event{}, err
	}
	event.ID = id

	r.log.Info().Str("event_id", id).Str("name", event.Name).Msg("Event created")
	return event, nil
}

// EditEvent renames and/or reschedules an event. Blank values keep the
// current ones.
func (r *Registry) EditEvent(ctx context.Context, id, name, date string) (models.Event, error) {
	event, err := r.readEvent(ctx, id)
	if err != nil {
		return models.Event{}, err
	}

	if name = strings.TrimSpace(name); name != "" {
		event.Name = name
	}
	if date = strings.TrimSpace(date); date != "" {
		event.Date = date
	}
	if err := validateEvent(event); err != nil {
		return models.Event{}, err
	}

	if err := r.store.Update(ctx, storage.Events, id, storage.Fields{"name": event.Name, "date": event.Date}); err != nil {
		r.metrics.StoreError("update_event")
		if errors.Is(err, storage.ErrNotFound) {
			return models.Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return models.Event{}, fmt.Errorf("%w: update event: %w", ErrStore, err)
	}

	r.log.Info().Str("event_id", id).Str("name", event.Name).Str("date", event.Date).Msg("Event updated")
	return event, nil
}

// DeleteEvent removes an event, then its guests, then its polls. The
// phases run one after another without a transaction; an interruption
// leaves orphaned guests or polls behind. Deleting the only event fails
// with ErrLastEvent. The id of an arbitrary remaining event is returned
// so the caller can move its selection there.
func (r *Registry) DeleteEvent(ctx context.Context, id string) (string, error) {
	events, err := r.readEvents(ctx)
	if err != nil {
		return "", err
	}
	if len(events) <= 1 {
		return "", ErrLastEvent
	}

	next := ""
	found := false
	for _, e := range events {
		if e.ID == id {
			found = true
		} else if next == "" {
			next = e.ID
		}
	}
	if !found {
		return "", fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	if err := r.store.Delete(ctx, storage.Events, id); err != nil {
		r.metrics.StoreError("delete_event")
		return "", fmt.Errorf("%w: delete event: %w", ErrStore, err)
	}

	var errs []error
	guests := r.eventGuests(ctx, id)
	for _, g := range guests {
		if err := r.store.Delete(ctx, storage.Guests, g.ID); err != nil {
			r.metrics.StoreError("delete_guest")
			errs = append(errs, fmt.Errorf("guest %s: %w", g.ID, err))
		}
	}
	polls := r.eventPolls(ctx, id)
	for _, p := range polls {
		if err := r.store.Delete(ctx, storage.Polls, p.ID); err != nil {
			r.metrics.StoreError("delete_poll")
			errs = append(errs, fmt.Errorf("poll %s: %w", p.ID, err))
		}
	}

	r.metrics.EventDeleted()
	if len(errs) > 0 {
		r.log.Error().Err(errors.Join(errs...)).Str("event_id", id).Msg("Event deleted with leftovers")
		return next, fmt.Errorf("%w: cascade delete: %w", ErrStore, errors.Join(errs...))
	}

	r.log.Info().
		Str("event_id", id).
		Int("guests", len(guests)).
		Int("polls", len(polls)).
		Msg("Event deleted")
	return next, nil
}

func (r *Registry) readEvents(ctx context.Context) ([]models.Event, error) {
	docs, err := r.store.ReadAll(ctx, storage.Events)
	if err != nil {
		r.metrics.StoreError("read_events")
		return nil, fmt.Errorf("%w: read events: %w", ErrStore, err)
	}
	return decodeAll[models.Event](r.log, docs), nil
}

// readEvent loads one event from the store. An unknown id is a
// validation problem for the caller.
func (r *Registry) readEvent(ctx context.Context, id string) (models.Event, error) {
	events, err := r.readEvents(ctx)
	if err != nil {
		return models.Event{}, err
	}
	for _, e := range events {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Event{}, fmt.Errorf("%w: event %s: %w", ErrValidation, id, ErrNotFound)
}

func validateEvent(e models.Event) error {
	if e.Name == "" {
		return fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
		return fmt.Errorf("%w: event date must look like %s", ErrValidation, models.DateLayout)
	}
	return nil
}
