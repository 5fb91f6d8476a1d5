package registry

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"speed-dating-events/internal/metrics"
	"speed-dating-events/internal/models"
	"speed-dating-events/internal/storage"
)

// CastVote records voterID's answer on a poll and awards the voter
// PointsPerVote points.
//
// The poll and the voter are locked for the whole cycle and re-read from
// the store inside the lock, so concurrent votes on one poll, or by one
// voter, all land. The voter's new points and activity show up locally
// right away. The poll and guest writes are then issued concurrently; if
// either fails the local delta is discarded, ErrStore is returned and the
// next snapshot is authoritative. Do not retry blindly: the poll write
// may have landed.
//
// maxVotes is informational and never caps accepted votes.
func (r *Registry) CastVote(ctx context.Context, pollID, voterID, option string) error {
	latch := "vote:" + voteKey(voterID, pollID)
	if !r.acquire(latch) {
		return ErrAlreadyInProgress
	}
	defer r.release(latch)

	// always poll before guest
	defer r.docLocks.Lock("poll:" + pollID)()
	defer r.docLocks.Lock("guest:" + voterID)()

	polls, guests, fresh := r.voteState(ctx)
	poll, voter, err := r.checkVote(polls, guests, fresh, pollID, voterID, option)
	if err != nil {
		r.metrics.Vote(metrics.OutcomeRejected)
		return err
	}

	votes, votedGuests := poll.WithVote(voter.ID, option)
	points := voter.Points + models.PointsPerVote
	activities := append(slices.Clone(voter.Activities), models.ActivityPollParticipation)

	r.mu.Lock()
	r.pending[voter.ID] = pendingVote{points: points, activities: activities}
	r.mu.Unlock()

	// once started, both writes run to completion even if the caller goes away
	writeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.Go(func() error {
		err := r.store.Update(writeCtx, storage.Polls, poll.ID, storage.Fields{
			"votes":       votes,
			"votedGuests": votedGuests,
		})
		if err != nil {
			r.metrics.StoreError("update_poll")
			r.log.Error().Err(err).Str("poll_id", poll.ID).Msg("Vote poll write failed")
			return fmt.Errorf("poll %s: %w", poll.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		err := r.store.Update(writeCtx, storage.Guests, voter.ID, storage.Fields{
			"points":     points,
			"activities": activities,
		})
		if err != nil {
			r.metrics.StoreError("update_guest")
			r.log.Error().Err(err).Str("guest_id", voter.ID).Msg("Vote guest write failed")
			return fmt.Errorf("guest %s: %w", voter.ID, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		r.mu.Lock()
		if p, ok := r.pending[voter.ID]; ok && p.points == points {
			delete(r.pending, voter.ID)
		}
		r.mu.Unlock()
		r.metrics.Vote(metrics.OutcomeError)
		return fmt.Errorf("%w: cast vote: %w", ErrStore, err)
	}

	r.mu.Lock()
	if !r.hasVotedInSnapshot(poll.ID, voter.ID) {
		r.localVotes[voteKey(voter.ID, poll.ID)] = struct{}{}
	}
	r.mu.Unlock()

	r.metrics.Vote(metrics.OutcomeOK)
	r.log.Info().
		Str("poll_id", poll.ID).
		Str("voter_id", voter.ID).
		Str("option", option).
		Int("points", points).
		Msg("Vote recorded")
	return nil
}

// voteState reads polls and guests from the store. When the read fails
// it falls back to the snapshot and reports fresh=false.
func (r *Registry) voteState(ctx context.Context) ([]models.Poll, []models.Guest, bool) {
	pollDocs, err := r.store.ReadAll(ctx, storage.Polls)
	if err == nil {
		var guestDocs []storage.Document
		guestDocs, err = r.store.ReadAll(ctx, storage.Guests)
		if err == nil {
			return decodeAll[models.Poll](r.log, pollDocs), decodeAll[models.Guest](r.log, guestDocs), true
		}
	}

	r.metrics.StoreError("read_vote_state")
	r.log.Warn().Err(err).Msg("Checking vote against snapshot")
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.polls), slices.Clone(r.guests), false
}

// checkVote validates a vote against polls and guests. Unless they came
// fresh from the store, the voter gets the pending overlay.
func (r *Registry) checkVote(polls []models.Poll, guests []models.Guest, fresh bool, pollID, voterID, option string) (models.Poll, models.Guest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := slices.IndexFunc(polls, func(p models.Poll) bool { return p.ID == pollID })
	if i < 0 {
		return models.Poll{}, models.Guest{}, fmt.Errorf("poll %s: %w", pollID, ErrNotFound)
	}
	poll := polls[i]

	if !poll.HasOption(option) {
		return models.Poll{}, models.Guest{}, fmt.Errorf("%w: %q is not an option of this poll", ErrValidation, option)
	}

	voter, ok := findGuest(guests, voterID)
	if !ok {
		return models.Poll{}, models.Guest{}, fmt.Errorf("guest %s: %w", voterID, ErrNotFound)
	}
	if !fresh {
		voter = r.withPending(voter)
	}

	if voter.EventID != poll.EventID {
		return models.Poll{}, models.Guest{}, fmt.Errorf("%w: poll belongs to another event", ErrValidation)
	}
	if poll.GuestID == voter.ID {
		return models.Poll{}, models.Guest{}, ErrOwnPoll
	}
	if r.hasVoted(poll, voter.ID) {
		return models.Poll{}, models.Guest{}, ErrAlreadyVoted
	}
	return poll, voter, nil
}

// hasVotedInSnapshot checks the cached poll directly. Callers hold r.mu.
func (r *Registry) hasVotedInSnapshot(pollID, voterID string) bool {
	i := slices.IndexFunc(r.polls, func(p models.Poll) bool { return p.ID == pollID })
	return i >= 0 && r.polls[i].HasVoted(voterID)
}
