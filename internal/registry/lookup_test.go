package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speed-dating-events/internal/models"
	"speed-dating-events/internal/storage"
)

func TestResolveGuestByTokenUnknown(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore(), Options{})
	event := mustEvent(t, r, "Mixer")
	mustRegister(t, r, event.ID, "Alice", 25)

	_, err := r.ResolveGuestByToken("GUEST-never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveGuestByTokenBeforeFirstSnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	seed := newTestRegistry(t, store, Options{})
	event := mustEvent(t, seed, "Mixer")
	alice := mustRegister(t, seed, event.ID, "Alice", 25)

	r := New(store, Options{})
	assert.False(t, r.Ready())
	_, err := r.ResolveGuestByToken(alice.Guest.GuestID)
	assert.ErrorIs(t, err, ErrNotFound, "nothing resolves until the guest snapshot arrives")

	require.NoError(t, r.Start(context.Background()))
	defer r.Close()
	assert.True(t, r.Ready())

	got, err := r.ResolveGuestByToken(alice.Guest.GuestID)
	require.NoError(t, err)
	assert.Equal(t, alice.Guest.ID, got.ID)
}

func TestStaleSnapshotIsIgnored(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRegistry(t, store, Options{})
	event := mustEvent(t, r, "Mixer")
	mustRegister(t, r, event.ID, "Alice", 25)

	r.mu.RLock()
	rev := r.revisions[storage.Guests]
	r.mu.RUnlock()

	r.apply(storage.Snapshot{Collection: storage.Guests, Revision: rev - 1, Docs: nil})
	assert.Len(t, r.Guests(event.ID), 1)

	r.apply(storage.Snapshot{Collection: storage.Guests, Revision: rev + 1, Docs: nil})
	assert.Empty(t, r.Guests(event.ID), "newer snapshots replace, never merge")
}

func TestAvailablePolls(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore(), Options{})
	event := mustEvent(t, r, "Mixer")
	other := mustEvent(t, r, "Other")
	alice := mustRegister(t, r, event.ID, "Alice", 25)
	bob := mustRegister(t, r, event.ID, "Bob", 30)
	cara := mustRegister(t, r, event.ID, "Cara", 28)
	mustRegister(t, r, other.ID, "Zed", 40)

	polls, err := r.AvailablePolls(alice.Guest.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{bob.Poll.ID, cara.Poll.ID}, ids)

	_, err = r.AvailablePolls("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboard(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore(), Options{})
	event := mustEvent(t, r, "Mixer")
	alice := mustRegister(t, r, event.ID, "Alice", 25)
	bob := mustRegister(t, r, event.ID, "Bob", 30)
	cara := mustRegister(t, r, event.ID, "Cara", 28)

	ctx := context.Background()
	require.NoError(t, r.CastVote(ctx, bob.Poll.ID, alice.Guest.ID, "Yes"))
	require.NoError(t, r.CastVote(ctx, cara.Poll.ID, alice.Guest.ID, "No"))
	require.NoError(t, r.CastVote(ctx, alice.Poll.ID, bob.Guest.ID, "Maybe"))

	d, err := r.Dashboard(event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mixer", d.Event.Name)
	assert.Equal(t, 3, d.TotalGuests)
	assert.Equal(t, 2, d.ActiveGuests)
	assert.Equal(t, 30, d.TotalPoints)
	assert.Equal(t, 3, d.TotalVotes)
	require.Len(t, d.Guests, 3)
	for _, row := range d.Guests {
		require.NotNil(t, row.Poll)
		assert.Equal(t, row.Guest.ID, row.Poll.GuestID)
		assert.Equal(t, models.PollOptions, row.Poll.Options)
	}

	_, err = r.Dashboard("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPollResults(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore(), Options{})
	event := mustEvent(t, r, "Mixer")
	subject := mustRegister(t, r, event.ID, "Subject", 30)

	answers := []string{"Maybe", "No", "Maybe", "Yes", "Maybe", "No"}
	for i, option := range answers {
		voter := mustRegister(t, r, event.ID, fmt.Sprintf("Voter%d", i), 25)
		require.NoError(t, r.CastVote(context.Background(), subject.Poll.ID, voter.Guest.ID, option))
	}

	res, err := r.PollResults(subject.Guest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Subject", res.Guest.Name)
	assert.Equal(t, 6, res.TotalVotes)
	assert.Equal(t, []OptionResult{
		{Option: "Maybe", Count: 3, Percentage: 50},
		{Option: "No", Count: 2, Percentage: 33.3},
		{Option: "Yes", Count: 1, Percentage: 16.7},
		{Option: "Let me think about it", Count: 0, Percentage: 0},
	}, res.Results)
}

func TestPollResultsWithoutVotes(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore(), Options{})
	event := mustEvent(t, r, "Mixer")
	alice := mustRegister(t, r, event.ID, "Alice", 25)

	res, err := r.PollResults(alice.Guest.ID)
	require.NoError(t, err)
	require.Len(t, res.Results, len(models.PollOptions))
	for i, o := range res.Results {
		assert.Equal(t, models.PollOptions[i], o.Option, "ties keep option order")
		assert.Zero(t, o.Percentage)
	}

	_, err = r.PollResults("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
