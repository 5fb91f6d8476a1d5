package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speed-dating-events/internal/models"
)

func TestGuestLandingUnknownIsRetryable(t *testing.T) {
	env := setupTestServer(t)
	res := env.newClient(t).do(http.MethodGet, "/guest/GUEST-nobody", nil)

	require.Equal(t, http.StatusNotFound, res.Code)
	var body errorResponse
	decode(t, res, &body)
	assert.Equal(t, "GUEST_NOT_FOUND", body.Code)
	assert.True(t, body.Retryable)
}

func TestRegisterAndLand(t *testing.T) {
	env := setupTestServer(t)
	event := mustEvent(t, env.reg, "Mixer")
	c := env.newClient(t)

	alice := c.register(event.ID, "Alice")
	bob := c.register(event.ID, "Bob")
	assert.Equal(t, "https://party.example.com/guest/"+alice.Guest.GuestID, alice.QRURL)
	assert.Equal(t, 1, bob.Poll.MaxVotes)
	assert.Empty(t, bob.SyncWarning)

	res := c.do(http.MethodGet, "/guest/"+alice.Guest.GuestID, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var page guestPage
	decode(t, res, &page)
	assert.Equal(t, "Alice", page.Guest.Name)
	assert.Equal(t, "Mixer", page.Event.Name)
	require.Len(t, page.Polls, 1)
	assert.Equal(t, bob.Poll.ID, page.Polls[0].ID)
	assert.False(t, page.Polls[0].HasVoted)

	res = c.do(http.MethodGet, "/guest/"+alice.Guest.GuestID+"/qr.png", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/png", res.Header().Get("Content-Type"))
	assert.NotEmpty(t, res.Body.Bytes())

	res = c.do(http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var events []models.Event
	decode(t, res, &events)
	assert.Len(t, events, 1)
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestServer(t)
	event := mustEvent(t, env.reg, "Mixer")
	c := env.newClient(t)

	res := c.do(http.MethodPost, "/api/events/"+event.ID+"/guests", registerRequest{Name: "", Age: 30})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = c.do(http.MethodPost, "/api/events/missing/guests", registerRequest{Name: "Alice", Age: 30})
	require.Equal(t, http.StatusBadRequest, res.Code)
	var body errorResponse
	decode(t, res, &body)
	assert.Equal(t, "VALIDATION", body.Code)

	assert.Empty(t, env.reg.Guests(event.ID))
}

func TestNoRoute(t *testing.T) {
	env := setupTestServer(t)
	res := env.newClient(t).do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)
	c := env.newClient(t)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", nil).Code)
	res := c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "go_goroutines")
}
