package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speed-dating-events/internal/models"
	"speed-dating-events/internal/registry"
)

func TestAdminRequiresLogin(t *testing.T) {
	env := setupTestServer(t)
	event := mustEvent(t, env.reg, "Mixer")
	c := env.newClient(t)

	res := c.do(http.MethodGet, "/api/admin/events/"+event.ID+"/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = c.do(http.MethodPost, "/api/admin/login", loginRequest{Password: "guess"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	c.login()
	res = c.do(http.MethodGet, "/api/admin/events/"+event.ID+"/dashboard", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var d registry.Dashboard
	decode(t, res, &d)
	assert.Equal(t, "Mixer", d.Event.Name)

	other := env.newClient(t)
	res = other.do(http.MethodGet, "/api/admin/events/"+event.ID+"/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code, "admin access belongs to the session that logged in")

	c.do(http.MethodPost, "/api/admin/logout", nil)
	res = c.do(http.MethodGet, "/api/admin/events/"+event.ID+"/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminEventLifecycle(t *testing.T) {
	env := setupTestServer(t)
	first := mustEvent(t, env.reg, "Mixer")
	c := env.newClient(t)
	c.login()

	res := c.do(http.MethodDelete, "/api/admin/events/"+first.ID+"?confirm=true", nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = c.do(http.MethodPost, "/api/admin/events", eventRequest{Name: "Second", Date: "2026-03-01"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var second models.Event
	decode(t, res, &second)

	res = c.do(http.MethodPost, "/api/admin/events", eventRequest{Name: "Bad", Date: "March"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = c.do(http.MethodPatch, "/api/admin/events/"+second.ID, eventRequest{Name: "Renamed"})
	require.Equal(t, http.StatusOK, res.Code)
	var edited models.Event
	decode(t, res, &edited)
	assert.Equal(t, "Renamed", edited.Name)
	assert.Equal(t, "2026-03-01", edited.Date)

	c.register(first.ID, "Alice")

	res = c.do(http.MethodDelete, "/api/admin/events/"+first.ID, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = c.do(http.MethodDelete, "/api/admin/events/"+first.ID+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body map[string]string
	decode(t, res, &body)
	assert.Equal(t, second.ID, body["next"])
	assert.Empty(t, env.reg.Guests(first.ID))
}

func TestAdminPollResults(t *testing.T) {
	env := setupTestServer(t)
	event := mustEvent(t, env.reg, "Mixer")
	c := env.newClient(t)
	alice := c.register(event.ID, "Alice")
	bob := c.register(event.ID, "Bob")
	cara := c.register(event.ID, "Cara")

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/polls/"+alice.Poll.ID+"/votes", voteRequest{VoterID: bob.Guest.ID, Option: "No"}).Code)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/polls/"+alice.Poll.ID+"/votes", voteRequest{VoterID: cara.Guest.ID, Option: "No"}).Code)

	path := "/api/admin/guests/" + alice.Guest.ID + "/results"
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, path, nil).Code)

	c.login()
	res := c.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body registry.PollResults
	decode(t, res, &body)
	assert.Equal(t, 2, body.TotalVotes)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, registry.OptionResult{Option: "No", Count: 2, Percentage: 100}, body.Results[0])

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/admin/guests/missing/results", nil).Code)
}
