package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVote(t *testing.T) {
	env := setupTestServer(t)
	event := mustEvent(t, env.reg, "Mixer")
	c := env.newClient(t)
	alice := c.register(event.ID, "Alice")
	bob := c.register(event.ID, "Bob")

	res := c.do(http.MethodPost, "/api/polls/"+bob.Poll.ID+"/votes", voteRequest{VoterID: alice.Guest.ID, Option: "Yes"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body struct {
		Points int `json:"points"`
	}
	decode(t, res, &body)
	assert.Equal(t, 10, body.Points)

	res = c.do(http.MethodPost, "/api/polls/"+bob.Poll.ID+"/votes", voteRequest{VoterID: alice.Guest.ID, Option: "No"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = c.do(http.MethodPost, "/api/polls/"+alice.Poll.ID+"/votes", voteRequest{VoterID: alice.Guest.ID, Option: "Yes"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = c.do(http.MethodPost, "/api/polls/"+alice.Poll.ID+"/votes", voteRequest{VoterID: bob.Guest.ID, Option: "Perhaps"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = c.do(http.MethodPost, "/api/polls/missing/votes", voteRequest{VoterID: bob.Guest.ID, Option: "Yes"})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = c.do(http.MethodPost, "/api/polls/"+alice.Poll.ID+"/votes", voteRequest{Option: "Yes"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = c.do(http.MethodGet, "/api/guests/"+alice.Guest.ID+"/polls", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var polls []pollView
	decode(t, res, &polls)
	require.Len(t, polls, 1)
	assert.True(t, polls[0].HasVoted)
}
