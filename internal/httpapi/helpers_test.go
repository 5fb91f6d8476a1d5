package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"speed-dating-events/internal/metrics"
	"speed-dating-events/internal/models"
	"speed-dating-events/internal/registry"
	"speed-dating-events/internal/session"
	"speed-dating-events/internal/storage"
)

const testPassword = "let-me-in"

type testEnv struct {
	reg    *registry.Registry
	server *Server
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	now := time.Date(2026, 2, 14, 19, 30, 0, 0, time.UTC)
	reg := registry.New(storage.NewMemoryStore(), registry.Options{
		BaseURL: "https://party.example.com",
		Now:     func() time.Time { return now },
	})
	require.NoError(t, reg.Start(context.Background()))
	t.Cleanup(reg.Close)

	server := New(Options{
		Registry: reg,
		Sessions: session.NewManager(testPassword, time.Hour),
		Metrics:  metrics.New(),
		Logger:   zerolog.Nop(),
		BaseURL:  "https://party.example.com",
		GinMode:  gin.TestMode,
	})
	return &testEnv{reg: reg, server: server}
}

// client keeps the session cookie between requests like a browser would
type client struct {
	t      *testing.T
	env    *testEnv
	cookie *http.Cookie
}

func (e *testEnv) newClient(t *testing.T) *client {
	return &client{t: t, env: e}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	res := PerformRequest(c.env.server.Handler(), method, path, body, c.cookie)
	for _, ck := range res.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return res
}

func (c *client) login() {
	c.t.Helper()
	res := c.do(http.MethodPost, "/api/admin/login", loginRequest{Password: testPassword})
	require.Equal(c.t, http.StatusOK, res.Code, res.Body.String())
}

func (c *client) register(eventID, name string) registerResponse {
	c.t.Helper()
	res := c.do(http.MethodPost, "/api/events/"+eventID+"/guests", registerRequest{
		Name: name, Age: 30, Important: "kindness", Goal: "friends",
	})
	require.Equal(c.t, http.StatusCreated, res.Code, res.Body.String())
	var out registerResponse
	decode(c.t, res, &out)
	return out
}

// PerformRequest sends a JSON request through the handler
func PerformRequest(h http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	reqBody := &bytes.Buffer{}
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			panic("failed to marshal request body: " + err.Error())
		}
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), v), res.Body.String())
}

func mustEvent(t *testing.T, reg *registry.Registry, name string) models.Event {
	t.Helper()
	e, err := reg.CreateEvent(context.Background(), name, "2026-02-14")
	require.NoError(t, err)
	return e
}
