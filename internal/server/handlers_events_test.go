package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/painting-generator/internal/events"
)

// openStream connects to the event endpoint and returns a reader positioned at the body.
func openStream(t *testing.T, ctx context.Context, baseURL string, userID uuid.UUID, token string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/events/"+userID.String()+"?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

// nextFrame returns the next non-empty line.
func nextFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimRight(line, "\n"); line != "" {
			return line
		}
	}
}

func TestEvents_StreamsUserEvents(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	otherID, _ := env.user(t, "renoir")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, body := openStream(t, ctx, ts.URL, userID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	assert.Equal(t, `data: {"type":"connected","message":"SSE connection established"}`, nextFrame(t, body))

	titleID := uuid.New()
	env.bus.Publish(otherID, events.IdeasComplete{TitleID: uuid.New()})
	env.bus.Publish(userID, events.IdeaProgress{TitleID: titleID, Current: 1, Total: 3})

	frame := nextFrame(t, body)
	require.True(t, strings.HasPrefix(frame, "data: "), frame)
	e, err := events.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")))
	require.NoError(t, err)
	assert.Equal(t, events.IdeaProgress{TitleID: titleID, Current: 1, Total: 3}, e)

	cancel()
	assert.Eventually(t, func() bool { return env.bus.Subscribers(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_KeepAlive(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.KeepAlive = 10 * time.Millisecond })
	userID, token := env.user(t, "monet")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, body := openStream(t, ctx, ts.URL, userID, token)
	assert.True(t, strings.HasPrefix(nextFrame(t, body), "data: "))
	assert.Equal(t, ": keep-alive", nextFrame(t, body))
}

func TestEvents_ShutdownEndsStream(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	_, body := openStream(t, context.Background(), ts.URL, userID, token)
	nextFrame(t, body)

	env.server.closeStreams()
	assert.Eventually(t, func() bool { return env.bus.Subscribers(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_Authorization(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	otherID, _ := env.user(t, "renoir")

	rec := env.do(t, http.MethodGet, "/api/events/"+otherID.String()+"?token="+token, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/events/"+userID.String()+"?token=garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/events/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, env.bus.Subscribers(userID))
	assert.Zero(t, env.bus.Subscribers(otherID))
}
