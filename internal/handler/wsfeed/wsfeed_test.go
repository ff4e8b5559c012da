package wsfeed_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/playperu/photohunt/internal/engine"
	"github.com/playperu/photohunt/internal/events"
	"github.com/playperu/photohunt/internal/handler/wsfeed"
	"github.com/playperu/photohunt/internal/store"
)

func allowOwner(_ context.Context, userID, sessionID string) error {
	switch {
	case sessionID == "broken":
		return fmt.Errorf("loading session: %w", store.ErrIntegrity)
	case sessionID != "s1":
		return store.ErrNotFound
	case userID != "u1":
		return engine.ErrNotOwner
	}
	return nil
}

func newServer(t *testing.T, broker *events.Broker) string {
	t.Helper()
	h := wsfeed.NewHandler(slog.Default(), broker, allowOwner)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return "ws" + srv.URL[len("http"):]
}

func TestFeedStreamsSessionEvents(t *testing.T) {
	broker := events.NewBroker()
	base := newServer(t, broker)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, base+"/sessions/s1?user=u1", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return broker.Subscribers("s1") == 1 },
		2*time.Second, 10*time.Millisecond)

	broker.Publish("s1", events.Event{Type: events.TaskCompleted, SessionID: "s1", TaskID: "task-1"})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, events.TaskCompleted, ev.Type)
	assert.Equal(t, "task-1", ev.TaskID)

	conn.Close(websocket.StatusNormalClosure, "done")
	require.Eventually(t, func() bool { return broker.Subscribers("s1") == 0 },
		2*time.Second, 10*time.Millisecond, "closing unsubscribes")
}

func TestFeedRejectsStrangers(t *testing.T) {
	base := newServer(t, events.NewBroker())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		path string
		want int
	}{
		{"/sessions/s1", http.StatusUnauthorized},
		{"/sessions/s1?user=u2", http.StatusForbidden},
		{"/sessions/nope?user=u1", http.StatusNotFound},
		{"/sessions/broken?user=u1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		_, resp, err := websocket.Dial(ctx, base+tt.path, nil)
		require.Error(t, err, tt.path)
		require.NotNil(t, resp, tt.path)
		assert.Equal(t, tt.want, resp.StatusCode, tt.path)
	}
}
