// Package wsfeed streams session events to WebSocket clients.
package wsfeed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/photohunt/internal/engine"
)

type Subscriber interface {
	Subscribe(sessionID string) chan []byte
	Unsubscribe(sessionID string, ch chan []byte)
}

// Authorizer returns nil when userID may watch the session.
type Authorizer func(ctx context.Context, userID, sessionID string) error

type Handler struct {
	logger    *slog.Logger
	sub       Subscriber
	authorize Authorizer
	lifetime  time.Duration
}

func NewHandler(logger *slog.Logger, sub Subscriber, authorize Authorizer) *Handler {
	return &Handler{
		logger:    logger,
		sub:       sub,
		authorize: authorize,
		lifetime:  time.Hour,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sessions/{sessionID}", h.feed)
	return r
}

// userID reads the caller identity. Browsers cannot set headers on a
// WebSocket handshake, so the query parameter is accepted as well.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("user")
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	uid := userID(r)
	if uid == "" {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	if err := h.authorize(r.Context(), uid, sessionID); err != nil {
		switch {
		case errors.Is(err, engine.ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.Is(err, engine.ErrNotOwner):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			h.logger.Error("authorizing websocket feed", "session_id", sessionID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(r.Context(), h.lifetime)
	defer cancel()
	// The feed is one-way; CloseRead cancels ctx when the peer goes away.
	ctx = conn.CloseRead(ctx)

	ch := h.sub.Subscribe(sessionID)
	defer h.sub.Unsubscribe(sessionID, ch)

	h.logger.Debug("websocket feed opened", "session_id", sessionID, "user_id", uid)
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg := <-ch:
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
