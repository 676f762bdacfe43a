package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"

	"github.com/memecoinsphinx/sphinx/internal/game"
	"github.com/memecoinsphinx/sphinx/internal/identity"
	"github.com/memecoinsphinx/sphinx/internal/messenger"
)

const (
	frameError = "error"
	framePing  = "ping"
	framePong  = "pong"
	frameState = "state"

	maxFrameBytes = 4096
	writeTimeout  = 10 * time.Second
)

// Game handles one inbound event for a player.
type Game interface {
	Handle(ctx context.Context, userID string, ev game.Event) (game.Reply, error)
}

// Handler upgrades /ws/play requests and runs the chat loop of one player.
type Handler struct {
	game           Game
	sm             *SessionManager
	limiter        *RateLimiter
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a chat handler. limiter may be nil.
func NewHandler(g Game, sm *SessionManager, limiter *RateLimiter, allowedOrigins []string, isDev bool) *Handler {
	return &Handler{
		game:           g,
		sm:             sm,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("Chat connection request", "user_id", userID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(maxFrameBytes)

	h.sm.Register(userID, ws)
	defer h.sm.Unregister(userID, ws)

	h.readLoop(r.Context(), ws, userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			slog.Debug("Invalid chat frame", "error", err, "user_id", userID)
			h.reply(ctx, userID, Frame{Type: frameError, Text: "invalid message"})
			continue
		}

		if in.Type == framePing {
			h.reply(ctx, userID, Frame{Type: framePong})
			continue
		}

		if h.limiter != nil && !h.limiter.Allow(userID) {
			h.reply(ctx, userID, Frame{Type: frameError, Text: "rate limit exceeded"})
			continue
		}

		ev, ok := eventFromFrame(in)
		if !ok {
			h.reply(ctx, userID, Frame{Type: frameError, Text: fmt.Sprintf("unknown message type %q", in.Type)})
			continue
		}
		h.dispatch(ctx, userID, ev)
	}
}

// dispatch runs one event through the game. A panic in the game is contained
// to this event.
func (h *Handler) dispatch(ctx context.Context, userID string, ev game.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic while handling chat event", "panic", rec, "user_id", userID)
			h.deliver(ctx, userID, game.InternalErrorReply())
		}
	}()

	reply, err := h.game.Handle(ctx, userID, ev)
	if err != nil {
		slog.Error("Chat event failed", "error", err, "user_id", userID)
		reply = game.InternalErrorReply()
	}
	h.deliver(ctx, userID, reply)
}

func (h *Handler) deliver(ctx context.Context, userID string, reply game.Reply) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := messenger.Deliver(wctx, h.sm, userID, reply.Messages); err != nil {
		slog.Debug("Failed to deliver reply", "error", err, "user_id", userID)
		return
	}
	if reply.State != "" {
		if err := h.sm.Send(wctx, userID, Frame{Type: frameState, State: string(reply.State)}); err != nil {
			slog.Debug("Failed to send state frame", "error", err, "user_id", userID)
		}
	}
}

func (h *Handler) reply(ctx context.Context, userID string, f Frame) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := h.sm.Send(wctx, userID, f); err != nil {
		slog.Debug("Failed to send frame", "error", err, "user_id", userID)
	}
}

// eventFromFrame maps a browser frame to a game event. Text frames go through
// the same command parsing as chat input, so "/hint" typed by hand works.
func eventFromFrame(f Frame) (game.Event, bool) {
	switch f.Type {
	case "text":
		return game.ParseText(f.Text), true
	case "start", "hint", "rules", "stats", "surrender":
		return game.CommandEvent(f.Type, f.Text), true
	default:
		return nil, false
	}
}
