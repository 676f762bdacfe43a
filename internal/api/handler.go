// Package api provides HTTP handlers for the sphinx API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

// Sessions is the read side of the session store used by the API.
type Sessions interface {
	Get(userID string) domain.UserSession
	CheckCooldown(userID string) (inCooldown bool, remainingSeconds int)
	Len() int
}

// Rulebook renders the rules text.
type Rulebook interface {
	Rules() string
}

// Settings is the game configuration exposed to the frontend.
type Settings struct {
	MaxAttempts     int
	Cooldown        time.Duration
	TelegramEnabled bool
	WebChatEnabled  bool
}

// Handler serves the JSON API.
type Handler struct {
	sessions Sessions
	rules    Rulebook
	settings Settings
	players  func() int
}

// NewHandler creates a new Handler. players reports connected web players and
// may be nil.
func NewHandler(sessions Sessions, rules Rulebook, settings Settings, players func() int) *Handler {
	if players == nil {
		players = func() int { return 0 }
	}
	return &Handler{
		sessions: sessions,
		rules:    rules,
		settings: settings,
		players:  players,
	}
}

// RegisterRoutes registers the health and game routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Get("/rules", h.GetRules)
		r.Get("/config", h.GetConfig)
	})
}

// RegisterImages serves the sphinx portraits from dir under /images/.
func RegisterImages(r chi.Router, dir string) {
	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(dir))))
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
