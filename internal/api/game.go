package api

import (
	"net/http"

	"github.com/memecoinsphinx/sphinx/internal/domain"
	"github.com/memecoinsphinx/sphinx/internal/identity"
)

// sessionView is the public form of a session. It never carries the subject
// of a running round.
type sessionView struct {
	UserID            string    `json:"user_id"`
	State             string    `json:"state"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	CooldownSeconds   int       `json:"cooldown_seconds"`
	HintsGiven        int       `json:"hints_given"`
	Stats             statsView `json:"stats"`
}

type statsView struct {
	domain.PlayerStats
	WinRate            float64 `json:"win_rate"`
	AverageWinAttempts float64 `json:"average_win_attempts"`
}

// GetSession returns the caller's session. An expired cooldown is cleared
// first.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	_, remaining := h.sessions.CheckCooldown(userID)
	s := h.sessions.Get(userID)

	JSON(w, http.StatusOK, sessionView{
		UserID:            s.UserID,
		State:             string(s.State),
		AttemptsRemaining: s.AttemptsRemaining,
		CooldownSeconds:   remaining,
		HintsGiven:        s.HintsGiven,
		Stats: statsView{
			PlayerStats:        s.Stats,
			WinRate:            s.Stats.WinRate(),
			AverageWinAttempts: s.Stats.AverageWinAttempts(),
		},
	})
}

// GetRules returns the rules text.
func (h *Handler) GetRules(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"rules": h.rules.Rules()})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"max_attempts":     h.settings.MaxAttempts,
		"cooldown_seconds": domain.CeilSeconds(h.settings.Cooldown),
		"telegram_enabled": h.settings.TelegramEnabled,
		"webchat_enabled":  h.settings.WebChatEnabled,
	})
}

// Health returns the health status of the API.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
		"stats": map[string]int{
			"sessions":          h.sessions.Len(),
			"connected_players": h.players(),
		},
	})
}
