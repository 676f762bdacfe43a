package domain

import (
	"math"
	"time"
)

// UserSession holds the game state for one user.
type UserSession struct {
	UserID            string       `json:"user_id"`
	State             GameState    `json:"state"`
	AttemptsRemaining int          `json:"attempts_remaining"`
	CooldownUntil     time.Time    `json:"cooldown_until,omitzero"`
	Round             *RiddleRound `json:"round,omitempty"`
	// LastSubjectID survives the round so defeat and victory messages can name it.
	LastSubjectID string      `json:"-"`
	HintsGiven    int         `json:"hints_given"`
	Stats         PlayerStats `json:"stats"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CooldownRemaining returns the time left until the cooldown expires.
// Returns 0 outside of StateCooldown or once the expiry has passed.
func (s *UserSession) CooldownRemaining(now time.Time) time.Duration {
	if s.State != StateCooldown {
		return 0
	}
	left := s.CooldownUntil.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a deep copy safe to hand out of the session store.
func (s *UserSession) Clone() UserSession {
	c := *s
	if s.Round != nil {
		round := *s.Round
		c.Round = &round
	}
	return c
}

// CeilSeconds converts a duration to whole seconds, rounding up.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
