// Package agent produces the sphinx's free-text replies.
package agent

import (
	"time"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

// Prompt is the game context handed to a Responder for one reply.
type Prompt struct {
	UserID            string
	Message           string
	AttemptsRemaining int
	HintCursor        int
	// Outcome is the engine's verdict for the message. Responders phrase
	// the reply; they never decide it.
	Outcome domain.Outcome
}

// Response is a responder reply with sentinel markers removed.
type Response struct {
	Text string `json:"text"`
	// Outcome is what the markers in the raw reply claimed, OutcomePlain
	// when none were present.
	Outcome domain.Outcome `json:"outcome"`
}

// Config holds responder configuration.
type Config struct {
	Provider    string
	ModelName   string
	APIKey      string
	Temperature float32
	Address     string
	Timeout     time.Duration
}

// DefaultConfig returns default responder configuration.
func DefaultConfig() Config {
	return Config{
		Provider:    "scripted",
		ModelName:   "gemini-1.5-flash",
		Temperature: 0.7,
		Timeout:     15 * time.Second,
	}
}
