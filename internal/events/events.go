// Package events publishes game outcomes for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an outcome event.
type Type string

const (
	TypeVictory       Type = "victory"
	TypeDefeat        Type = "defeat"
	TypeSurrender     Type = "surrender"
	TypeRewardSent    Type = "reward_sent"
	TypeRewardFailed  Type = "reward_failed"
	TypeRewardPending Type = "reward_pending"
)

// Event is one game outcome.
type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	UserID       string    `json:"user_id"`
	Subject      string    `json:"subject,omitempty"`
	AttemptsUsed int       `json:"attempts_used,omitempty"`
	Wallet       string    `json:"wallet,omitempty"`
	TxHash       string    `json:"tx_hash,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// New returns an event with a fresh id and timestamp.
func New(t Type, userID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers outcome events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
