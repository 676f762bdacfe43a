package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

// ErrEmptyReply is returned when a responder reply carries no text once the
// markers are removed.
var ErrEmptyReply = errors.New("responder returned an empty reply")

// Service wraps a Responder with a per-call timeout, marker handling and
// conversation logging.
type Service struct {
	responder Responder
	timeout   time.Duration
	log       ConversationLogger
	logger    *slog.Logger
}

// NewService creates a responder service. A non-positive timeout uses the
// default from DefaultConfig.
func NewService(responder Responder, timeout time.Duration, conversationLogger ConversationLogger, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		responder: responder,
		timeout:   timeout,
		log:       conversationLogger,
		logger:    logger,
	}
}

// Respond asks the responder for a reply. Markers are stripped from the text;
// a marker that disagrees with the engine's outcome is only logged.
func (s *Service) Respond(ctx context.Context, p Prompt) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.log.Log(ConversationLogEvent{
		UserID:     p.UserID,
		SessionID:  "game",
		Channel:    "responder",
		Direction:  "outbound",
		EventType:  "player_message",
		ContentRaw: p.Message,
		Meta: map[string]any{
			"outcome":            p.Outcome,
			"attempts_remaining": p.AttemptsRemaining,
		},
	})

	started := time.Now()
	raw, err := s.responder.Respond(ctx, p)
	if err != nil {
		s.logger.Warn("responder failed",
			"user_id", p.UserID,
			"outcome", p.Outcome,
			"elapsed", time.Since(started),
			"error", err,
		)
		return Response{}, fmt.Errorf("respond: %w", err)
	}

	resp := Response{Text: StripMarkers(raw), Outcome: Classify(raw)}
	if resp.Text == "" {
		s.logger.Warn("responder returned no usable text", "user_id", p.UserID, "raw_length", len(raw))
		return Response{}, ErrEmptyReply
	}
	if resp.Outcome != domain.OutcomePlain && resp.Outcome != p.Outcome {
		s.logger.Info("responder marker disagrees with game outcome",
			"user_id", p.UserID,
			"outcome", p.Outcome,
			"marker_outcome", resp.Outcome,
		)
	}

	s.log.Log(ConversationLogEvent{
		UserID:     p.UserID,
		SessionID:  "game",
		Channel:    "responder",
		Direction:  "inbound",
		EventType:  "sphinx_reply",
		ContentRaw: raw,
		Content:    resp.Text,
		Meta: map[string]any{
			"marker_outcome": resp.Outcome,
			"elapsed_ms":     time.Since(started).Milliseconds(),
		},
	})
	return resp, nil
}

// Close releases the underlying responder.
func (s *Service) Close() {
	if s.responder != nil {
		s.responder.Close()
	}
}
