package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

var errEmptyCandidate = errors.New("model returned no text")

const personaPrompt = `You are the MemeCoinsphinx, a mysterious and playful creature that guards riddles about meme coins.
Stay in character:
- speak in a mysterious, slightly teasing manner
- use an emoji now and then
- mock players playfully when they fail
- never reveal, spell out or hint at the name of the coin

The game engine has already judged every player message. You only phrase the reply.
Start your reply with the marker you are given and keep it to one or two sentences.`

// GeminiResponder generates replies with a Google Gemini model.
type GeminiResponder struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// NewGeminiResponder creates a Gemini-backed responder.
func NewGeminiResponder(ctx context.Context, cfg Config, logger *slog.Logger) (*GeminiResponder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SetTemperature(cfg.Temperature)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(personaPrompt)}}

	logger.Info("Gemini responder ready", "model", cfg.ModelName)
	return &GeminiResponder{client: client, model: model, logger: logger}, nil
}

// Respond implements Responder.
func (g *GeminiResponder) Respond(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(renderPrompt(p)))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errEmptyCandidate
	}
	return text, nil
}

// Close implements Responder.
func (g *GeminiResponder) Close() {
	if err := g.client.Close(); err != nil {
		g.logger.Warn("failed to close gemini client", "error", err)
	}
}

func renderPrompt(p Prompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Player message: %q\n", p.Message)
	switch p.Outcome {
	case domain.OutcomeWrongGuess:
		fmt.Fprintf(&b, "Verdict: wrong guess\nMarker: %s\n", MarkerWrong)
	case domain.OutcomeVictory:
		fmt.Fprintf(&b, "Verdict: the player solved the riddle\nMarker: %s\n", MarkerVictory)
	case domain.OutcomeDefeat:
		fmt.Fprintf(&b, "Verdict: the player ran out of attempts\nMarker: %s\n", MarkerDefeat)
	default:
		b.WriteString("Verdict: none, just chat\nMarker: none\n")
	}
	fmt.Fprintf(&b, "Attempts remaining: %d\n", p.AttemptsRemaining)
	fmt.Fprintf(&b, "Hints revealed: %d\n", p.HintCursor)
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				text.WriteString(string(txt))
			}
		}
	}
	return strings.TrimSpace(text.String())
}
