package agent

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

var wrongGuessLines = []string{
	"Wrong, mortal! The sands of the desert laugh at you.",
	"Hah! That coin is not the one I guard.",
	"Your guess crumbles like an ancient ledger. Try again.",
	"The sphinx yawns. That answer is beneath me.",
	"No! Even a rugged token would have guessed better.",
}

var idleLines = []string{
	"The sphinx listens, but speaks only in riddles.",
	"Mortal words echo in my chamber... and fade.",
}

// ScriptedResponder answers from a fixed set of in-character lines. It needs
// no network and never fails, which makes it the default responder.
type ScriptedResponder struct {
	pick func(n int) int
}

// NewScriptedResponder creates a scripted responder. A nil pick uses math/rand/v2.
func NewScriptedResponder(pick func(n int) int) *ScriptedResponder {
	if pick == nil {
		pick = rand.IntN
	}
	return &ScriptedResponder{pick: pick}
}

// Respond implements Responder.
func (s *ScriptedResponder) Respond(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch p.Outcome {
	case domain.OutcomeWrongGuess:
		line := wrongGuessLines[s.pick(len(wrongGuessLines))]
		return fmt.Sprintf("%s %s 😼 %s", MarkerWrong, line, attemptsLeft(p.AttemptsRemaining)), nil
	default:
		return idleLines[s.pick(len(idleLines))], nil
	}
}

// Close implements Responder.
func (s *ScriptedResponder) Close() {}

func attemptsLeft(n int) string {
	if n == 1 {
		return "You have 1 attempt left."
	}
	return fmt.Sprintf("You have %d attempts left.", n)
}
