package game

import "strings"

// Event is an inbound player action. The set is closed: the orchestrator
// handles exactly the types declared here.
type Event interface {
	event()
}

// StartEvent begins a new game.
type StartEvent struct{}

// TextEvent is free text: a guess, a wallet address or chatter, depending on
// the session state.
type TextEvent struct {
	Text string
}

// HintEvent asks for the next hint without spending an attempt.
type HintEvent struct{}

// RulesEvent asks for the rules.
type RulesEvent struct{}

// StatsEvent asks for the player's statistics.
type StatsEvent struct{}

// SurrenderEvent gives up the current game.
type SurrenderEvent struct{}

func (StartEvent) event()     {}
func (TextEvent) event()      {}
func (HintEvent) event()      {}
func (RulesEvent) event()     {}
func (StatsEvent) event()     {}
func (SurrenderEvent) event() {}

// ParseText maps chat input to an event. Commands may carry a bot suffix
// ("/start@SphinxBot"); unknown commands are treated as text.
func ParseText(text string) Event {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return TextEvent{Text: text}
	}
	cmd, _, _ := strings.Cut(trimmed[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return CommandEvent(cmd, text)
}

// CommandEvent maps a command name without its slash to an event. Anything
// unknown becomes a TextEvent carrying fallback.
func CommandEvent(cmd, fallback string) Event {
	switch strings.ToLower(cmd) {
	case "start":
		return StartEvent{}
	case "hint":
		return HintEvent{}
	case "rules", "help":
		return RulesEvent{}
	case "stats":
		return StatsEvent{}
	case "surrender":
		return SurrenderEvent{}
	default:
		return TextEvent{Text: fallback}
	}
}
