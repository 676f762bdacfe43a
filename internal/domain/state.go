package domain

// GameState is the lifecycle state of a user's session.
type GameState string

const (
	StateNotStarted       GameState = "not_started"
	StateInProgress       GameState = "in_progress"
	StateWaitingForWallet GameState = "waiting_for_wallet"
	StateCooldown         GameState = "cooldown"
)

// Outcome classifies the result of handling one inbound event.
type Outcome string

const (
	OutcomePlain      Outcome = "plain"
	OutcomeWrongGuess Outcome = "wrong_guess"
	OutcomeVictory    Outcome = "victory"
	OutcomeDefeat     Outcome = "defeat"
)
