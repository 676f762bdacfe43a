package domain

// PlayerStats aggregates a player's results for the lifetime of the process.
type PlayerStats struct {
	GamesPlayed   int `json:"games_played"`
	GamesWon      int `json:"games_won"`
	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`
	// WinAttempts is the sum of guesses taken across all won games.
	WinAttempts int `json:"win_attempts"`
}

// RecordWin counts a won game that took the given number of guesses.
func (p *PlayerStats) RecordWin(guesses int) {
	p.GamesWon++
	p.WinAttempts += guesses
	p.CurrentStreak++
	if p.CurrentStreak > p.BestStreak {
		p.BestStreak = p.CurrentStreak
	}
}

// RecordLoss resets the current streak.
func (p *PlayerStats) RecordLoss() {
	p.CurrentStreak = 0
}

// WinRate returns the percentage of played games that were won.
func (p PlayerStats) WinRate() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.GamesWon) / float64(p.GamesPlayed) * 100
}

// AverageWinAttempts returns the mean guesses per won game.
func (p PlayerStats) AverageWinAttempts() float64 {
	if p.GamesWon == 0 {
		return 0
	}
	return float64(p.WinAttempts) / float64(p.GamesWon)
}
