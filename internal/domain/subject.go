// Package domain contains core domain types for the riddle game.
package domain

import "strings"

// Subject is a catalog entry: the hidden answer of a riddle round and the
// ordered hints that lead to it.
type Subject struct {
	ID    string   `json:"id"`
	Hints []string `json:"hints"`
}

// NormalizeSubjectID returns the comparison form of a subject identifier or a
// guess: surrounding whitespace removed, upper case.
func NormalizeSubjectID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// RiddleRound tracks progress through one subject's hints for a single game.
type RiddleRound struct {
	// ID is unique per game. Payouts use it as their idempotency key.
	ID         string `json:"id"`
	SubjectID  string `json:"subject_id"`
	HintCursor int    `json:"hint_cursor"`
	Resolved   bool   `json:"resolved"`
}

// HasSubject reports whether the round references a selected subject.
func (r *RiddleRound) HasSubject() bool {
	return r != nil && r.SubjectID != ""
}
