package agent

import (
	"strings"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

const (
	MarkerVictory = "[VICTORY]"
	MarkerDefeat  = "[DEFEAT]"
	MarkerWrong   = "[WRONG]"
)

var markerOrder = []struct {
	marker  string
	outcome domain.Outcome
}{
	{MarkerVictory, domain.OutcomeVictory},
	{MarkerDefeat, domain.OutcomeDefeat},
	{MarkerWrong, domain.OutcomeWrongGuess},
}

// Classify reports the outcome a raw reply claims. Victory wins over defeat,
// defeat over wrong; without a marker the reply is plain.
func Classify(text string) domain.Outcome {
	for _, m := range markerOrder {
		if indexFold(text, m.marker) >= 0 {
			return m.outcome
		}
	}
	return domain.OutcomePlain
}

// StripMarkers removes every sentinel marker, in any letter case, and tidies
// the spaces left behind. Line breaks are kept.
func StripMarkers(text string) string {
	for _, m := range markerOrder {
		for i := indexFold(text, m.marker); i >= 0; i = indexFold(text, m.marker) {
			text = text[:i] + text[i+len(m.marker):]
		}
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// indexFold is a case-insensitive strings.Index for ASCII markers.
func indexFold(s, marker string) int {
	for i := 0; i+len(marker) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}
