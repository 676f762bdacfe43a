package riddle

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

// Picker returns a uniformly distributed integer in [0, n).
type Picker func(n int) int

// Database draws subjects and serves hints. It holds no per-game progress:
// every game owns its RiddleRound, so concurrent games never share a cursor.
type Database struct {
	catalog *Catalog
	pick    Picker
}

// NewDatabase creates a database over catalog. A nil pick uses math/rand/v2.
func NewDatabase(catalog *Catalog, pick Picker) *Database {
	if pick == nil {
		pick = rand.IntN
	}
	return &Database{catalog: catalog, pick: pick}
}

// Catalog returns the underlying catalog.
func (d *Database) Catalog() *Catalog {
	return d.catalog
}

// NewRound selects a subject uniformly at random, independent of earlier
// selections, and returns a round with its hint cursor at 0.
func (d *Database) NewRound() (domain.RiddleRound, error) {
	if d.catalog == nil || d.catalog.Len() == 0 {
		return domain.RiddleRound{}, ErrEmptyCatalog
	}
	s := d.catalog.at(d.pick(d.catalog.Len()))
	return domain.RiddleRound{ID: uuid.NewString(), SubjectID: s.ID}, nil
}

// NextHint returns the hint at the round's cursor and advances it. Once all
// hints are served it returns ok=false, and keeps doing so on every later call.
func (d *Database) NextHint(round *domain.RiddleRound) (hint string, ok bool, err error) {
	if !round.HasSubject() {
		return "", false, ErrNoActiveSubject
	}
	s, found := d.catalog.Lookup(round.SubjectID)
	if !found {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownSubject, round.SubjectID)
	}
	if round.HintCursor >= len(s.Hints) {
		return "", false, nil
	}
	hint = s.Hints[round.HintCursor]
	round.HintCursor++
	return hint, true, nil
}

// HintsLeft returns how many hints the round has not served yet.
func (d *Database) HintsLeft(round *domain.RiddleRound) int {
	if !round.HasSubject() {
		return 0
	}
	s, ok := d.catalog.Lookup(round.SubjectID)
	if !ok || round.HintCursor >= len(s.Hints) {
		return 0
	}
	return len(s.Hints) - round.HintCursor
}

// CheckAnswer reports whether guess names subjectID. Comparison is exact
// after trimming whitespace and ignoring case.
func (d *Database) CheckAnswer(subjectID, guess string) bool {
	want := domain.NormalizeSubjectID(subjectID)
	return want != "" && want == domain.NormalizeSubjectID(guess)
}
