// Package riddle holds the subject catalog and serves hints and answer checks
// for individual riddle rounds.
package riddle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

var (
	// ErrEmptyCatalog is returned when a catalog has no subjects.
	ErrEmptyCatalog = errors.New("riddle catalog is empty")
	// ErrNoActiveSubject is returned when a hint is requested for a round
	// that has no selected subject.
	ErrNoActiveSubject = errors.New("no active subject")
	// ErrUnknownSubject is returned when a round references a subject that
	// is not in the catalog.
	ErrUnknownSubject = errors.New("unknown subject")
)

// Catalog is an immutable, validated set of subjects.
type Catalog struct {
	subjects []domain.Subject
	byID     map[string]int
}

// NewCatalog validates subjects and builds a catalog. Identifiers are stored
// in normalized form and must be unique after normalization; every subject
// needs at least one non-empty hint.
func NewCatalog(subjects []domain.Subject) (*Catalog, error) {
	if len(subjects) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		subjects: make([]domain.Subject, 0, len(subjects)),
		byID:     make(map[string]int, len(subjects)),
	}
	for i, s := range subjects {
		id := domain.NormalizeSubjectID(s.ID)
		if id == "" {
			return nil, fmt.Errorf("subject %d: empty id", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("subject %q: duplicate id", id)
		}
		if len(s.Hints) == 0 {
			return nil, fmt.Errorf("subject %q: no hints", id)
		}
		hints := make([]string, len(s.Hints))
		for j, h := range s.Hints {
			h = strings.TrimSpace(h)
			if h == "" {
				return nil, fmt.Errorf("subject %q: hint %d is empty", id, j)
			}
			hints[j] = h
		}
		c.byID[id] = len(c.subjects)
		c.subjects = append(c.subjects, domain.Subject{ID: id, Hints: hints})
	}
	return c, nil
}

// Len returns the number of subjects.
func (c *Catalog) Len() int {
	return len(c.subjects)
}

// Lookup returns the subject with the given identifier.
func (c *Catalog) Lookup(id string) (domain.Subject, bool) {
	i, ok := c.byID[domain.NormalizeSubjectID(id)]
	if !ok {
		return domain.Subject{}, false
	}
	return c.subjects[i], true
}

// IDs returns subject identifiers in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.subjects))
	for i, s := range c.subjects {
		ids[i] = s.ID
	}
	return ids
}

func (c *Catalog) at(i int) domain.Subject {
	return c.subjects[i]
}
