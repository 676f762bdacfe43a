package riddle

import (
	"fmt"

	"github.com/memecoinsphinx/sphinx/internal/domain"
	supa "github.com/supabase-community/supabase-go"
)

// subjectRow matches a row of the catalog table in Supabase.
type subjectRow struct {
	Symbol string   `json:"symbol"`
	Hints  []string `json:"hints"`
	Active *bool    `json:"active,omitempty"`
}

// LoadSupabase reads the catalog from a Supabase table with columns
// symbol (text), hints (text[] or jsonb) and an optional active flag.
// The catalog is read once at startup and never written back.
func LoadSupabase(url, key, table string) (*Catalog, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to supabase: %w", err)
	}

	var rows []subjectRow
	if _, err := client.From(table).Select("symbol,hints,active", "", false).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("query catalog table %s: %w", table, err)
	}
	return catalogFromRows(rows)
}

func catalogFromRows(rows []subjectRow) (*Catalog, error) {
	subjects := make([]domain.Subject, 0, len(rows))
	for _, r := range rows {
		if r.Active != nil && !*r.Active {
			continue
		}
		subjects = append(subjects, domain.Subject{ID: r.Symbol, Hints: r.Hints})
	}
	return NewCatalog(subjects)
}
