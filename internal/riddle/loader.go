package riddle

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

// LoadFile reads a JSON catalog: an array of {"id": "...", "hints": [...]}.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var subjects []domain.Subject
	if err := json.Unmarshal(data, &subjects); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, err)
	}
	c, err := NewCatalog(subjects)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return c, nil
}
