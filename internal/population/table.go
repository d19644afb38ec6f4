// Package population holds the denominators used for per-capita rates: static
// reference tables per category and area populations inferred from the
// published case rates.
package population

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

//go:embed defaults.json
var defaultTables []byte

// Lookup resolves a group to its population.
type Lookup interface {
	Population(group string) (int64, bool)
}

// Table maps a group key to its population.
type Table map[string]int64

// Population implements Lookup.
func (t Table) Population(group string) (int64, bool) {
	p, ok := t[group]
	return p, ok && p > 0
}

// Groups returns the table keys in lexical order.
func (t Table) Groups() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reference is the static population data of one run.
type Reference struct {
	Source      string `json:"source"`
	County      int64  `json:"county" validate:"gt=0"`
	Departments Table  `json:"departments" validate:"required,dive,gt=0"`
	Age         Table  `json:"age" validate:"required,dive,gt=0"`
	Gender      Table  `json:"gender" validate:"required,dive,gt=0"`
	Race        Table  `json:"race" validate:"required,dive,gt=0"`
	Region      Table  `json:"region" validate:"dive,gt=0"`
}

// For returns the table for a category. Aggregate series use the county
// total under the empty group key. Area populations are inferred and have
// no reference table.
func (r *Reference) For(c domain.Category) Table {
	switch c {
	case domain.CategoryAggregate:
		return Table{"": r.County}
	case domain.CategoryAge:
		return r.Age
	case domain.CategoryGender:
		return r.Gender
	case domain.CategoryRace:
		return r.Race
	case domain.CategoryRegion:
		return r.Region
	default:
		return Table{}
	}
}

var loadDefault = sync.OnceValues(func() (*Reference, error) {
	return Parse(defaultTables)
})

// Default returns the reference tables embedded in the binary.
func Default() (*Reference, error) {
	return loadDefault()
}

// Load reads reference tables from a JSON file.
func Load(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("read population tables", err).WithContext("path", path)
	}
	ref, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load population %s: %w", path, err)
	}
	return ref, nil
}

// Parse decodes and validates reference tables.
func Parse(data []byte) (*Reference, error) {
	var ref Reference
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, apperrors.NewConfigError("decode population tables", err)
	}
	if err := validator.New().Struct(ref); err != nil {
		return nil, apperrors.NewConfigError("validate population tables", err)
	}
	if ref.Region == nil {
		ref.Region = Table{}
	}
	return &ref, nil
}
