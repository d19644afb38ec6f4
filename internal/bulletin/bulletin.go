// Package bulletin retrieves the plain text of daily bulletins, either from
// the public health department site or from a local cache directory.
package bulletin

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

// Bulletin is the text of one daily bulletin.
type Bulletin struct {
	Date domain.Date
	Text string
	// Source names the fetcher kind ("http" or "dir").
	Source string
	// Location is the URL or file the text was read from.
	Location string
}

// Fetcher returns the bulletin published for a date. A date with no
// bulletin yields a NOT_FOUND AppError.
type Fetcher interface {
	Fetch(ctx context.Context, date domain.Date) (*Bulletin, error)
}

// Lister enumerates the dates a fetcher can serve.
type Lister interface {
	Dates(ctx context.Context) ([]domain.Date, error)
}

// Index maps bulletin dates to the site's announcement ids.
type Index map[domain.Date]string

// LoadIndex reads an index from a YAML file of "YYYY-MM-DD": "id" pairs.
func LoadIndex(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError("read announcement index", err).WithContext("path", path)
	}
	ix, err := ParseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("load announcement index %s: %w", path, err)
	}
	return ix, nil
}

// ParseIndex decodes a YAML announcement index.
func ParseIndex(data []byte) (Index, error) {
	var raw map[string]string
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return nil, apperrors.NewConfigError("decode announcement index", err)
	}
	ix := make(Index, len(raw))
	for k, id := range raw {
		date, err := domain.ParseDate(k)
		if err != nil {
			return nil, apperrors.NewConfigError("invalid announcement index date", err).WithContext("date", k)
		}
		if id == "" {
			return nil, apperrors.NewConfigError("empty announcement id", nil).WithContext("date", k)
		}
		ix[date] = id
	}
	return ix, nil
}

// ID returns the announcement id of date.
func (ix Index) ID(date domain.Date) (string, bool) {
	id, ok := ix[date]
	return id, ok
}

// Dates lists the indexed dates in ascending order.
func (ix Index) Dates(context.Context) ([]domain.Date, error) {
	out := make([]domain.Date, 0, len(ix))
	for d := range ix {
		out = append(out, d)
	}
	sortDates(out)
	return out, nil
}

func sortDates(dates []domain.Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}

func notFound(date domain.Date) error {
	return apperrors.NewNotFoundError("bulletin for " + date.String())
}
