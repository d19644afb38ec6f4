package store

import (
	"context"
	"fmt"

	"lacphcli/pkg/contracts/domain"
)

// ParseFunc produces the report for one date.
type ParseFunc func(ctx context.Context) (*domain.DailyReport, error)

// GetOrParse returns the report cached for (date, version) or runs parse and
// caches its result. hit reports whether the cache served the request. A
// parse error is returned unchanged and nothing is cached.
func GetOrParse(ctx context.Context, s Store, date domain.Date, version string, parse ParseFunc) (report *domain.DailyReport, hit bool, err error) {
	cached, ok, err := s.Get(ctx, date, version)
	if err != nil {
		return nil, false, fmt.Errorf("get cached report %s: %w", date, err)
	}
	if ok {
		return cached, true, nil
	}

	report, err = parse(ctx)
	if err != nil {
		return nil, false, err
	}
	if report.RuleVersion != version {
		return nil, false, fmt.Errorf("report %s parsed under rule version %q, want %q", date, report.RuleVersion, version)
	}
	if err := s.Put(ctx, report); err != nil {
		return nil, false, fmt.Errorf("cache report %s: %w", date, err)
	}
	return report, false, nil
}
