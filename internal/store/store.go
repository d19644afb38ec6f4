// Package store persists parsed daily reports keyed by date and correction
// rule version. A report cached under one rule version is never served for
// another, so editing the rule tables invalidates exactly the affected cache.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

// Store is an append-only log of parsed reports.
type Store interface {
	// Get returns the report for date parsed under version.
	Get(ctx context.Context, date domain.Date, version string) (*domain.DailyReport, bool, error)
	// Put records report under its own date and rule version.
	Put(ctx context.Context, report *domain.DailyReport) error
	// List returns every report parsed under version in date order.
	List(ctx context.Context, version string) ([]*domain.DailyReport, error)
	// Versions lists the rule versions with at least one stored report.
	Versions(ctx context.Context) ([]string, error)
}

type key struct {
	date    domain.Date
	version string
}

func validateReport(report *domain.DailyReport) error {
	if report == nil {
		return apperrors.NewAppValidationError("report is required")
	}
	if report.Date.IsZero() {
		return apperrors.NewAppValidationError("report date is required")
	}
	if report.RuleVersion == "" {
		return apperrors.NewAppValidationError(fmt.Sprintf("report %s has no rule version", report.Date))
	}
	return nil
}

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[key]*domain.DailyReport
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[key]*domain.DailyReport)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, date domain.Date, version string) (*domain.DailyReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[key{date: date, version: version}]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

// Put implements Store. A second put for the same key is ignored.
func (s *MemoryStore) Put(_ context.Context, report *domain.DailyReport) error {
	if err := validateReport(report); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{date: report.Date, version: report.RuleVersion}
	if _, exists := s.reports[k]; exists {
		return nil
	}
	s.reports[k] = report.Clone()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, version string) ([]*domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.DailyReport, 0, len(s.reports))
	for k, r := range s.reports {
		if k.version == version {
			out = append(out, r.Clone())
		}
	}
	domain.SortReports(out)
	return out, nil
}

// Len returns the number of cached reports across all versions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Versions lists the rule versions with at least one cached report.
func (s *MemoryStore) Versions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	for k := range s.reports {
		seen[k.version] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
