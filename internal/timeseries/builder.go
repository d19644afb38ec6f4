// Package timeseries derives per-category series from an ordered sequence of
// daily reports: daily change, trailing rolling averages and per-capita
// rates. Series are derived data and are rebuilt from the full report set on
// every run.
package timeseries

import (
	"log/slog"

	"lacphcli/internal/corrections"
	"lacphcli/internal/dataprocessing"
	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/population"
	"lacphcli/pkg/contracts/domain"
)

// Options tunes category specific rules.
type Options struct {
	// AgeCutover is the first date reported with the fine age buckets.
	AgeCutover domain.Date
	// OutbreakRecordedFrom is the first date the outbreak marker is
	// meaningful; pseudo-areas report false from then on.
	OutbreakRecordedFrom domain.Date
	// An area is kept when it was published on more than ActiveMinDays of
	// the ActiveWindowDays days ending at the last report.
	ActiveWindowDays int
	ActiveMinDays    int
}

// DefaultOptions returns the options matching the published history.
func DefaultOptions() Options {
	return Options{
		AgeCutover:           AgeCutover,
		OutbreakRecordedFrom: dataprocessing.OutbreakRecordedFrom,
		ActiveWindowDays:     60,
		ActiveMinDays:        50,
	}
}

// Builder derives series from reports. It holds no state between calls.
type Builder struct {
	ref    *population.Reference
	rules  *corrections.RuleSet
	opts   Options
	logger *slog.Logger
}

// NewBuilder creates a builder over reference populations and a rule set.
func NewBuilder(ref *population.Reference, rules *corrections.RuleSet, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = corrections.Empty("none")
	}
	if ref == nil {
		ref = &population.Reference{}
	}
	return &Builder{
		ref:    ref,
		rules:  rules,
		opts:   opts,
		logger: logger.With(slog.String("component", "series_builder")),
	}
}

// Rules returns the rule set the builder applies.
func (b *Builder) Rules() *corrections.RuleSet {
	return b.rules
}

// checkOrder enforces strictly ascending report dates.
func checkOrder(category domain.Category, reports []*domain.DailyReport) error {
	for i := 1; i < len(reports); i++ {
		prev, cur := reports[i-1].Date, reports[i].Date
		switch {
		case cur == prev:
			return &apperrors.DuplicateDate{Date: cur, Category: category}
		case cur.Before(prev):
			return &apperrors.OrderError{Date: cur, Previous: prev, Category: category}
		}
	}
	return nil
}
