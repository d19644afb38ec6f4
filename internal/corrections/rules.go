// Package corrections holds the curated overlay that repairs known defects in
// published bulletins. A RuleSet is immutable once loaded and is passed
// explicitly to the parser and the series builders.
package corrections

import (
	"regexp"
	"sort"

	"lacphcli/pkg/contracts/domain"
)

// Substitution is a find/replace applied to raw bulletin text before parsing.
type Substitution struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// FieldOverride replaces one keyed value of a parsed report.
type FieldOverride struct {
	Group domain.ReportGroup
	Key   string
	Value int64
}

// Headline is a pair of daily new case and death figures.
type Headline struct {
	Cases  domain.Count `json:"cases"`
	Deaths domain.Count `json:"deaths"`
}

// RuleSet is a versioned set of corrections keyed by date. A date absent
// from every table passes through untouched.
type RuleSet struct {
	version       string
	substitutions map[domain.Date][]Substitution
	overrides     map[domain.Date][]FieldOverride
	headlines     map[domain.Date]Headline
	noReports     map[domain.Date]Headline
	exclusions    map[domain.Date]map[string]struct{}
	areaOverrides map[domain.Date][]domain.AreaRow
	outliers      map[string]struct{}
}

// Empty returns a rule set with no corrections.
func Empty(version string) *RuleSet {
	return &RuleSet{
		version:       version,
		substitutions: map[domain.Date][]Substitution{},
		overrides:     map[domain.Date][]FieldOverride{},
		headlines:     map[domain.Date]Headline{},
		noReports:     map[domain.Date]Headline{},
		exclusions:    map[domain.Date]map[string]struct{}{},
		areaOverrides: map[domain.Date][]domain.AreaRow{},
		outliers:      map[string]struct{}{},
	}
}

// Version identifies the rule tables. Reports parsed under one version are
// never reused under another.
func (rs *RuleSet) Version() string {
	return rs.version
}

// Substitute applies every substitution listed for date to text, in order.
// It returns the rewritten text and the number of rules applied.
func (rs *RuleSet) Substitute(date domain.Date, text string) (string, int) {
	subs := rs.substitutions[date]
	for _, s := range subs {
		text = s.Pattern.ReplaceAllString(text, s.Replacement)
	}
	return text, len(subs)
}

// ApplyOverrides patches report with every field override listed for its
// date and returns the number of fields written.
func (rs *RuleSet) ApplyOverrides(report *domain.DailyReport) int {
	overrides := rs.overrides[report.Date]
	for _, o := range overrides {
		// groups are checked at load time
		group, _ := report.Group(o.Group)
		group[o.Key] = domain.Known(o.Value)
	}
	return len(overrides)
}

// Headline returns the hardcoded headline figures for date, if any.
func (rs *RuleSet) Headline(date domain.Date) (Headline, bool) {
	h, ok := rs.headlines[date]
	return h, ok
}

// NoReport returns the externally sourced daily change figures for a date on
// which no usable bulletin was published.
func (rs *RuleSet) NoReport(date domain.Date) (Headline, bool) {
	h, ok := rs.noReports[date]
	return h, ok
}

// NoReportDates lists every no-report date in ascending order.
func (rs *RuleSet) NoReportDates() []domain.Date {
	dates := make([]domain.Date, 0, len(rs.noReports))
	for d := range rs.noReports {
		dates = append(dates, d)
	}
	sortDates(dates)
	return dates
}

// Excluded reports whether the area count published on date is known to be
// corrupt and must be carried forward from the previous observation.
func (rs *RuleSet) Excluded(date domain.Date, area string) bool {
	_, ok := rs.exclusions[date][area]
	return ok
}


// AreaOverride returns the area rows supplied for date, if any. They take
// precedence over parsed rows of the same name.
func (rs *RuleSet) AreaOverride(date domain.Date) ([]domain.AreaRow, bool) {
	rows, ok := rs.areaOverrides[date]
	if !ok {
		return nil, false
	}
	return append([]domain.AreaRow(nil), rows...), true
}

// IsOutbreakOutlier reports whether area is always treated as dominated by a
// correctional facility outbreak.
func (rs *RuleSet) IsOutbreakOutlier(area string) bool {
	_, ok := rs.outliers[area]
	return ok
}

// Stats summarises the size of each table.
type Stats struct {
	Version       string `json:"version"`
	Substitutions int    `json:"substitutions"`
	Overrides     int    `json:"overrides"`
	Headlines     int    `json:"headlines"`
	NoReports     int    `json:"no_reports"`
	Exclusions    int    `json:"exclusions"`
	AreaOverrides int    `json:"area_overrides"`
	Outliers      int    `json:"outliers"`
}

// Stats returns per-table rule counts.
func (rs *RuleSet) Stats() Stats {
	s := Stats{
		Version:       rs.version,
		Headlines:     len(rs.headlines),
		NoReports:     len(rs.noReports),
		AreaOverrides: len(rs.areaOverrides),
		Outliers:      len(rs.outliers),
	}
	for _, subs := range rs.substitutions {
		s.Substitutions += len(subs)
	}
	for _, o := range rs.overrides {
		s.Overrides += len(o)
	}
	for _, e := range rs.exclusions {
		s.Exclusions += len(e)
	}
	return s
}

func sortDates(dates []domain.Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
