package population

import (
	"math"

	"lacphcli/pkg/contracts/domain"
)

// Exclusions reports (date, area) pairs whose published figures are corrupt.
type Exclusions interface {
	Excluded(date domain.Date, area string) bool
}

// Estimate is the population of one area and the observation it came from.
type Estimate struct {
	Population int64       `json:"population"`
	Date       domain.Date `json:"date"`
	Cases      int64       `json:"cases"`
	Rate       float64     `json:"rate"`
}

// Inferred holds the area populations of one run.
type Inferred struct {
	estimates map[string]Estimate
}

// Population implements Lookup.
func (in *Inferred) Population(area string) (int64, bool) {
	if in == nil {
		return 0, false
	}
	e, ok := in.estimates[area]
	return e.Population, ok
}

// Estimate returns the full estimate for area.
func (in *Inferred) Estimate(area string) (Estimate, bool) {
	e, ok := in.estimates[area]
	return e, ok
}

// Len returns the number of areas with an estimate.
func (in *Inferred) Len() int {
	return len(in.estimates)
}

// Table copies the estimates into a plain table.
func (in *Inferred) Table() Table {
	out := make(Table, len(in.estimates))
	for area, e := range in.estimates {
		out[area] = e.Population
	}
	return out
}

// With returns a copy that also resolves the given fixed populations. Fixed
// entries take precedence over inferred ones.
func (in *Inferred) With(fixed Table) *Inferred {
	out := &Inferred{estimates: make(map[string]Estimate, len(in.estimates)+len(fixed))}
	for k, v := range in.estimates {
		out.estimates[k] = v
	}
	for k, v := range fixed {
		out.estimates[k] = Estimate{Population: v}
	}
	return out
}

// Infer estimates each area's population as cases / rate × 100,000 from the
// most recent report in which both figures are known and the rate is
// positive. Published rates are rounded, so the estimate carries a small
// error that is accepted as is. Excluded observations are skipped.
func Infer(reports []*domain.DailyReport, excluded Exclusions) *Inferred {
	in := &Inferred{estimates: map[string]Estimate{}}
	for _, r := range reports {
		for _, row := range r.Areas {
			if excluded != nil && excluded.Excluded(r.Date, row.Name) {
				continue
			}
			cases, ok := row.Cases.Value()
			if !ok {
				continue
			}
			rate, ok := row.CaseRate.Value()
			if !ok || rate <= 0 {
				continue
			}
			if prev, seen := in.estimates[row.Name]; seen && prev.Date.After(r.Date) {
				continue
			}
			in.estimates[row.Name] = Estimate{
				Population: int64(math.Round(float64(cases) / rate * domain.RateScale)),
				Date:       r.Date,
				Cases:      cases,
				Rate:       rate,
			}
		}
	}
	return in
}
