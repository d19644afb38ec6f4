package dataprocessing

import (
	"sort"

	"lacphcli/pkg/contracts/domain"
)

// AreaObservation is one area's published figures on one date.
type AreaObservation struct {
	Date     domain.Date
	Area     string
	Cases    domain.Count
	CaseRate domain.Measure
	Outbreak domain.Flag
	// Filled is set when Cases was carried forward instead of parsed.
	Filled bool
}

// ExclusionRules reports (date, area) pairs whose published count is corrupt.
type ExclusionRules interface {
	Excluded(date domain.Date, area string) bool
}

// ForwardFillProcessor replaces excluded area observations with the last
// valid value for the same area
type ForwardFillProcessor struct {
	rules ExclusionRules
}

// NewForwardFillProcessor creates a new forward-fill processor
func NewForwardFillProcessor(rules ExclusionRules) *ForwardFillProcessor {
	return &ForwardFillProcessor{rules: rules}
}

// AreaObservations flattens the area tables of reports into observations in
// date then area order.
func AreaObservations(reports []*domain.DailyReport) []AreaObservation {
	var out []AreaObservation
	for _, r := range reports {
		for _, row := range r.Areas {
			out = append(out, AreaObservation{
				Date:     r.Date,
				Area:     row.Name,
				Cases:    row.Cases,
				CaseRate: row.CaseRate,
				Outbreak: row.Outbreak,
			})
		}
	}
	sortObservations(out)
	return out
}

// FillExcluded resolves exclusions. An excluded observation takes the cases
// of the most recent earlier observation of its area that was not itself
// excluded, never an interpolated value. With no such observation the cases
// become unknown. Observations are never dropped.
func (f *ForwardFillProcessor) FillExcluded(observations []AreaObservation) []AreaObservation {
	if len(observations) == 0 || f.rules == nil {
		return observations
	}

	result := append([]AreaObservation(nil), observations...)
	sortObservations(result)

	lastKnown := make(map[string]domain.Count)
	for i := range result {
		obs := &result[i]
		if f.rules.Excluded(obs.Date, obs.Area) {
			if prev, ok := lastKnown[obs.Area]; ok {
				obs.Cases = prev
			} else {
				obs.Cases = domain.Unknown()
			}
			obs.CaseRate = domain.UnknownMeasure()
			obs.Filled = true
			// Don't update lastKnown since this is filled data
			continue
		}
		if obs.Cases.IsKnown() {
			lastKnown[obs.Area] = obs.Cases
		}
	}
	return result
}

// ForwardFillStatistics represents forward-fill operation statistics
type ForwardFillStatistics struct {
	TotalObservations int
	FilledCount       int
	UnresolvedCount   int
	AreasProcessed    int
	DatesProcessed    int
}

// FillExcludedWithStats performs forward-fill and returns statistics
func (f *ForwardFillProcessor) FillExcludedWithStats(observations []AreaObservation) ([]AreaObservation, ForwardFillStatistics) {
	filled := f.FillExcluded(observations)

	uniqueAreas := make(map[string]bool)
	uniqueDates := make(map[domain.Date]bool)
	stats := ForwardFillStatistics{TotalObservations: len(filled)}
	for _, obs := range filled {
		uniqueAreas[obs.Area] = true
		uniqueDates[obs.Date] = true
		if obs.Filled {
			stats.FilledCount++
			if !obs.Cases.IsKnown() {
				stats.UnresolvedCount++
			}
		}
	}
	stats.AreasProcessed = len(uniqueAreas)
	stats.DatesProcessed = len(uniqueDates)
	return filled, stats
}

func sortObservations(obs []AreaObservation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].Date != obs[j].Date {
			return obs[i].Date.Before(obs[j].Date)
		}
		return obs[i].Area < obs[j].Area
	})
}
