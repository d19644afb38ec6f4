package timeseries

import (
	"context"
	"log/slog"
	"sort"

	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/population"
	"lacphcli/pkg/contracts/domain"
)

// Observation is a cumulative figure of one group on one date.
type Observation struct {
	Date       domain.Date
	Group      string
	Cumulative domain.Count
	Outbreak   domain.Flag
}

// SeriesSpec describes how to derive one category's points.
type SeriesSpec struct {
	Category   domain.Category
	Population population.Lookup
	// Rank orders groups within a date. Nil orders groups lexically.
	Rank func(group string) int
}

// Derive computes the daily change, rolling average and per-capita fields of
// every observation. Observations of one group must not share a date. The
// result is ordered by date, then by group rank.
func (b *Builder) Derive(ctx context.Context, spec SeriesSpec, observations []Observation) []domain.Point {
	byGroup := map[string][]Observation{}
	for _, o := range observations {
		byGroup[o.Group] = append(byGroup[o.Group], o)
	}

	window := spec.Category.Window()
	warned := map[string]bool{}
	points := make([]domain.Point, 0, len(observations))

	for group, obs := range byGroup {
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

		pop, hasPop := int64(0), false
		if spec.Population != nil {
			pop, hasPop = spec.Population.Population(group)
		}

		series := make([]domain.Point, len(obs))
		for i, o := range obs {
			series[i] = domain.Point{
				Date:       o.Date,
				Group:      group,
				Cumulative: o.Cumulative,
				Outbreak:   o.Outbreak,
			}
		}
		fillDailyChange(series)
		fillRolling(series, window)

		for i := range series {
			if !hasPop {
				if !warned[group] && series[i].Cumulative.IsKnown() {
					warned[group] = true
					b.logger.WarnContext(ctx, "per-capita rate left unknown",
						slog.String("error", (&apperrors.MissingPopulation{
							Date:     series[i].Date,
							Category: spec.Category,
							Group:    group,
						}).Error()))
				}
				series[i].PerCapita = domain.UnknownMeasure()
				series[i].RollingAveragePerCapita = domain.UnknownMeasure()
				continue
			}
			series[i].PerCapita = domain.PerCapita(series[i].Cumulative, pop)
			series[i].RollingAveragePerCapita = scaleMeasure(series[i].RollingAverage, pop)
		}
		points = append(points, series...)
	}

	sortPoints(points, spec.Rank)
	return points
}

// fillDailyChange differences each cumulative figure against the previous
// known figure of the series. The first known figure has no change.
func fillDailyChange(series []domain.Point) {
	var prev domain.Count
	for i := range series {
		cur := series[i].Cumulative
		if !cur.IsKnown() {
			series[i].DailyChange = domain.Unknown()
			continue
		}
		series[i].DailyChange = cur.Sub(prev)
		prev = cur
	}
}

// fillRolling averages the known daily changes dated within the trailing
// window of days ending at each point. Missing or unknown days count in
// neither the sum nor the divisor.
func fillRolling(series []domain.Point, window int) {
	start := 0
	for i := range series {
		for series[i].Date.DaysSince(series[start].Date) >= window {
			start++
		}
		var sum float64
		var n int
		for j := start; j <= i; j++ {
			if v, ok := series[j].DailyChange.Value(); ok {
				sum += float64(v)
				n++
			}
		}
		if n == 0 {
			series[i].RollingAverage = domain.UnknownMeasure()
			continue
		}
		series[i].RollingAverage = domain.KnownMeasure(sum / float64(n))
	}
}

func scaleMeasure(m domain.Measure, pop int64) domain.Measure {
	v, ok := m.Value()
	if !ok || pop <= 0 {
		return domain.UnknownMeasure()
	}
	return domain.KnownMeasure(v / float64(pop) * domain.RateScale)
}

func sortPoints(points []domain.Point, rank func(string) int) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if rank != nil {
			ra, rb := rank(a.Group), rank(b.Group)
			if ra != rb {
				return ra < rb
			}
		}
		return a.Group < b.Group
	})
}
