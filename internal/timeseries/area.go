package timeseries

import (
	"context"
	"log/slog"

	"lacphcli/internal/dataprocessing"
	"lacphcli/internal/population"
	"lacphcli/pkg/contracts/domain"
)

// AreaSeries is the area category output together with the populations its
// rates were computed from.
type AreaSeries struct {
	Points      []domain.Point
	Populations *population.Inferred
}

// ByArea builds the case series per area. Excluded observations are carried
// forward from the area's previous valid count, areas that stopped being
// published are filtered out, and the city health departments are added as
// pseudo-areas from their department totals.
func (b *Builder) ByArea(ctx context.Context, reports []*domain.DailyReport) (*AreaSeries, error) {
	if err := checkOrder(domain.CategoryArea, reports); err != nil {
		return nil, err
	}

	observations, fill := dataprocessing.NewForwardFillProcessor(b.rules).
		FillExcludedWithStats(dataprocessing.AreaObservations(reports))
	if fill.FilledCount > 0 {
		b.logger.InfoContext(ctx, "excluded area counts carried forward",
			slog.Int("filled", fill.FilledCount),
			slog.Int("areas", fill.AreasProcessed),
			slog.Int("dates", fill.DatesProcessed))
	}
	if fill.UnresolvedCount > 0 {
		b.logger.WarnContext(ctx, "excluded area counts without a previous value",
			slog.Int("unresolved", fill.UnresolvedCount))
	}
	active := b.activeAreas(observations)

	pseudo := map[string]string{}
	fixed := population.Table{}
	for _, dept := range domain.Departments() {
		if name, ok := domain.PseudoArea(dept); ok {
			pseudo[name] = dept
			if p, ok := b.ref.Departments.Population(dept); ok {
				fixed[name] = p
			}
		}
	}

	var obs []Observation
	for _, o := range observations {
		if _, isPseudo := pseudo[o.Area]; isPseudo || !active[o.Area] {
			continue
		}
		obs = append(obs, Observation{Date: o.Date, Group: o.Area, Cumulative: o.Cases, Outbreak: o.Outbreak})
	}
	for _, r := range reports {
		outbreak := domain.FlagUnknown
		if !r.Date.Before(b.opts.OutbreakRecordedFrom) {
			outbreak = domain.FlagFalse
		}
		for name, dept := range pseudo {
			obs = append(obs, Observation{Date: r.Date, Group: name, Cumulative: r.Cases[dept], Outbreak: outbreak})
		}
	}

	pops := population.Infer(reports, b.rules)
	b.logger.DebugContext(ctx, "area populations inferred",
		slog.Int("areas", pops.Len()),
		slog.Int("active", len(active)))
	pops = pops.With(fixed)

	return &AreaSeries{
		Points: b.Derive(ctx, SeriesSpec{
			Category:   domain.CategoryArea,
			Population: pops,
		}, obs),
		Populations: pops,
	}, nil
}

// activeAreas returns the areas published on more than ActiveMinDays of the
// ActiveWindowDays days ending at the last observation.
func (b *Builder) activeAreas(observations []dataprocessing.AreaObservation) map[string]bool {
	active := map[string]bool{}
	if len(observations) == 0 {
		return active
	}
	last := observations[0].Date
	for _, o := range observations {
		if o.Date.After(last) {
			last = o.Date
		}
	}

	days := map[string]int{}
	for _, o := range observations {
		if last.DaysSince(o.Date) <= b.opts.ActiveWindowDays {
			days[o.Area]++
		}
	}
	for area, n := range days {
		if n > b.opts.ActiveMinDays && !excludedGroup(area) {
			active[area] = true
		}
	}
	return active
}

// excludedGroup reports labels that must never become an area group.
func excludedGroup(name string) bool {
	return name == domain.LabelLosAngeles || name == domain.LabelUnderInvestigation
}
