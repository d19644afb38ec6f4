package regions

import (
	"context"
	"log/slog"
	"sort"

	"lacphcli/internal/population"
	"lacphcli/internal/timeseries"
	"lacphcli/pkg/contracts/domain"
)

// OutlierRules names areas always treated as outbreak dominated.
type OutlierRules interface {
	IsOutbreakOutlier(area string) bool
}

// Aggregator sums area series into region series.
type Aggregator struct {
	regions  *Map
	builder  *timeseries.Builder
	outliers OutlierRules
	fallback population.Lookup
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. The builder supplies the series
// arithmetic; fallback populations are used for a region none of whose
// areas has a usable population.
func NewAggregator(regions *Map, builder *timeseries.Builder, outliers OutlierRules, fallback population.Lookup, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		regions:  regions,
		builder:  builder,
		outliers: outliers,
		fallback: fallback,
		logger:   logger.With(slog.String("component", "region_aggregator")),
	}
}

// OutbreakAreas returns the areas flagged with an outbreak on any date plus
// the configured outliers.
func (a *Aggregator) OutbreakAreas(areaPoints []domain.Point) map[string]bool {
	out := map[string]bool{}
	for _, p := range areaPoints {
		if p.Outbreak.IsTrue() || (a.outliers != nil && a.outliers.IsOutbreakOutlier(p.Group)) {
			out[p.Group] = true
		}
	}
	return out
}

// Aggregate sums the cumulative area counts per (date, region), outbreak
// areas included, and derives the region series from the sums. Region
// populations sum the member area populations with outbreak areas left out.
// Output is ordered by date, then planning area number.
func (a *Aggregator) Aggregate(ctx context.Context, areaPoints []domain.Point, populations population.Lookup) []domain.Point {
	outbreak := a.OutbreakAreas(areaPoints)

	type cell struct {
		date   domain.Date
		region string
	}
	sums := map[cell]domain.Count{}
	members := map[string]map[string]struct{}{}
	unmapped := map[string]struct{}{}

	for _, p := range areaPoints {
		region, ok := a.regions.Region(p.Group)
		if !ok {
			unmapped[p.Group] = struct{}{}
			continue
		}
		if members[region] == nil {
			members[region] = map[string]struct{}{}
		}
		members[region][p.Group] = struct{}{}

		k := cell{p.Date, region}
		if _, seen := sums[k]; !seen {
			sums[k] = domain.Unknown()
		}
		if !p.Cumulative.IsKnown() {
			continue
		}
		if cur := sums[k]; cur.IsKnown() {
			sums[k] = cur.Add(p.Cumulative)
		} else {
			sums[k] = p.Cumulative
		}
	}
	if len(unmapped) > 0 {
		names := make([]string, 0, len(unmapped))
		for n := range unmapped {
			names = append(names, n)
		}
		sort.Strings(names)
		a.logger.WarnContext(ctx, "areas without a region skipped",
			slog.Int("count", len(names)),
			slog.Any("areas", names))
	}

	regionPops := population.Table{}
	for region, areas := range members {
		var total int64
		withOutbreak := false
		for area := range areas {
			if outbreak[area] {
				withOutbreak = true
				continue
			}
			if populations == nil {
				continue
			}
			if p, ok := populations.Population(area); ok {
				total += p
			}
		}
		if total == 0 && a.fallback != nil {
			// The reference population covers every member, outbreak
			// areas included, so it only stands in for regions without one.
			if withOutbreak {
				a.logger.WarnContext(ctx, "region rate unknown: no population outside outbreak areas",
					slog.String("region", region))
			} else if p, ok := a.fallback.Population(region); ok {
				a.logger.DebugContext(ctx, "region population taken from reference table",
					slog.String("region", region),
					slog.Int64("population", p))
				total = p
			}
		}
		if total > 0 {
			regionPops[region] = total
		}
	}

	obs := make([]timeseries.Observation, 0, len(sums))
	for k, v := range sums {
		obs = append(obs, timeseries.Observation{Date: k.date, Group: k.region, Cumulative: v})
	}
	return a.builder.Derive(ctx, timeseries.SeriesSpec{
		Category:   domain.CategoryRegion,
		Population: regionPops,
		Rank:       a.regions.SPA,
	}, obs)
}
