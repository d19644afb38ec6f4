package timeseries

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"time"

	"lacphcli/pkg/contracts/domain"
)

// AgeCutover is the first date bulletins group ages into eight buckets.
var AgeCutover = domain.NewDate(2020, time.July, 24)

var (
	broadAgeBuckets = []string{"0 to 17", "18 to 40", "41 to 65", "over 65"}
	fineAgeBuckets  = []string{"0 to 4", "5 to 11", "12 to 17", "18 to 29", "30 to 49", "50 to 64", "65 to 79", "over 80"}
)

var (
	reAgeRange = regexp.MustCompile(`^(\d+) to \d+$`)
	reAgeOver  = regexp.MustCompile(`^over (\d+)$`)
)

// AgeLowerBound returns the youngest age covered by a bucket label. An
// "over N" bucket starts at N+1.
func AgeLowerBound(label string) (int, bool) {
	if m := reAgeRange.FindStringSubmatch(label); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	if m := reAgeOver.FindStringSubmatch(label); m != nil {
		n, err := strconv.Atoi(m[1])
		return n + 1, err == nil
	}
	return 0, false
}

func ageRank(label string) int {
	n, ok := AgeLowerBound(label)
	if !ok {
		return 1 << 30
	}
	return n
}

// AgeBuckets returns the bucket labels in force on date.
func (b *Builder) AgeBuckets(date domain.Date) []string {
	if date.Before(b.opts.AgeCutover) {
		return broadAgeBuckets
	}
	return fineAgeBuckets
}

// Aggregate builds the county-wide series. Cumulative figures are the sums of
// the department totals. Daily changes of cases and deaths are the headline
// figures of each report, or the externally sourced figures on no-report
// dates; hospitalizations are differenced.
func (b *Builder) Aggregate(ctx context.Context, reports []*domain.DailyReport) ([]domain.AggregatePoint, error) {
	if err := checkOrder(domain.CategoryAggregate, reports); err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return []domain.AggregatePoint{}, nil
	}

	type row struct {
		date                domain.Date
		cases, deaths, hosp domain.Count
		newCases, newDeaths domain.Count
	}
	rows := make([]row, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, row{
			date:      r.Date,
			cases:     r.TotalCases(),
			deaths:    r.TotalDeaths(),
			hosp:      r.Hospitalizations,
			newCases:  r.NewCases,
			newDeaths: r.NewDeaths,
		})
	}

	first, last := reports[0].Date, reports[len(reports)-1].Date
	index := make(map[domain.Date]int, len(rows))
	for i, r := range rows {
		index[r.date] = i
	}
	for _, d := range b.rules.NoReportDates() {
		if d.Before(first) || d.After(last) {
			continue
		}
		h, _ := b.rules.NoReport(d)
		if i, ok := index[d]; ok {
			rows[i].newCases, rows[i].newDeaths = h.Cases, h.Deaths
			continue
		}
		rows = append(rows, row{date: d, newCases: h.Cases, newDeaths: h.Deaths})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	pop, _ := b.ref.For(domain.CategoryAggregate).Population("")

	cases := make([]domain.Point, len(rows))
	deaths := make([]domain.Point, len(rows))
	hosp := make([]domain.Point, len(rows))
	for i, r := range rows {
		cases[i] = domain.Point{Date: r.date, Cumulative: r.cases}
		deaths[i] = domain.Point{Date: r.date, Cumulative: r.deaths}
		hosp[i] = domain.Point{Date: r.date, Cumulative: r.hosp}
	}
	fillDailyChange(cases)
	fillDailyChange(deaths)
	fillDailyChange(hosp)
	for i, r := range rows {
		if r.newCases.IsKnown() {
			cases[i].DailyChange = r.newCases
		}
		if r.newDeaths.IsKnown() {
			deaths[i].DailyChange = r.newDeaths
		}
	}

	window := domain.CategoryAggregate.Window()
	out := make([]domain.AggregatePoint, len(rows))
	for _, s := range [][]domain.Point{cases, deaths, hosp} {
		fillRolling(s, window)
		for i := range s {
			s[i].PerCapita = domain.PerCapita(s[i].Cumulative, pop)
			s[i].RollingAveragePerCapita = scaleMeasure(s[i].RollingAverage, pop)
		}
	}
	for i, r := range rows {
		out[i] = domain.AggregatePoint{Date: r.date, Cases: cases[i], Deaths: deaths[i], Hospitalizations: hosp[i]}
	}
	return out, nil
}

// ByAge builds the case series per age bucket. Each date emits only the
// buckets of the scheme in force on it, ordered by lower bound.
func (b *Builder) ByAge(ctx context.Context, reports []*domain.DailyReport) ([]domain.Point, error) {
	if err := checkOrder(domain.CategoryAge, reports); err != nil {
		return nil, err
	}
	var obs []Observation
	for _, r := range reports {
		for label, c := range r.CasesByAge {
			obs = append(obs, Observation{Date: r.Date, Group: label, Cumulative: c})
		}
	}
	points := b.Derive(ctx, SeriesSpec{
		Category:   domain.CategoryAge,
		Population: b.ref.For(domain.CategoryAge),
		Rank:       ageRank,
	}, obs)

	out := points[:0]
	for _, p := range points {
		if contains(b.AgeBuckets(p.Date), p.Group) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ByGender builds the case series per gender. Other is dropped and dates
// without a gender breakdown emit no rows.
func (b *Builder) ByGender(ctx context.Context, reports []*domain.DailyReport) ([]domain.Point, error) {
	if err := checkOrder(domain.CategoryGender, reports); err != nil {
		return nil, err
	}
	var obs []Observation
	for _, r := range reports {
		for label, c := range r.CasesByGender {
			if dropLabel(label) {
				continue
			}
			obs = append(obs, Observation{Date: r.Date, Group: label, Cumulative: c})
		}
	}
	return b.Derive(ctx, SeriesSpec{
		Category:   domain.CategoryGender,
		Population: b.ref.For(domain.CategoryGender),
	}, obs), nil
}

// ByRace builds the case and death series per race independently and joins
// them on (date, race). Rows present in only one of the two are dropped.
func (b *Builder) ByRace(ctx context.Context, reports []*domain.DailyReport) ([]domain.RacePoint, error) {
	if err := checkOrder(domain.CategoryRace, reports); err != nil {
		return nil, err
	}
	var caseObs, deathObs []Observation
	for _, r := range reports {
		for label, c := range r.CasesByRace {
			if !dropLabel(label) {
				caseObs = append(caseObs, Observation{Date: r.Date, Group: label, Cumulative: c})
			}
		}
		for label, c := range r.DeathsByRace {
			if !dropLabel(label) {
				deathObs = append(deathObs, Observation{Date: r.Date, Group: label, Cumulative: c})
			}
		}
	}
	spec := SeriesSpec{Category: domain.CategoryRace, Population: b.ref.For(domain.CategoryRace)}
	cases := b.Derive(ctx, spec, caseObs)
	deaths := b.Derive(ctx, spec, deathObs)

	type joinKey struct {
		date domain.Date
		race string
	}
	deathAt := make(map[joinKey]domain.Point, len(deaths))
	for _, p := range deaths {
		deathAt[joinKey{p.Date, p.Group}] = p
	}
	out := make([]domain.RacePoint, 0, len(cases))
	for _, c := range cases {
		d, ok := deathAt[joinKey{c.Date, c.Group}]
		if !ok {
			continue
		}
		out = append(out, domain.RacePoint{Date: c.Date, Race: c.Group, Cases: c, Deaths: d})
	}
	return out, nil
}

// dropLabel reports labels that never form a demographic group.
func dropLabel(label string) bool {
	return label == domain.LabelOther || label == domain.LabelUnderInvestigation
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
