package exporter

import (
	"fmt"
	"strings"

	"lacphcli/pkg/contracts/domain"
)

// Table is one category laid out as rows. Cells hold int64, float64, bool,
// string or nil for a missing value.
type Table struct {
	Category domain.Category
	Headers  []string
	Rows     [][]any
}

// Records renders the rows as CSV records.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = formatCell(v)
		}
		out[i] = rec
	}
	return out
}

var groupHeaders = map[domain.Category]string{
	domain.CategoryAge:    "Age",
	domain.CategoryGender: "Gender",
	domain.CategoryRace:   "Race/Ethnicity",
	domain.CategoryArea:   "Area",
	domain.CategoryRegion: "Region",
}

// measureHeaders names the derived columns of one measure, e.g. "Cases",
// "New cases", "New cases, 7-day avg", "Cases per 100k" and
// "New cases, 7-day avg per 100k".
func measureHeaders(measure string, window int) []string {
	avg := fmt.Sprintf("New %s, %d-day avg", strings.ToLower(measure), window)
	return []string{
		measure,
		"New " + strings.ToLower(measure),
		avg,
		measure + " per 100k",
		avg + " per 100k",
	}
}

func pointCells(p domain.Point) []any {
	return []any{
		countCell(p.Cumulative),
		countCell(p.DailyChange),
		measureCell(p.RollingAverage),
		measureCell(p.PerCapita),
		measureCell(p.RollingAveragePerCapita),
	}
}

// AggregateTable lays out the county-wide series.
func AggregateTable(points []domain.AggregatePoint) *Table {
	w := domain.CategoryAggregate.Window()
	headers := []string{"Date"}
	headers = append(headers, measureHeaders("Cases", w)...)
	headers = append(headers, measureHeaders("Deaths", w)...)
	headers = append(headers, measureHeaders("Hospitalizations", w)[:3]...)

	t := &Table{Category: domain.CategoryAggregate, Headers: headers}
	for _, p := range points {
		row := []any{p.Date.String()}
		row = append(row, pointCells(p.Cases)...)
		row = append(row, pointCells(p.Deaths)...)
		row = append(row, pointCells(p.Hospitalizations)[:3]...)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// PointTable lays out a per-group category. Area and region tables carry
// the outbreak column.
func PointTable(category domain.Category, points []domain.Point) *Table {
	headers := []string{"Date", groupHeaders[category]}
	headers = append(headers, measureHeaders("Cases", category.Window())...)
	outbreak := category == domain.CategoryArea || category == domain.CategoryRegion
	if outbreak {
		headers = append(headers, "CF Outbreak")
	}

	t := &Table{Category: category, Headers: headers}
	for _, p := range points {
		row := []any{p.Date.String(), p.Group}
		row = append(row, pointCells(p)...)
		if outbreak {
			row = append(row, flagCell(p.Outbreak))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// RaceTable lays out the race category with case and death columns side by
// side.
func RaceTable(points []domain.RacePoint) *Table {
	w := domain.CategoryRace.Window()
	headers := []string{"Date", groupHeaders[domain.CategoryRace]}
	headers = append(headers, measureHeaders("Cases", w)...)
	headers = append(headers, measureHeaders("Deaths", w)...)

	t := &Table{Category: domain.CategoryRace, Headers: headers}
	for _, p := range points {
		row := []any{p.Date.String(), p.Race}
		row = append(row, pointCells(p.Cases)...)
		row = append(row, pointCells(p.Deaths)...)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Tables lays out every category of set in category order.
func Tables(set *domain.SeriesSet) []*Table {
	return []*Table{
		AggregateTable(set.Aggregate),
		PointTable(domain.CategoryAge, set.Age),
		PointTable(domain.CategoryGender, set.Gender),
		RaceTable(set.Race),
		PointTable(domain.CategoryArea, set.Area),
		PointTable(domain.CategoryRegion, set.Region),
	}
}
