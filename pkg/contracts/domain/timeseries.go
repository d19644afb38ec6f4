package domain

import "fmt"

// Category selects which time series is derived from a report sequence.
type Category string

const (
	CategoryAggregate Category = "aggregate"
	CategoryAge       Category = "age"
	CategoryGender    Category = "gender"
	CategoryRace      Category = "race"
	CategoryArea      Category = "area"
	CategoryRegion    Category = "region"
)

// Categories lists every category in export order.
func Categories() []Category {
	return []Category{
		CategoryAggregate,
		CategoryAge,
		CategoryGender,
		CategoryRace,
		CategoryArea,
		CategoryRegion,
	}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Window returns the rolling average window in days for the category.
func (c Category) Window() int {
	if c == CategoryAggregate {
		return 7
	}
	return 14
}

// Point is one (date, group) observation of a derived series.
type Point struct {
	Date                    Date    `json:"date" csv:"Date"`
	Group                   string  `json:"group" csv:"Group"`
	Cumulative              Count   `json:"cumulative" csv:"Cumulative"`
	DailyChange             Count   `json:"daily_change" csv:"DailyChange"`
	RollingAverage          Measure `json:"rolling_average" csv:"RollingAverage"`
	PerCapita               Measure `json:"per_capita" csv:"PerCapita"`
	RollingAveragePerCapita Measure `json:"rolling_average_per_capita" csv:"RollingAveragePerCapita"`
	Outbreak                Flag    `json:"outbreak,omitempty" csv:"Outbreak"`
}

// RacePoint joins the case and death observations of one race on one date.
type RacePoint struct {
	Date   Date   `json:"date"`
	Race   string `json:"race"`
	Cases  Point  `json:"cases"`
	Deaths Point  `json:"deaths"`
}

// AggregatePoint is the county-wide row for one date.
type AggregatePoint struct {
	Date             Date  `json:"date"`
	Cases            Point `json:"cases"`
	Deaths           Point `json:"deaths"`
	Hospitalizations Point `json:"hospitalizations"`
}

// SeriesSet holds every derived series of one build.
type SeriesSet struct {
	RuleVersion string           `json:"rule_version"`
	Aggregate   []AggregatePoint `json:"aggregate"`
	Age         []Point          `json:"age"`
	Gender      []Point          `json:"gender"`
	Race        []RacePoint      `json:"race"`
	Area        []Point          `json:"area"`
	Region      []Point          `json:"region"`
}
