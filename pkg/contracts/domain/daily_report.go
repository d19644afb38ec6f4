package domain

import (
	"fmt"
	"sort"
)

// Health departments that report independently. Their totals sum to the
// county-wide figures.
const (
	DepartmentLosAngelesCounty = "Los Angeles County"
	DepartmentLongBeach        = "Long Beach"
	DepartmentPasadena         = "Pasadena"
)

// Departments lists the health departments in bulletin order.
func Departments() []string {
	return []string{DepartmentLosAngelesCounty, DepartmentLongBeach, DepartmentPasadena}
}

// PseudoArea returns the area label a city health department is published
// under in area series. The county department has none.
func PseudoArea(department string) (string, bool) {
	switch department {
	case DepartmentLongBeach, DepartmentPasadena:
		return "City of " + department, true
	default:
		return "", false
	}
}

// Labels that never name a real group.
const (
	LabelOther              = "Other"
	LabelUnderInvestigation = "Under Investigation"
	LabelLosAngeles         = "Los Angeles"
)

// ReportGroup names a keyed collection of counts inside a DailyReport.
type ReportGroup string

const (
	GroupCasesByAge         ReportGroup = "cases_by_age"
	GroupCasesByGender      ReportGroup = "cases_by_gender"
	GroupCasesByRace        ReportGroup = "cases_by_race"
	GroupDeathsByRace       ReportGroup = "deaths_by_race"
	GroupCasesByDepartment  ReportGroup = "cases_by_department"
	GroupDeathsByDepartment ReportGroup = "deaths_by_department"
)

// ReportGroups lists every group a field override may target.
func ReportGroups() []ReportGroup {
	return []ReportGroup{
		GroupCasesByAge,
		GroupCasesByGender,
		GroupCasesByRace,
		GroupDeathsByRace,
		GroupCasesByDepartment,
		GroupDeathsByDepartment,
	}
}

// Valid reports whether g is a known group.
func (g ReportGroup) Valid() bool {
	for _, known := range ReportGroups() {
		if g == known {
			return true
		}
	}
	return false
}

// AreaRow is one line of the city/community table of a bulletin.
type AreaRow struct {
	Name     string  `json:"name" db:"name" validate:"required"`
	Cases    Count   `json:"cases" db:"cases"`
	CaseRate Measure `json:"case_rate" db:"case_rate"`
	Outbreak Flag    `json:"outbreak" db:"outbreak"`
}

// DailyReport is the structured content of one bulletin. There is exactly
// one report per calendar date.
type DailyReport struct {
	Date             Date             `json:"date" db:"date" validate:"required"`
	NewCases         Count            `json:"new_cases" db:"new_cases"`
	NewDeaths        Count            `json:"new_deaths" db:"new_deaths"`
	Hospitalizations Count            `json:"hospitalizations" db:"hospitalizations"`
	Cases            map[string]Count `json:"cases" db:"cases"`
	Deaths           map[string]Count `json:"deaths" db:"deaths"`
	CasesByAge       map[string]Count `json:"cases_by_age" db:"cases_by_age"`
	CasesByGender    map[string]Count `json:"cases_by_gender" db:"cases_by_gender"`
	CasesByRace      map[string]Count `json:"cases_by_race" db:"cases_by_race"`
	DeathsByRace     map[string]Count `json:"deaths_by_race" db:"deaths_by_race"`
	Areas            []AreaRow        `json:"areas" db:"areas" validate:"dive"`
	RuleVersion      string           `json:"rule_version" db:"rule_version"`
}

// NewDailyReport returns an empty report for date with every group map
// allocated.
func NewDailyReport(date Date) *DailyReport {
	return &DailyReport{
		Date:          date,
		Cases:         map[string]Count{},
		Deaths:        map[string]Count{},
		CasesByAge:    map[string]Count{},
		CasesByGender: map[string]Count{},
		CasesByRace:   map[string]Count{},
		DeathsByRace:  map[string]Count{},
		Areas:         []AreaRow{},
	}
}

// Group returns the map backing g.
func (r *DailyReport) Group(g ReportGroup) (map[string]Count, error) {
	var m *map[string]Count
	switch g {
	case GroupCasesByAge:
		m = &r.CasesByAge
	case GroupCasesByGender:
		m = &r.CasesByGender
	case GroupCasesByRace:
		m = &r.CasesByRace
	case GroupDeathsByRace:
		m = &r.DeathsByRace
	case GroupCasesByDepartment:
		m = &r.Cases
	case GroupDeathsByDepartment:
		m = &r.Deaths
	default:
		return nil, fmt.Errorf("unknown report group %q", g)
	}
	if *m == nil {
		*m = map[string]Count{}
	}
	return *m, nil
}

// TotalCases sums the department case totals.
func (r *DailyReport) TotalCases() Count {
	return sumDepartments(r.Cases)
}

// TotalDeaths sums the department death totals.
func (r *DailyReport) TotalDeaths() Count {
	return sumDepartments(r.Deaths)
}

func sumDepartments(m map[string]Count) Count {
	total := Known(0)
	for _, dept := range Departments() {
		total = total.Add(m[dept])
	}
	return total
}

// Area returns the row named name.
func (r *DailyReport) Area(name string) (AreaRow, bool) {
	for _, row := range r.Areas {
		if row.Name == name {
			return row, true
		}
	}
	return AreaRow{}, false
}

// Clone returns a deep copy of the report.
func (r *DailyReport) Clone() *DailyReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Cases = cloneCounts(r.Cases)
	out.Deaths = cloneCounts(r.Deaths)
	out.CasesByAge = cloneCounts(r.CasesByAge)
	out.CasesByGender = cloneCounts(r.CasesByGender)
	out.CasesByRace = cloneCounts(r.CasesByRace)
	out.DeathsByRace = cloneCounts(r.DeathsByRace)
	out.Areas = append([]AreaRow(nil), r.Areas...)
	if out.Areas == nil {
		out.Areas = []AreaRow{}
	}
	return &out
}

func cloneCounts(m map[string]Count) map[string]Count {
	out := make(map[string]Count, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortReports orders reports by date ascending in place.
func SortReports(reports []*DailyReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Date.Before(reports[j].Date)
	})
}
