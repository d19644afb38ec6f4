package corrections

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

const sampleRules = `
version: "test-1"
substitutions:
  - date: "2020-04-16"
    rules:
      - find: 'Mmale'
        replace: 'Male'
      - find: 'Unknown'
        replace: 'Under Investigation'
field_overrides:
  - date: "2020-04-13"
    fields:
      - {group: cases_by_age, key: "over 65", value: 2032}
      - {group: cases_by_department, key: "Pasadena", value: 120}
headlines:
  - {date: "2020-07-14", cases: 4244, deaths: 73}
no_reports:
  - {date: "2020-07-03", cases: 2643}
  - {date: "2020-12-25", cases: 15538, deaths: 131}
exclusions:
  - {date: "2020-06-06", area: "City of Vernon"}
area_overrides:
  - date: "2021-02-23"
    areas:
      - {name: "Unincorporated - Val Verde", cases: 308, rate: 9308, outbreak: false}
      - {name: "Unincorporated - Whittier"}
outbreak_outliers:
  - "Unincorporated - Castaic"
`

func mustParse(t *testing.T, data string) *RuleSet {
	t.Helper()
	rs, err := Parse([]byte(data))
	require.NoError(t, err)
	return rs
}

func TestParseVersionCarriesDigest(t *testing.T) {
	a := mustParse(t, sampleRules)
	b := mustParse(t, sampleRules+"\n# trailing comment\n")

	assert.Contains(t, a.Version(), "test-1+")
	assert.NotEqual(t, a.Version(), b.Version())
	assert.Equal(t, a.Version(), mustParse(t, sampleRules).Version())
}

func TestSubstitute(t *testing.T) {
	rs := mustParse(t, sampleRules)

	out, n := rs.Substitute(domain.MustParseDate("2020-04-16"), "Mmale 12 Unknown 3")
	assert.Equal(t, 2, n)
	assert.Equal(t, "Male 12 Under Investigation 3", out)

	out, n = rs.Substitute(domain.MustParseDate("2020-04-17"), "Mmale 12")
	assert.Zero(t, n)
	assert.Equal(t, "Mmale 12", out)
}

func TestApplyOverrides(t *testing.T) {
	rs := mustParse(t, sampleRules)

	report := domain.NewDailyReport(domain.MustParseDate("2020-04-13"))
	report.CasesByAge["over 65"] = domain.Known(9999)
	report.Cases[domain.DepartmentPasadena] = domain.Known(1)

	assert.Equal(t, 2, rs.ApplyOverrides(report))
	assert.Equal(t, domain.Known(2032), report.CasesByAge["over 65"])
	assert.Equal(t, domain.Known(120), report.Cases[domain.DepartmentPasadena])

	other := domain.NewDailyReport(domain.MustParseDate("2020-04-14"))
	other.CasesByAge["over 65"] = domain.Known(9999)
	assert.Zero(t, rs.ApplyOverrides(other))
	assert.Equal(t, domain.Known(9999), other.CasesByAge["over 65"])
}

func TestLookups(t *testing.T) {
	rs := mustParse(t, sampleRules)

	h, ok := rs.Headline(domain.MustParseDate("2020-07-14"))
	require.True(t, ok)
	assert.Equal(t, Headline{Cases: domain.Known(4244), Deaths: domain.Known(73)}, h)

	_, ok = rs.Headline(domain.MustParseDate("2020-07-15"))
	assert.False(t, ok)

	nr, ok := rs.NoReport(domain.MustParseDate("2020-07-03"))
	require.True(t, ok)
	assert.Equal(t, domain.Known(2643), nr.Cases)
	assert.Equal(t, domain.Unknown(), nr.Deaths)

	assert.Equal(t, []domain.Date{
		domain.MustParseDate("2020-07-03"),
		domain.MustParseDate("2020-12-25"),
	}, rs.NoReportDates())

	assert.True(t, rs.Excluded(domain.MustParseDate("2020-06-06"), "City of Vernon"))
	assert.False(t, rs.Excluded(domain.MustParseDate("2020-06-07"), "City of Vernon"))

	rows, ok := rs.AreaOverride(domain.MustParseDate("2021-02-23"))
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.Known(308), rows[0].Cases)
	assert.Equal(t, domain.FlagFalse, rows[0].Outbreak)
	assert.Equal(t, domain.Unknown(), rows[1].Cases)
	assert.Equal(t, domain.FlagUnknown, rows[1].Outbreak)

	assert.True(t, rs.IsOutbreakOutlier("Unincorporated - Castaic"))
	assert.False(t, rs.IsOutbreakOutlier("City of Vernon"))
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing version", `headlines: [{date: "2020-07-14", cases: 1, deaths: 1}]`},
		{"bad date", `{version: v, headlines: [{date: "07/14/2020", cases: 1, deaths: 1}]}`},
		{"headline missing deaths", `{version: v, headlines: [{date: "2020-07-14", cases: 1}]}`},
		{"negative override", `{version: v, field_overrides: [{date: "2020-04-13", fields: [{group: cases_by_age, key: a, value: -1}]}]}`},
		{"unknown group", `{version: v, field_overrides: [{date: "2020-04-13", fields: [{group: cases_by_zip, key: a, value: 1}]}]}`},
		{"bad regex", `{version: v, substitutions: [{date: "2020-04-13", rules: [{find: "(?<!x)y"}]}]}`},
		{"duplicate date", `{version: v, headlines: [{date: "2020-07-14", cases: 1, deaths: 1}, {date: "2020-07-14", cases: 2, deaths: 2}]}`},
		{"unknown field", `{version: v, headline: []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeRules))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Stats().Headlines)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	rs, err := Default()
	require.NoError(t, err)

	stats := rs.Stats()
	assert.Equal(t, 10, stats.Headlines)
	assert.Equal(t, 4, stats.NoReports)
	assert.Equal(t, 21, stats.Exclusions)
	assert.Equal(t, 12, stats.Overrides)
	assert.Equal(t, 2, stats.Outliers)

	report := domain.NewDailyReport(domain.MustParseDate("2020-04-13"))
	rs.ApplyOverrides(report)
	assert.Equal(t, domain.Known(2032), report.CasesByAge["over 65"])

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, rs, again)
}
