package population

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

func TestDefaultReference(t *testing.T) {
	ref, err := Default()
	require.NoError(t, err)

	assert.Equal(t, int64(10260237), ref.County)
	var departments int64
	for _, p := range ref.Departments {
		departments += p
	}
	// County is the 2019 estimate; the department figures are 2018 PEPS, so
	// their sum only approximates it.
	assert.InDelta(t, ref.County, departments, float64(ref.County)/10000)

	tests := []struct {
		category domain.Category
		group    string
		want     int64
		ok       bool
	}{
		{domain.CategoryAggregate, "", 10260237, true},
		{domain.CategoryAge, "over 65", 1172554, true},
		{domain.CategoryAge, "over 80", 337286, true},
		{domain.CategoryGender, "Female", 4890980, true},
		{domain.CategoryGender, "Other", 0, false},
		{domain.CategoryRace, "Hispanic/Latino", 4758809, true},
		{domain.CategoryRegion, "South Bay", 1569560, true},
		{domain.CategoryArea, "City of Vernon", 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+tt.group, func(t *testing.T) {
			got, ok := ref.For(tt.category).Population(tt.group)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, ref, again)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing county", `{"departments":{"a":1},"age":{"a":1},"gender":{"a":1},"race":{"a":1}}`},
		{"missing race", `{"county":1,"departments":{"a":1},"age":{"a":1},"gender":{"a":1}}`},
		{"zero population", `{"county":1,"departments":{"a":1},"age":{"a":0},"gender":{"a":1},"race":{"a":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "population.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"county":3,"departments":{"a":3},"age":{"a":1},"gender":{"a":1},"race":{"a":1}}`), 0644))

	ref, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ref.County)
	assert.NotNil(t, ref.Region)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type excludeSet map[string]bool

func (e excludeSet) Excluded(date domain.Date, area string) bool {
	return e[date.String()+"|"+area]
}

func areaReport(date string, rows ...domain.AreaRow) *domain.DailyReport {
	r := domain.NewDailyReport(domain.MustParseDate(date))
	r.Areas = rows
	return r
}

func TestInfer(t *testing.T) {
	reports := []*domain.DailyReport{
		areaReport("2020-06-01",
			domain.AreaRow{Name: "City of Burbank", Cases: domain.Known(100), CaseRate: domain.KnownMeasure(50)},
			domain.AreaRow{Name: "City of Vernon", Cases: domain.Known(10), CaseRate: domain.KnownMeasure(500)},
		),
		areaReport("2020-06-02",
			domain.AreaRow{Name: "City of Burbank", Cases: domain.Known(210), CaseRate: domain.KnownMeasure(100)},
			domain.AreaRow{Name: "City of Vernon", Cases: domain.Known(12), CaseRate: domain.UnknownMeasure()},
			domain.AreaRow{Name: "Unincorporated - Castaic", Cases: domain.Unknown(), CaseRate: domain.KnownMeasure(9)},
		),
		areaReport("2020-06-03",
			domain.AreaRow{Name: "City of Burbank", Cases: domain.Known(999999), CaseRate: domain.KnownMeasure(1)},
		),
	}
	excluded := excludeSet{"2020-06-03|City of Burbank": true}

	in := Infer(reports, excluded)

	burbank, ok := in.Estimate("City of Burbank")
	require.True(t, ok)
	assert.Equal(t, int64(210000), burbank.Population, "most recent usable date wins, not an average")
	assert.Equal(t, "2020-06-02", burbank.Date.String())

	vernon, ok := in.Population("City of Vernon")
	require.True(t, ok)
	assert.Equal(t, int64(2000), vernon)

	_, ok = in.Population("Unincorporated - Castaic")
	assert.False(t, ok)
	assert.Equal(t, 2, in.Len())

	withDepts := in.With(Table{"City of Long Beach": 467353})
	p, ok := withDepts.Population("City of Long Beach")
	assert.True(t, ok)
	assert.Equal(t, int64(467353), p)
	_, ok = in.Population("City of Long Beach")
	assert.False(t, ok, "With returns a copy")

	assert.Equal(t, Table{"City of Burbank": 210000, "City of Vernon": 2000}, in.Table())
}

func TestInferIgnoresReportOrder(t *testing.T) {
	older := areaReport("2020-06-01", domain.AreaRow{Name: "City of Burbank", Cases: domain.Known(100), CaseRate: domain.KnownMeasure(50)})
	newer := areaReport("2020-06-02", domain.AreaRow{Name: "City of Burbank", Cases: domain.Known(210), CaseRate: domain.KnownMeasure(100)})

	in := Infer([]*domain.DailyReport{newer, older}, nil)
	p, _ := in.Population("City of Burbank")
	assert.Equal(t, int64(210000), p)
}
