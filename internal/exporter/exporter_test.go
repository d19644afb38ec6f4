package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"lacphcli/internal/config"
	"lacphcli/pkg/contracts/domain"
)

var d1 = domain.MustParseDate("2020-06-01")

func samplePoint(group string) domain.Point {
	return domain.Point{
		Date:                    d1,
		Group:                   group,
		Cumulative:              domain.Known(120),
		DailyChange:             domain.Unknown(),
		RollingAverage:          domain.UnknownMeasure(),
		PerCapita:               domain.KnownMeasure(12.3456),
		RollingAveragePerCapita: domain.UnknownMeasure(),
		Outbreak:                domain.FlagTrue,
	}
}

func sampleSet() *domain.SeriesSet {
	p := samplePoint("")
	return &domain.SeriesSet{
		RuleVersion: "v1",
		Aggregate:   []domain.AggregatePoint{{Date: d1, Cases: p, Deaths: p, Hospitalizations: p}},
		Age:         []domain.Point{samplePoint("0 to 17")},
		Gender:      []domain.Point{samplePoint("Female")},
		Race:        []domain.RacePoint{{Date: d1, Race: "Asian", Cases: p, Deaths: p}},
		Area:        []domain.Point{samplePoint("City of Alhambra")},
		Region:      []domain.Point{samplePoint("San Gabriel")},
	}
}

func TestTableHeaders(t *testing.T) {
	tests := []struct {
		name  string
		table *Table
		want  []string
	}{
		{
			name:  "age",
			table: PointTable(domain.CategoryAge, nil),
			want: []string{"Date", "Age", "Cases", "New cases", "New cases, 14-day avg",
				"Cases per 100k", "New cases, 14-day avg per 100k"},
		},
		{
			name:  "area carries outbreak",
			table: PointTable(domain.CategoryArea, nil),
			want: []string{"Date", "Area", "Cases", "New cases", "New cases, 14-day avg",
				"Cases per 100k", "New cases, 14-day avg per 100k", "CF Outbreak"},
		},
		{
			name:  "aggregate",
			table: AggregateTable(nil),
			want: []string{"Date",
				"Cases", "New cases", "New cases, 7-day avg", "Cases per 100k", "New cases, 7-day avg per 100k",
				"Deaths", "New deaths", "New deaths, 7-day avg", "Deaths per 100k", "New deaths, 7-day avg per 100k",
				"Hospitalizations", "New hospitalizations", "New hospitalizations, 7-day avg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table.Headers)
		})
	}
	assert.Len(t, RaceTable(nil).Headers, 12)
}

func TestTableRecords(t *testing.T) {
	table := PointTable(domain.CategoryRegion, []domain.Point{samplePoint("San Gabriel")})
	assert.Equal(t, [][]string{
		{"2020-06-01", "San Gabriel", "120", "", "", "12.35", "", "true"},
	}, table.Records())

	p := samplePoint("x")
	p.Cumulative = domain.NotApplicable()
	p.Outbreak = domain.FlagUnknown
	rec := PointTable(domain.CategoryArea, []domain.Point{p}).Records()[0]
	assert.Equal(t, "n/a", rec[2])
	assert.Equal(t, "", rec[7])
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	exp := NewSeriesExporter(&config.Paths{ExportDir: dir}, nil)

	files, err := exp.Export(context.Background(), sampleSet(), Options{CSV: true, Workbook: true})
	require.NoError(t, err)
	require.Len(t, files, 7)
	assert.Equal(t, filepath.Join(dir, CSVName(domain.CategoryAggregate)), files[0])
	assert.Equal(t, filepath.Join(dir, WorkbookName), files[6])

	data, err := os.ReadFile(filepath.Join(dir, "lacph_race.csv"))
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Race/Ethnicity", records[0][1])
	assert.Equal(t, "Asian", records[1][1])

	wb, err := excelize.OpenFile(files[6])
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"aggregate", "age", "gender", "race", "area", "region"}, wb.GetSheetList())
	rows, err := wb.GetRows("area")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "City of Alhambra", rows[1][1])
	assert.Equal(t, "120", rows[1][2])
	assert.Equal(t, "", rows[1][3], "unknown values stay empty")
}

func TestExportCSVOnly(t *testing.T) {
	dir := t.TempDir()
	exp := NewSeriesExporter(nil, nil)

	files, err := exp.Export(context.Background(), sampleSet(), Options{Dir: dir, CSV: true})
	require.NoError(t, err)
	assert.Len(t, files, 6)
	assert.NoFileExists(t, filepath.Join(dir, WorkbookName))

	_, err = exp.Export(context.Background(), nil, Options{Dir: dir, CSV: true})
	assert.Error(t, err)
}

func TestCSVWriterBOM(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(&config.Paths{ExportDir: dir}, nil)

	path, err := w.WriteCSV("nested/out.csv", WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "x,y"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "out.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\xEF\xBB\xBFa,b\n1,\"x,y\"\n", string(data))
}
