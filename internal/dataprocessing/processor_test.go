package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lacphcli/pkg/contracts/domain"
)

type exclusionSet map[domain.Date]map[string]bool

func (e exclusionSet) Excluded(date domain.Date, area string) bool {
	return e[date][area]
}

func obs(date, area string, cases int64) AreaObservation {
	return AreaObservation{
		Date:     domain.MustParseDate(date),
		Area:     area,
		Cases:    domain.Known(cases),
		CaseRate: domain.KnownMeasure(float64(cases)),
	}
}

func TestForwardFillProcessor(t *testing.T) {
	d := domain.MustParseDate

	tests := []struct {
		name     string
		input    []AreaObservation
		excluded exclusionSet
		want     []domain.Count
		filled   []bool
	}{
		{
			name: "excluded value takes previous observation",
			input: []AreaObservation{
				obs("2020-06-01", "City of Vernon", 100),
				obs("2020-06-02", "City of Vernon", 9000),
				obs("2020-06-03", "City of Vernon", 120),
			},
			excluded: exclusionSet{d("2020-06-02"): {"City of Vernon": true}},
			want:     []domain.Count{domain.Known(100), domain.Known(100), domain.Known(120)},
			filled:   []bool{false, true, false},
		},
		{
			name: "consecutive exclusions keep the last valid value",
			input: []AreaObservation{
				obs("2020-06-01", "City of Vernon", 100),
				obs("2020-06-02", "City of Vernon", 9000),
				obs("2020-06-03", "City of Vernon", 8000),
			},
			excluded: exclusionSet{
				d("2020-06-02"): {"City of Vernon": true},
				d("2020-06-03"): {"City of Vernon": true},
			},
			want:   []domain.Count{domain.Known(100), domain.Known(100), domain.Known(100)},
			filled: []bool{false, true, true},
		},
		{
			name: "excluded first observation is unknown",
			input: []AreaObservation{
				obs("2020-06-01", "City of Vernon", 9000),
				obs("2020-06-02", "City of Vernon", 110),
			},
			excluded: exclusionSet{d("2020-06-01"): {"City of Vernon": true}},
			want:     []domain.Count{domain.Unknown(), domain.Known(110)},
			filled:   []bool{true, false},
		},
		{
			name: "other areas are untouched",
			input: []AreaObservation{
				obs("2020-06-01", "City of Vernon", 100),
				obs("2020-06-02", "City of Burbank", 55),
			},
			excluded: exclusionSet{d("2020-06-02"): {"City of Vernon": true}},
			want:     []domain.Count{domain.Known(100), domain.Known(55)},
			filled:   []bool{false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewForwardFillProcessor(tt.excluded).FillExcluded(tt.input)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.Equal(t, tt.want[i], got[i].Cases, "observation %d", i)
				assert.Equal(t, tt.filled[i], got[i].Filled, "observation %d", i)
				if got[i].Filled {
					assert.False(t, got[i].CaseRate.IsKnown())
				}
			}
		})
	}
}

func TestForwardFillLeavesInputUntouched(t *testing.T) {
	input := []AreaObservation{
		obs("2020-06-02", "City of Vernon", 9000),
		obs("2020-06-01", "City of Vernon", 100),
	}
	rules := exclusionSet{domain.MustParseDate("2020-06-02"): {"City of Vernon": true}}

	got, stats := NewForwardFillProcessor(rules).FillExcludedWithStats(input)

	assert.Equal(t, domain.Known(9000), input[0].Cases)
	assert.Equal(t, domain.MustParseDate("2020-06-01"), got[0].Date)
	assert.Equal(t, domain.Known(100), got[1].Cases)
	assert.Equal(t, ForwardFillStatistics{
		TotalObservations: 2,
		FilledCount:       1,
		AreasProcessed:    1,
		DatesProcessed:    2,
	}, stats)
}

func TestAreaObservations(t *testing.T) {
	r1 := domain.NewDailyReport(domain.MustParseDate("2020-06-02"))
	r1.Areas = []domain.AreaRow{
		{Name: "City of Vernon", Cases: domain.Known(3)},
		{Name: "City of Burbank", Cases: domain.Known(9), Outbreak: domain.FlagTrue},
	}
	r0 := domain.NewDailyReport(domain.MustParseDate("2020-06-01"))
	r0.Areas = []domain.AreaRow{{Name: "City of Vernon", Cases: domain.Known(2)}}

	got := AreaObservations([]*domain.DailyReport{r1, r0})

	require.Len(t, got, 3)
	assert.Equal(t, "2020-06-01", got[0].Date.String())
	assert.Equal(t, "City of Burbank", got[1].Area)
	assert.Equal(t, domain.FlagTrue, got[1].Outbreak)
	assert.Equal(t, "City of Vernon", got[2].Area)
}
