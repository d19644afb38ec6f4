package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

func sampleReport(date, version string, cases int64) *domain.DailyReport {
	r := domain.NewDailyReport(domain.MustParseDate(date))
	r.NewCases = domain.Known(cases)
	r.NewDeaths = domain.Unknown()
	r.Hospitalizations = domain.NotApplicable()
	r.Cases[domain.DepartmentLongBeach] = domain.Known(cases * 10)
	r.CasesByAge["over 65"] = domain.Known(2032)
	r.Areas = []domain.AreaRow{{
		Name:     "City of Vernon",
		Cases:    domain.Known(4),
		CaseRate: domain.KnownMeasure(1.5),
		Outbreak: domain.FlagTrue,
	}}
	r.RuleVersion = version
	return r
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return openSQLite(t) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, ok, err := s.Get(ctx, domain.MustParseDate("2020-04-13"), "v1")
			require.NoError(t, err)
			assert.False(t, ok)

			want := sampleReport("2020-04-13", "v1", 420)
			require.NoError(t, s.Put(ctx, want))
			require.NoError(t, s.Put(ctx, sampleReport("2020-04-12", "v1", 300)))
			require.NoError(t, s.Put(ctx, sampleReport("2020-04-13", "v2", 999)))

			got, ok, err := s.Get(ctx, want.Date, "v1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, got)

			other, ok, err := s.Get(ctx, want.Date, "v2")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, domain.Known(999), other.NewCases, "versions never share records")

			// The log is append-only.
			require.NoError(t, s.Put(ctx, sampleReport("2020-04-13", "v1", 1)))
			got, _, err = s.Get(ctx, want.Date, "v1")
			require.NoError(t, err)
			assert.Equal(t, domain.Known(420), got.NewCases)

			list, err := s.List(ctx, "v1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "2020-04-12", list[0].Date.String())
			assert.Equal(t, "2020-04-13", list[1].Date.String())

			empty, err := s.List(ctx, "v3")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestPutRejectsUnversionedReport(t *testing.T) {
	s := NewMemoryStore()
	err := s.Put(context.Background(), sampleReport("2020-04-13", "", 1))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Zero(t, s.Len())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := sampleReport("2020-04-13", "v1", 420)
	require.NoError(t, s.Put(ctx, r))

	r.CasesByAge["over 65"] = domain.Known(1)
	got, _, err := s.Get(ctx, r.Date, "v1")
	require.NoError(t, err)
	assert.Equal(t, domain.Known(2032), got.CasesByAge["over 65"])

	got.Areas[0].Name = "changed"
	again, _, _ := s.Get(ctx, r.Date, "v1")
	assert.Equal(t, "City of Vernon", again.Areas[0].Name)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(" ")
	assert.Error(t, err)
}

func TestVersions(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return openSQLite(t) },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			versions, err := s.Versions(ctx)
			require.NoError(t, err)
			assert.Empty(t, versions)

			require.NoError(t, s.Put(ctx, sampleReport("2020-04-13", "b", 1)))
			require.NoError(t, s.Put(ctx, sampleReport("2020-04-14", "b", 1)))
			require.NoError(t, s.Put(ctx, sampleReport("2020-04-13", "a", 1)))

			versions, err = s.Versions(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, versions)
		})
	}
}

func TestGetOrParse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	date := domain.MustParseDate("2020-04-13")

	calls := 0
	parse := func(context.Context) (*domain.DailyReport, error) {
		calls++
		return sampleReport("2020-04-13", "v1", 420), nil
	}

	first, hit, err := GetOrParse(ctx, s, date, "v1", parse)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := GetOrParse(ctx, s, date, "v1", parse)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	t.Run("parse errors are not cached", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := GetOrParse(ctx, s, date.AddDays(1), "v1", func(context.Context) (*domain.DailyReport, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		_, ok, _ := s.Get(ctx, date.AddDays(1), "v1")
		assert.False(t, ok)
	})

	t.Run("version mismatch", func(t *testing.T) {
		_, _, err := GetOrParse(ctx, s, date, "v2", parse)
		assert.Error(t, err)
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore()
	require.NoError(t, src.Put(ctx, sampleReport("2020-04-13", "v1", 420)))
	require.NoError(t, src.Put(ctx, sampleReport("2020-04-12", "v1", 300)))
	require.NoError(t, src.Put(ctx, sampleReport("2020-04-12", "v0", 1)))

	path := filepath.Join(t.TempDir(), "nested", "history.json")
	require.NoError(t, WriteSnapshot(ctx, src, "v1", path))

	dst := openSQLite(t)
	snap, err := ReadSnapshot(ctx, dst, path)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.RuleVersion)
	require.Len(t, snap.Reports, 2)

	want, err := src.List(ctx, "v1")
	require.NoError(t, err)
	got, err := dst.List(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(context.Background(), NewMemoryStore(), filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}
