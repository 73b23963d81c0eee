package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolumeSentinel/internal/model"
)

func bar(date string, closePx float64, vol int64) model.Bar {
	return model.Bar{
		Date:      date,
		Close:     decimal.NewFromFloat(closePx),
		PctChange: decimal.NewFromFloat(1.5),
		Volume:    vol,
		Amount:    decimal.NewFromInt(vol * 10),
	}
}

func sampleSeries() *model.Series {
	return &model.Series{Code: "600000", Bars: []model.Bar{
		bar("2024-01-02", 10, 100),
		bar("2024-01-03", 10.5, 200),
		bar("2024-01-04", 10.2, 150),
		bar("2024-01-05", 10.8, 300),
	}}
}

func TestMerge_Idempotent(t *testing.T) {
	s := sampleSeries()

	self := Merge(s.Code, s, s.Bars)
	assert.Equal(t, s.Bars, self.Bars)

	subset := Merge(s.Code, s, s.Bars[1:3])
	assert.Equal(t, s.Bars, subset.Bars)

	again := Merge(s.Code, self, nil)
	assert.Equal(t, s.Bars, again.Bars)
}

func TestMerge_NormalizesAndSorts(t *testing.T) {
	existing := &model.Series{Code: "600000", Bars: []model.Bar{
		bar("2024/01/03", 10.5, 200),
		bar("2024-01-02", 10, 100),
	}}
	incoming := []model.Bar{
		bar("20240105", 10.8, 300),
		bar("2024-01-04", 10.2, 150),
	}
	got := Merge("600000", existing, incoming)
	require.Equal(t, 4, got.Len())
	dates := make([]string, 0, got.Len())
	for _, b := range got.Bars {
		dates = append(dates, b.Date)
	}
	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, dates)
}

func TestMerge_LaterBatchWins(t *testing.T) {
	existing := &model.Series{Code: "600000", Bars: []model.Bar{bar("2024-01-05", 10, 100)}}
	got := Merge("600000", existing, []model.Bar{bar("2024/01/05", 11, 120)})
	require.Equal(t, 1, got.Len())
	assert.True(t, got.Bars[0].Close.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, int64(120), got.Bars[0].Volume)
}

func TestMerge_DropsMalformedDates(t *testing.T) {
	got := Merge("600000", nil, []model.Bar{bar("not-a-date", 1, 1), bar("2024-01-05", 1, 1)})
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "2024-01-05", got.LastDate())
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	csvStore, err := NewCSVStore(filepath.Join(dir, "daily"), nil)
	require.NoError(t, err)
	sqlStore, err := NewSQLiteStore(filepath.Join(dir, "bars.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })
	return map[string]Store{"csv": csvStore, "sqlite": sqlStore}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := st.Load("600000")
			require.NoError(t, err)
			assert.Nil(t, got, "absent instrument must load as nil")

			s := sampleSeries()
			require.NoError(t, st.Persist(s))

			got, err = st.Load("600000")
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, s.Len(), got.Len())
			for i := range s.Bars {
				assert.Equal(t, s.Bars[i].Date, got.Bars[i].Date)
				assert.True(t, s.Bars[i].Close.Equal(got.Bars[i].Close), "close at %d", i)
				assert.Equal(t, s.Bars[i].Volume, got.Bars[i].Volume)
				assert.True(t, s.Bars[i].Amount.Equal(got.Bars[i].Amount), "amount at %d", i)
			}

			// a shorter rewrite replaces, never appends
			short := &model.Series{Code: "600000", Bars: s.Bars[:2]}
			require.NoError(t, st.Persist(short))
			got, err = st.Load("600000")
			require.NoError(t, err)
			assert.Equal(t, 2, got.Len())
		})
	}
}

func TestCSVStore_FailedWriteKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	st, err := NewCSVStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, st.Persist(sampleSeries()))

	st.rename = func(_, _ string) error { return errors.New("swap interrupted") }
	longer := Merge("600000", sampleSeries(), []model.Bar{bar("2024-01-08", 11, 400)})
	err = st.Persist(longer)
	var pe *model.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "600000", pe.Code)

	got, err := st.Load("600000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleSeries().Bars[3].Date, got.LastDate())
	assert.Equal(t, 4, got.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", fmt.Sprintf("leftover temp file %s", e.Name()))
	}
}

func TestSQLiteStore_FailedWriteRollsBack(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bars.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Persist(sampleSeries()))

	// the repeated date violates the primary key after the old rows were deleted
	broken := &model.Series{Code: "600000", Bars: []model.Bar{
		bar("2024-01-08", 11, 400),
		bar("2024-01-08", 11, 400),
	}}
	err = st.Persist(broken)
	var pe *model.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "600000", pe.Code)

	got, err := st.Load("600000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.Len())
	assert.Equal(t, "2024-01-05", got.LastDate())
}
