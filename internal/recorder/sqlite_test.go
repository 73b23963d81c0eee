package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolumeSentinel/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLiteRecorder_ScreenHitsKeepRank(t *testing.T) {
	r := openTestRecorder(t)
	events := []*model.SpikeEvent{
		{Code: "600002", Name: "B", Ratio: 4.0, Close: decimal.NewFromFloat(10.5), Amount: decimal.NewFromInt(300000000)},
		{Code: "600001", Name: "A", Ratio: 2.5, Close: decimal.NewFromInt(8), Amount: decimal.NewFromInt(150000000)},
	}
	require.NoError(t, r.RecordScreenHits("2024-03-15", model.RuleRatio, events))
	require.NoError(t, r.RecordScreenHits("2024-03-15", model.RuleZScore, nil))

	rows, err := r.db.Query(`SELECT rank, code, close FROM screen_hits WHERE rule = ? ORDER BY rank`, "ratio")
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var rank int
		var code, closePx string
		require.NoError(t, rows.Scan(&rank, &code, &closePx))
		got = append(got, code+"@"+closePx)
	}
	assert.Equal(t, []string{"600002@10.5", "600001@8"}, got)
	assert.Equal(t, 2, count(t, r, "screen_hits"))
}

func TestSQLiteRecorder_BacktestAndRuns(t *testing.T) {
	r := openTestRecorder(t)
	r.now = func() time.Time { return time.Unix(1710489600, 0) }

	require.NoError(t, r.RecordBacktest("2024-03-15", []model.RuleSummary{
		{Rule: model.RuleRatio, Horizon: 5, Count: 12, Avg1d: 0.01, Win1d: 0.5, AvgNd: 0.02, WinNd: 0.6},
		{Rule: model.RuleZScore, Horizon: 5},
	}))
	require.NoError(t, r.RecordRun(&RunSummary{Mode: "backtest", TradeDate: "2024-03-15", Instruments: 3, Duration: 1500 * time.Millisecond}))
	require.NoError(t, r.RecordSyncFailure(&SyncFailure{TradeDate: "2024-03-15", Code: "600003", Outcome: "failed", Reason: "timeout"}))

	assert.Equal(t, 2, count(t, r, "backtest_summaries"))
	assert.Equal(t, 1, count(t, r, "sync_failures"))

	var ts, ms int64
	require.NoError(t, r.db.QueryRow(`SELECT timestamp, duration_ms FROM runs`).Scan(&ts, &ms))
	assert.Equal(t, int64(1710489600), ts)
	assert.Equal(t, int64(1500), ms)
}

func TestSQLiteRecorder_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	r, err := NewSQLiteRecorder(path, nil)
	require.NoError(t, err)
	require.NoError(t, r.RecordSyncFailure(&SyncFailure{Code: "600000"}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path, nil)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 1, count(t, r, "sync_failures"))
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	assert.NoError(t, rec.RecordRun(&RunSummary{}))
	assert.NoError(t, rec.RecordScreenHits("", model.RuleRatio, nil))
	assert.NoError(t, rec.Close())
}
