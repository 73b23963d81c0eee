package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolumeSentinel/internal/model"
)

func sampleScreen() *Screen {
	s := NewScreen("2024-03-15", "2024-03-15")
	ev := &model.SpikeEvent{
		Code: "600000", Name: "浦发银行", Date: "2024-03-15",
		Close: decimal.NewFromFloat(7.12), PctChange: decimal.NewFromFloat(4.5),
		Volume: 3_000_000, Amount: decimal.NewFromInt(210_000_000),
		Mean: 1_000_000, ZScore: 12.34, Ratio: 3.0,
	}
	s.Hits.Add(ev, true, true)
	s.Class("600000").Processed++
	s.Class("688981").Processed++
	s.Class("688981").Failed++
	s.Failed = append(s.Failed, Failure{Code: "688981", Name: "中芯国际", Reason: "timeout"})
	s.Lagging = append(s.Lagging,
		Lagging{Code: "600001", LastDate: "2024-03-12", DaysBehind: 3},
		Lagging{Code: "600002", LastDate: "2024-03-08", DaysBehind: 7})
	return s
}

func TestNewScreen_AllClassesPresent(t *testing.T) {
	s := sampleScreen()
	assert.Len(t, s.Classes, 3)
	assert.Equal(t, 2, s.Processed())
	assert.Equal(t, 1, s.Classes["68"].Failed)
}

func TestFormatScreen(t *testing.T) {
	out := FormatScreen(sampleScreen(), 10)

	assert.Contains(t, out, "Latest trading date: 2024-03-15")
	assert.Contains(t, out, "Ratio ranking (1)")
	assert.Contains(t, out, "600000 浦发银行 close 7.12 +4.50% ratio 3.00 z 12.34")
	assert.Contains(t, out, "688981 中芯国际: timeout")
	assert.Less(t, strings.Index(out, "600002"), strings.Index(out, "600001"), "most stale listed first")
}

func TestFormatBacktest(t *testing.T) {
	out := FormatBacktest(&Backtest{
		TradeDate: "2024-03-15", Instruments: 10, Evaluated: 8, Horizon: 5,
		Summaries: []model.RuleSummary{{Rule: model.RuleRatio, Horizon: 5, Count: 4, Avg1d: 0.012, Win1d: 0.75}},
	})
	assert.Contains(t, out, "avg_5d")
	assert.Contains(t, out, "+1.20%")
	assert.Contains(t, out, "75.0%")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteScreen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteScreen(dir, sampleScreen()))

	rows := readCSV(t, filepath.Join(dir, RatioRankFile))
	require.Len(t, rows, 2)
	assert.Equal(t, "600000", rows[1][0])
	assert.Equal(t, "3.00", rows[1][9])

	assert.Len(t, readCSV(t, filepath.Join(dir, FailedFile)), 2)
	assert.Len(t, readCSV(t, filepath.Join(dir, LaggingFile)), 3)
}

func TestWriteBacktest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteBacktest(dir, &Backtest{Horizon: 5, Summaries: []model.RuleSummary{{Rule: model.RuleZScore, Count: 2}}}))

	rows := readCSV(t, filepath.Join(dir, BacktestSumFile))
	assert.Equal(t, []string{"rule", "count", "avg_1d", "win_1d", "avg_5d", "win_5d"}, rows[0])
	assert.Equal(t, "zscore", rows[1][0])
}
