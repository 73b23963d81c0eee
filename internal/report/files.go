package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"VolumeSentinel/internal/model"
)

// File names written by WriteScreen and WriteBacktest.
const (
	RatioRankFile   = "volume_spike_ratio_rank.csv"
	ZScoreRankFile  = "volume_spike_zscore_rank.csv"
	FailedFile      = "failed_instruments.csv"
	LaggingFile     = "stale_instruments.csv"
	BacktestSumFile = "backtest_summary.csv"
)

var rankFiles = map[model.Rule]string{
	model.RuleRatio:  RatioRankFile,
	model.RuleZScore: ZScoreRankFile,
}

// WriteScreen stores the rankings, failures and stale list under dir. Empty
// lists produce no file.
func WriteScreen(dir string, s *Screen) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, rule := range model.Rules {
		events := s.Hits[rule]
		if len(events) == 0 {
			continue
		}
		rows := [][]string{{"code", "name", "date", "close", "pct_chg", "volume", "amount", "vol_mean", "z_score", "vol_ratio"}}
		for _, ev := range events {
			rows = append(rows, []string{
				ev.Code, ev.Name, ev.Date, ev.Close.String(), ev.PctChange.String(),
				strconv.FormatInt(ev.Volume, 10), ev.Amount.String(),
				strconv.FormatFloat(ev.Mean, 'f', 0, 64),
				strconv.FormatFloat(ev.ZScore, 'f', 2, 64),
				strconv.FormatFloat(ev.Ratio, 'f', 2, 64),
			})
		}
		if err := writeCSV(filepath.Join(dir, rankFiles[rule]), rows); err != nil {
			return err
		}
	}

	if len(s.Failed) > 0 {
		rows := [][]string{{"code", "name", "reason"}}
		for _, f := range s.Failed {
			rows = append(rows, []string{f.Code, f.Name, f.Reason})
		}
		if err := writeCSV(filepath.Join(dir, FailedFile), rows); err != nil {
			return err
		}
	}

	if len(s.Lagging) > 0 {
		rows := [][]string{{"code", "name", "latest_date", "days_behind"}}
		for _, l := range s.Lagging {
			rows = append(rows, []string{l.Code, l.Name, l.LastDate, strconv.Itoa(l.DaysBehind)})
		}
		if err := writeCSV(filepath.Join(dir, LaggingFile), rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteBacktest stores the per-rule summary under dir.
func WriteBacktest(dir string, bt *Backtest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	n := strconv.Itoa(bt.Horizon)
	rows := [][]string{{"rule", "count", "avg_1d", "win_1d", "avg_" + n + "d", "win_" + n + "d"}}
	for _, s := range bt.Summaries {
		rows = append(rows, []string{
			string(s.Rule), strconv.Itoa(s.Count),
			strconv.FormatFloat(s.Avg1d, 'f', 6, 64),
			strconv.FormatFloat(s.Win1d, 'f', 4, 64),
			strconv.FormatFloat(s.AvgNd, 'f', 6, 64),
			strconv.FormatFloat(s.WinNd, 'f', 4, 64),
		})
	}
	return writeCSV(filepath.Join(dir, BacktestSumFile), rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
