package datasync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"VolumeSentinel/internal/collector"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/tradedate"
)

// LatestTradingDate asks the provider for a liquid sample instrument's recent
// bars and returns the newest date. It is the "known true trading date" the
// policy compares stored series against.
func (s *Syncer) LatestTradingDate(ctx context.Context, sampleCode string) (time.Time, error) {
	if sampleCode == "" {
		return time.Time{}, fmt.Errorf("probe: no sample instrument")
	}
	today := s.today()
	lookback := s.probeLookback
	if lookback <= 0 {
		lookback = 10
	}
	w := collector.Window{Label: "probe", Start: tradedate.AddDays(today, -lookback), End: today}

	var bars []model.Bar
	err := collector.Retry(ctx, s.Retry, func(ctx context.Context, attempt int) error {
		var err error
		bars, err = s.Fetcher.Fetch(ctx, sampleCode, w.Start, w.End)
		s.observe(sampleCode, collector.Attempt{Window: w, Number: attempt, Err: err})
		return err
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("probe %s: %w", sampleCode, err)
	}
	if len(bars) == 0 {
		return time.Time{}, fmt.Errorf("probe %s: %w", sampleCode, model.ErrNoData)
	}

	var newest time.Time
	for _, b := range bars {
		d, err := tradedate.Parse(b.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("probe %s: %w", sampleCode, err)
		}
		if d.After(newest) {
			newest = d
		}
	}
	s.Log.Info("latest trading date confirmed",
		zap.String("sample", sampleCode),
		zap.String("date", newest.Format(tradedate.Layout)))
	return newest, nil
}
