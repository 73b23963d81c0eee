// Package backtest replays the spike detector over stored history and
// measures the forward returns that followed each event.
package backtest

import (
	"VolumeSentinel/internal/config"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/strategy"
)

// Records groups backtest records by the rule that produced them.
type Records map[model.Rule][]model.BacktestRecord

// Merge appends other's records to r.
func (r Records) Merge(other Records) {
	for rule, recs := range other {
		r[rule] = append(r[rule], recs...)
	}
}

// Engine runs the detector at every index with an observable forward window.
type Engine struct {
	detector *strategy.Detector
	horizon  int
	minBars  int
}

// NewEngine shares detector with live screening so both apply identical
// windowing and eligibility.
func NewEngine(detector *strategy.Detector, cfg config.Analysis) *Engine {
	h := max(cfg.MaxHorizon(), 1)
	return &Engine{
		detector: detector,
		horizon:  h,
		minBars:  detector.Window() + h + 1,
	}
}

// Horizon is the longest forward horizon in bars.
func (e *Engine) Horizon() int { return e.horizon }

// Run evaluates every index i in [Window, len-Horizon) of s. Series shorter
// than Window+Horizon+1 bars return an *model.InsufficientHistoryError.
func (e *Engine) Run(s *model.Series) (Records, error) {
	n := s.Len()
	if n < e.minBars {
		return nil, &model.InsufficientHistoryError{Code: seriesCode(s), Have: n, Need: e.minBars}
	}

	out := Records{}
	bars := s.Bars
	for i := e.detector.Window(); i < n-e.horizon; i++ {
		// Only bars[:i+1] is visible to the decision.
		ratioHit, zHit, ev := e.detector.DetectAt(bars[:i+1], i)
		if ev == nil {
			continue
		}
		for _, rule := range strategy.FiredRules(ratioHit, zHit) {
			out[rule] = append(out[rule], model.BacktestRecord{
				Code:      s.Code,
				EntryDate: bars[i].Date,
				Return1d:  forwardReturn(bars, i, 1),
				ReturnNd:  forwardReturn(bars, i, e.horizon),
			})
		}
	}
	return out, nil
}

// forwardReturn is (close[i+h]-close[i])/close[i], nil when not observable.
func forwardReturn(bars []model.Bar, i, h int) *float64 {
	j := i + h
	if j >= len(bars) || bars[i].Close.IsZero() {
		return nil
	}
	r := bars[j].Close.Sub(bars[i].Close).Div(bars[i].Close).InexactFloat64()
	return &r
}

func seriesCode(s *model.Series) string {
	if s == nil {
		return ""
	}
	return s.Code
}
