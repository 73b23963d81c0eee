// Package strategy applies the volume spike rules to a bar sequence.
package strategy

import (
	"github.com/shopspring/decimal"

	"VolumeSentinel/internal/calculator"
	"VolumeSentinel/internal/config"
	"VolumeSentinel/internal/model"
)

// Detector evaluates the ratio rule and the z-score rule at a bar index.
// It has no mutable state, so live screening and the backtest share one value.
type Detector struct {
	cfg       config.Analysis
	stats     calculator.RollingEngine
	minPct    decimal.Decimal
	maxPct    decimal.Decimal
	minAmount decimal.Decimal
}

// NewDetector builds a detector from the analysis parameters.
func NewDetector(cfg config.Analysis) *Detector {
	return &Detector{
		cfg:       cfg,
		stats:     calculator.NewRollingEngine(cfg.Window, cfg.StdFloor),
		minPct:    decimal.NewFromFloat(cfg.MinPctChg),
		maxPct:    decimal.NewFromFloat(cfg.MaxPctChg),
		minAmount: decimal.NewFromFloat(cfg.MinAmount),
	}
}

// Window is the number of bars preceding a target that form its baseline.
func (d *Detector) Window() int { return d.stats.Window }

// Eligible reports whether a bar passes the shared filter:
// MinPctChg <= pct < MaxPctChg and amount >= MinAmount.
func (d *Detector) Eligible(b model.Bar) bool {
	return b.PctChange.GreaterThanOrEqual(d.minPct) &&
		b.PctChange.LessThan(d.maxPct) &&
		b.Amount.GreaterThanOrEqual(d.minAmount)
}

// DetectAt evaluates bars[i] against the Window bars before it. It reads no
// bar after i. The event is nil when no baseline can be computed; otherwise
// it is returned even when neither rule fires.
func (d *Detector) DetectAt(bars []model.Bar, i int) (ratioHit, zHit bool, ev *model.SpikeEvent) {
	st, ok := d.stats.At(bars, i)
	if !ok {
		return false, false, nil
	}
	b := bars[i]
	ev = &model.SpikeEvent{
		Date:      b.Date,
		Close:     b.Close,
		Volume:    b.Volume,
		Mean:      st.Mean,
		Std:       st.Std,
		ZScore:    st.ZScore,
		Ratio:     st.Ratio,
		PctChange: b.PctChange,
		Amount:    b.Amount,
	}
	if !d.Eligible(b) {
		return false, false, ev
	}
	return st.Ratio >= d.cfg.VolMultiple, st.ZScore >= d.cfg.ZThreshold, ev
}

// DetectLatest evaluates the most recent bar.
func (d *Detector) DetectLatest(bars []model.Bar) (ratioHit, zHit bool, ev *model.SpikeEvent) {
	return d.DetectAt(bars, len(bars)-1)
}

// DetectOn evaluates the bar dated date (canonical form). A date missing
// from the series yields no event.
func (d *Detector) DetectOn(bars []model.Bar, date string) (ratioHit, zHit bool, ev *model.SpikeEvent) {
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Date == date {
			return d.DetectAt(bars, i)
		}
	}
	return false, false, nil
}

// FiredRules lists the rules that fired, in model.Rules order.
func FiredRules(ratioHit, zHit bool) []model.Rule {
	var rules []model.Rule
	if ratioHit {
		rules = append(rules, model.RuleRatio)
	}
	if zHit {
		rules = append(rules, model.RuleZScore)
	}
	return rules
}
