package model

import "github.com/shopspring/decimal"

// Rule identifies a spike detection rule.
type Rule string

const (
	RuleRatio  Rule = "ratio"
	RuleZScore Rule = "zscore"
)

// Rules lists every detection rule in reporting order.
var Rules = []Rule{RuleRatio, RuleZScore}

// VolumeStats is the trailing-window baseline for one bar.
type VolumeStats struct {
	Mean   float64
	Std    float64 // floored
	ZScore float64
	Ratio  float64
}

// SpikeEvent describes a bar evaluated by the detector.
type SpikeEvent struct {
	Code      string
	Name      string
	Date      string
	Close     decimal.Decimal
	Volume    int64
	Mean      float64
	Std       float64
	ZScore    float64
	Ratio     float64
	PctChange decimal.Decimal
	Amount    decimal.Decimal
}

// Metric returns the value the given rule ranks by.
func (e *SpikeEvent) Metric(rule Rule) float64 {
	if rule == RuleZScore {
		return e.ZScore
	}
	return e.Ratio
}

// BacktestRecord is the forward outcome of one detected event.
type BacktestRecord struct {
	Code      string
	EntryDate string
	Return1d  *float64
	ReturnNd  *float64
}

// RuleSummary aggregates backtest records for one rule.
type RuleSummary struct {
	Rule    Rule
	Horizon int
	Count   int
	Avg1d   float64
	Win1d   float64
	AvgNd   float64
	WinNd   float64
}
