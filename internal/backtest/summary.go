package backtest

import "VolumeSentinel/internal/model"

// Summarize aggregates records per rule in model.Rules order. Count covers
// records with both returns present. Averages and win rates use only records
// whose return at that horizon is present; a rule with no records still gets
// a zero summary.
func Summarize(recs Records, horizon int) []model.RuleSummary {
	out := make([]model.RuleSummary, 0, len(model.Rules))
	for _, rule := range model.Rules {
		list := recs[rule]
		s := model.RuleSummary{Rule: rule, Horizon: horizon, Count: complete(list)}
		s.Avg1d, s.Win1d = aggregate(list, func(r model.BacktestRecord) *float64 { return r.Return1d })
		s.AvgNd, s.WinNd = aggregate(list, func(r model.BacktestRecord) *float64 { return r.ReturnNd })
		out = append(out, s)
	}
	return out
}

func complete(list []model.BacktestRecord) int {
	var n int
	for _, r := range list {
		if r.Return1d != nil && r.ReturnNd != nil {
			n++
		}
	}
	return n
}

func aggregate(list []model.BacktestRecord, pick func(model.BacktestRecord) *float64) (avg, win float64) {
	var sum float64
	var n, wins int
	for _, r := range list {
		v := pick(r)
		if v == nil {
			continue
		}
		sum += *v
		n++
		if *v > 0 {
			wins++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), float64(wins) / float64(n)
}
