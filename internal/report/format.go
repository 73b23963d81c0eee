package report

import (
	"fmt"
	"slices"
	"strings"

	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/universe"
)

var classNames = map[string]string{
	"60":    "Shanghai main (60)",
	"68":    "STAR market (68)",
	"other": "other",
}

var ruleNames = map[model.Rule]string{
	model.RuleRatio:  "Ratio",
	model.RuleZScore: "Z-score",
}

// maxListed caps how many failed or lagging instruments are printed.
const maxListed = 20

// FormatScreen renders the screening report with the top n hits per rule.
func FormatScreen(s *Screen, top int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 VolumeSentinel screen | %s\n", s.Today)
	if s.TradeDate != "" {
		fmt.Fprintf(&b, "Latest trading date: %s\n", s.TradeDate)
	} else {
		b.WriteString("Latest trading date: unknown, using each series' last bar\n")
	}
	if len(s.LastDates) > 1 {
		fmt.Fprintf(&b, "⚠️ series end on %d different dates\n", len(s.LastDates))
	}

	for _, rule := range model.Rules {
		events := s.Hits[rule]
		fmt.Fprintf(&b, "\n📈 %s ranking (%d)\n", ruleNames[rule], len(events))
		if len(events) == 0 {
			b.WriteString("  none\n")
			continue
		}
		for i, ev := range events[:min(max(top, 0), len(events))] {
			fmt.Fprintf(&b, "  %2d. %s %s close %s %+.2f%% ratio %.2f z %.2f\n",
				i+1, ev.Code, ev.Name, ev.Close.StringFixed(2), ev.PctChange.InexactFloat64(), ev.Ratio, ev.ZScore)
		}
	}

	b.WriteString("\n🔄 Data update\n")
	fmt.Fprintf(&b, "  updated: %d | unchanged: %d | failed: %d\n", s.Updates.Updated, s.Updates.Unchanged, s.Updates.Failed)

	b.WriteString("\n📦 By class\n")
	for _, c := range universe.Classes {
		st := s.Classes[c]
		fmt.Fprintf(&b, "  %s: processed %d, on date %d, ratio %d, z %d, failed %d\n",
			classNames[c], st.Processed, st.HasTarget, st.RatioHits, st.ZHits, st.Failed)
	}

	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "\nInsufficient history: %d instruments\n", len(s.Skipped))
	}
	writeFailures(&b, s.Failed)
	if len(s.Recovered) > 0 {
		fmt.Fprintf(&b, "Recovered on retry: %s\n", strings.Join(s.Recovered, ", "))
	}

	if len(s.Lagging) > 0 {
		lag := slices.Clone(s.Lagging)
		slices.SortStableFunc(lag, func(a, b Lagging) int { return b.DaysBehind - a.DaysBehind })
		fmt.Fprintf(&b, "\n⏳ Stale data: %d instruments\n", len(lag))
		for _, l := range lag[:min(maxListed, len(lag))] {
			fmt.Fprintf(&b, "  %s %s: last %s, %d days behind\n", l.Code, l.Name, l.LastDate, l.DaysBehind)
		}
		if len(lag) > maxListed {
			fmt.Fprintf(&b, "  ... %d more\n", len(lag)-maxListed)
		}
	}
	return b.String()
}

func writeFailures(b *strings.Builder, failed []Failure) {
	if len(failed) == 0 {
		return
	}
	fmt.Fprintf(b, "\n❌ Failed: %d instruments\n", len(failed))
	for _, f := range failed[:min(maxListed, len(failed))] {
		fmt.Fprintf(b, "  %s %s: %s\n", f.Code, f.Name, f.Reason)
	}
	if len(failed) > maxListed {
		fmt.Fprintf(b, "  ... %d more\n", len(failed)-maxListed)
	}
}

// FormatBacktest renders the per-rule backtest summary.
func FormatBacktest(bt *Backtest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🧪 VolumeSentinel backtest | %s\n", bt.TradeDate)
	fmt.Fprintf(&b, "Instruments: %d | evaluated: %d | short history: %d | failed: %d\n\n",
		bt.Instruments, bt.Evaluated, len(bt.Skipped), len(bt.Failed))

	fmt.Fprintf(&b, "%-8s %6s %8s %7s %8s %7s\n", "rule", "count", "avg_1d", "win_1d",
		fmt.Sprintf("avg_%dd", bt.Horizon), fmt.Sprintf("win_%dd", bt.Horizon))
	for _, s := range bt.Summaries {
		fmt.Fprintf(&b, "%-8s %6d %+7.2f%% %6.1f%% %+7.2f%% %6.1f%%\n",
			ruleNames[s.Rule], s.Count, s.Avg1d*100, s.Win1d*100, s.AvgNd*100, s.WinNd*100)
	}
	writeFailures(&b, bt.Failed)
	return b.String()
}
