package recorder

import (
	"time"

	"VolumeSentinel/internal/model"
)

// RunSummary is one screening or backtest pass.
type RunSummary struct {
	Mode        string // "screen" or "backtest"
	TradeDate   string
	Instruments int
	Updated     int
	Unchanged   int
	Failed      int
	Skipped     int
	Duration    time.Duration
}

// SyncFailure is an instrument whose data could not be refreshed.
type SyncFailure struct {
	TradeDate string
	Code      string
	Name      string
	Outcome   string
	Reason    string
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordRun(run *RunSummary) error
	RecordScreenHits(tradeDate string, rule model.Rule, events []*model.SpikeEvent) error
	RecordBacktest(tradeDate string, summaries []model.RuleSummary) error
	RecordSyncFailure(evt *SyncFailure) error
	Close() error
}
