package recorder

import "VolumeSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunSummary) error                                        { return nil }
func (n *NoopRecorder) RecordScreenHits(_ string, _ model.Rule, _ []*model.SpikeEvent) error { return nil }
func (n *NoopRecorder) RecordBacktest(_ string, _ []model.RuleSummary) error                 { return nil }
func (n *NoopRecorder) RecordSyncFailure(_ *SyncFailure) error                               { return nil }
func (n *NoopRecorder) Close() error                                                         { return nil }
