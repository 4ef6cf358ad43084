package recorder

import "MarketScreener/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error                        { return nil }
func (n *NoopRecorder) RecordRegime(_ string, _ model.RegimeSnapshot) error { return nil }
func (n *NoopRecorder) RecordFailures(_ []FailureEvent) error               { return nil }
func (n *NoopRecorder) Close() error                                        { return nil }
