package recorder

import (
	"time"

	"MarketScreener/internal/model"
)

// Run status values.
const (
	StatusOK    = "OK"
	StatusFatal = "FATAL"
)

// RunRecord is the audit entry for one screening run. Scores are never
// stored.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	Status    string
	Regime    model.Regime
	Threshold int
	Scanned   int
	Failed    int
	Rejected  int
	Qualified int
	Reported  int
	Error     string
}

// RecordFromReport builds the audit entry of a completed run.
func RecordFromReport(r *model.RunReport) *RunRecord {
	return &RunRecord{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		Elapsed:   r.Elapsed,
		Status:    StatusOK,
		Regime:    r.Regime.Regime,
		Threshold: r.Regime.Threshold,
		Scanned:   r.Scanned,
		Failed:    r.Failed,
		Rejected:  r.Rejected,
		Qualified: r.Qualified,
		Reported:  len(r.Candidates),
	}
}

// FailureEvent records why one instrument could not be evaluated.
type FailureEvent struct {
	RunID  string
	Symbol string
	Reason string
}

// Recorder persists the run audit log.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecordRegime(runID string, snap model.RegimeSnapshot) error
	RecordFailures(evts []FailureEvent) error
	Close() error
}
