package model

import "time"

// RunReport is everything the report sink needs about one screening run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	Elapsed    time.Duration
	Scanned    int
	Failed     int
	Rejected   int
	Qualified  int // before top-N truncation
	Regime     RegimeSnapshot
	Candidates []*Candidate
}
