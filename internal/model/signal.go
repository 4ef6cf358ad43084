package model

import (
	"fmt"
	"time"
)

// Regime is the coarse market trend classification.
type Regime string

const (
	RegimeBullish Regime = "BULLISH"
	RegimeNeutral Regime = "NEUTRAL"
	RegimeBearish Regime = "BEARISH"
)

// ScoreThresholds maps each regime to its minimum qualifying score.
type ScoreThresholds struct {
	Bullish int `yaml:"bullish"`
	Neutral int `yaml:"neutral"`
	Bearish int `yaml:"bearish"`
}

// DefaultThresholds are stricter in weaker markets.
var DefaultThresholds = ScoreThresholds{Bullish: 5, Neutral: 6, Bearish: 8}

// For returns the threshold for r. Unknown regimes use the neutral value.
func (t ScoreThresholds) For(r Regime) int {
	switch r {
	case RegimeBullish:
		return t.Bullish
	case RegimeBearish:
		return t.Bearish
	default:
		return t.Neutral
	}
}

// RegimeSnapshot is the human-readable state behind a regime decision.
type RegimeSnapshot struct {
	Regime     Regime
	Symbol     string
	Close      float64
	SMA50      float64
	SMA200     float64
	RSI        float64
	Change5Pct float64
	Threshold  int
	Note       string // set when the classifier fell back to NEUTRAL
	AsOf       time.Time
}

// TradeLevels holds the stop and target prices for a candidate.
type TradeLevels struct {
	StopLoss float64
	TP1      float64
	TP2      float64
	RR1      float64
	RR2      float64
	Risk     float64
}

// Candidate is one instrument that met the active threshold.
type Candidate struct {
	Symbol  string
	Name    string
	Close   float64
	RSI     float64
	Volume  float64
	Score   int
	Reasons []string
	Levels  TradeLevels

	weeklyConfirmed bool
}

// WeeklyConfirmed reports whether the weekly bonus was applied.
func (c *Candidate) WeeklyConfirmed() bool { return c.weeklyConfirmed }

// ApplyWeeklyBonus adds the weekly confirmation bonus. It only takes effect
// once per candidate and reports whether it did.
func (c *Candidate) ApplyWeeklyBonus(bonus int, tag string) bool {
	if c.weeklyConfirmed {
		return false
	}
	c.weeklyConfirmed = true
	c.Score += bonus
	c.Reasons = append(c.Reasons, tag)
	return true
}

// OutcomeStatus classifies what happened to one instrument in a run.
type OutcomeStatus int

const (
	OutcomeQualified OutcomeStatus = iota
	OutcomeRejected
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeQualified:
		return "qualified"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

// Outcome is the per-instrument result of a screening run.
type Outcome struct {
	Symbol    string
	Status    OutcomeStatus
	Candidate *Candidate
	Reason    string
	Err       error
}

// Qualified builds a successful outcome.
func Qualified(c *Candidate) Outcome {
	return Outcome{Symbol: c.Symbol, Status: OutcomeQualified, Candidate: c}
}

// Rejected builds an outcome for an instrument that was evaluated and dropped.
func Rejected(symbol, reason string) Outcome {
	return Outcome{Symbol: symbol, Status: OutcomeRejected, Reason: reason}
}

// Failed builds an outcome for an instrument that could not be evaluated.
func Failed(symbol string, err error) Outcome {
	return Outcome{Symbol: symbol, Status: OutcomeFailed, Reason: err.Error(), Err: err}
}
