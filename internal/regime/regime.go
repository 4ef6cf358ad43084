// Package regime classifies the broad market state from a benchmark index.
package regime

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"MarketScreener/internal/calculator"
	"MarketScreener/internal/model"
)

// MinBars is the benchmark history required for a classification.
const MinBars = 200

// changeLookback is the bar count behind the snapshot's % change.
const changeLookback = 5

// Classifier turns benchmark history into a Regime.
type Classifier struct {
	Engine     calculator.Engine
	Thresholds model.ScoreThresholds
	MinBars    int
}

// NewClassifier creates a Classifier.
func NewClassifier(engine calculator.Engine, thresholds model.ScoreThresholds) *Classifier {
	return &Classifier{Engine: engine, Thresholds: thresholds, MinBars: MinBars}
}

// Classify computes the regime snapshot. Missing or short history and
// engine failures fall back to NEUTRAL with an explanatory note; the
// returned snapshot is always usable.
func (c *Classifier) Classify(series *model.PriceSeries) model.RegimeSnapshot {
	symbol := ""
	if series != nil {
		symbol = series.Symbol
	}
	if series.Len() < c.MinBars {
		return c.neutral(symbol, fmt.Sprintf("benchmark history too short (%d/%d bars)", series.Len(), c.MinBars))
	}

	frame, err := c.Engine.Compute(series)
	if err != nil {
		log.Warn().Err(err).Str("component", "regime").Msg("benchmark indicators failed, defaulting to NEUTRAL")
		return c.neutral(symbol, "benchmark indicators unavailable: "+err.Error())
	}

	last := frame.Last()
	snap := model.RegimeSnapshot{
		Symbol:     symbol,
		Close:      last.Close,
		SMA50:      last.SMA50,
		SMA200:     last.SMA200,
		RSI:        last.RSI,
		Change5Pct: percentChange(frame.Back(changeLookback).Close, last.Close),
		AsOf:       last.Time,
	}
	r, err := ClassifyRow(last)
	if err != nil {
		snap.Note = err.Error()
	}
	snap.Regime = r
	snap.Threshold = c.Thresholds.For(r)
	return snap
}

// ClassifyRow applies the moving-average rules to one indicator row.
func ClassifyRow(row model.IndicatorRow) (model.Regime, error) {
	if !model.Defined(row.Close, row.SMA50, row.SMA200) {
		return model.RegimeNeutral, fmt.Errorf("benchmark moving averages: %w", model.ErrUndefinedMetric)
	}
	switch {
	case row.Close > row.SMA50 && row.Close > row.SMA200 && row.SMA50 > row.SMA200:
		return model.RegimeBullish, nil
	case row.Close < row.SMA50 && row.Close < row.SMA200:
		return model.RegimeBearish, nil
	default:
		return model.RegimeNeutral, nil
	}
}

// Neutral is the snapshot used when the benchmark could not be fetched.
func (c *Classifier) Neutral(symbol string, err error) model.RegimeSnapshot {
	note := "benchmark unavailable"
	if err != nil {
		note += ": " + err.Error()
	}
	return c.neutral(symbol, note)
}

func (c *Classifier) neutral(symbol, note string) model.RegimeSnapshot {
	nan := math.NaN()
	return model.RegimeSnapshot{
		Regime:     model.RegimeNeutral,
		Symbol:     symbol,
		Close:      nan,
		SMA50:      nan,
		SMA200:     nan,
		RSI:        nan,
		Change5Pct: nan,
		Threshold:  c.Thresholds.For(model.RegimeNeutral),
		Note:       note,
	}
}

func percentChange(from, to float64) float64 {
	if from == 0 || !model.Defined(from, to) {
		return math.NaN()
	}
	return (to/from - 1) * 100
}
