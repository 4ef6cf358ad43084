// Package strategy scores one instrument's indicator frame against the
// additive rule table.
package strategy

import (
	"fmt"

	"MarketScreener/internal/model"
)

// Rejection reasons.
const (
	RejectPrice     = "close below minimum price"
	RejectLiquidity = "average volume below minimum"
	RejectRSI       = "RSI undefined"
	RejectScore     = "score below threshold"
)

// Params holds the liquidity gate.
type Params struct {
	MinPrice     float64 `yaml:"min_price"`
	MinVolumeAvg float64 `yaml:"min_volume_avg"`
}

// DefaultParams returns the standard liquidity gate.
func DefaultParams() Params {
	return Params{MinPrice: 100, MinVolumeAvg: 100_000}
}

// Verdict is the scoring result for one instrument.
type Verdict struct {
	Score     int
	Reasons   []string
	Qualified bool
	Rejection string
}

// Evaluate scores the latest bar of frame. threshold is the minimum score of
// the active regime. An error means the frame could not be scored at all.
func Evaluate(frame *model.IndicatorFrame, threshold int, p Params) (Verdict, error) {
	if frame.Len() < 2 {
		return Verdict{}, fmt.Errorf("scoring needs 2 rows, have %d: %w", frame.Len(), model.ErrInsufficientHistory)
	}
	in := input{
		curr:    frame.Last(),
		prev:    frame.Prev(),
		obvBack: frame.Back(obvLookback).OBV,
	}

	// Liquidity gate short-circuits before any rule.
	if !(in.curr.Close >= p.MinPrice) {
		return Verdict{Rejection: RejectPrice}, nil
	}
	if !(in.curr.VolMA20 >= p.MinVolumeAvg) {
		return Verdict{Rejection: RejectLiquidity}, nil
	}
	if !model.Defined(in.curr.RSI) {
		return Verdict{Rejection: RejectRSI}, nil
	}

	var v Verdict
	for _, r := range rules {
		if h, ok := r(in); ok {
			v.Score += h.points
			v.Reasons = append(v.Reasons, h.tag)
		}
	}
	v.Qualified = v.Score >= threshold
	if !v.Qualified {
		v.Rejection = RejectScore
	}
	return v, nil
}
