// Package risk derives stop-loss and take-profit levels from the latest
// indicator row.
package risk

import (
	"math"

	"MarketScreener/internal/model"
)

// Params are the stop and target multipliers.
type Params struct {
	ATRMultiplier     float64 `yaml:"atr_multiplier"`
	TP1Ratio          float64 `yaml:"tp1_ratio"`
	TP2Ratio          float64 `yaml:"tp2_ratio"`
	FallbackStopRatio float64 `yaml:"fallback_stop_ratio"`
}

// DefaultParams returns a 1.5 ATR stop with Fibonacci 1.618/2.618 targets.
func DefaultParams() Params {
	return Params{
		ATRMultiplier:     1.5,
		TP1Ratio:          1.618,
		TP2Ratio:          2.618,
		FallbackStopRatio: 0.9,
	}
}

// Calculate returns trade levels for row. The result always has a positive
// risk as long as row.Close is positive.
func Calculate(row model.IndicatorRow, p Params) model.TradeLevels {
	price := row.Close
	volatility := row.ATR
	if !model.Defined(volatility) {
		volatility = row.High - row.Low
	}

	stop := price - p.ATRMultiplier*volatility
	if model.Defined(row.SwingLow10) {
		// NaN from the ATR leg loses to the swing low.
		if !model.Defined(stop) || row.SwingLow10 < stop {
			stop = row.SwingLow10
		}
	}
	if !(stop > 0) {
		stop = p.FallbackStopRatio * price
	}

	risk := price - stop
	if !(risk > 0) {
		risk = firstPositive(row.ATR, row.High-row.Low, (1-p.FallbackStopRatio)*price)
		stop = price - risk
	}

	tp1 := price + p.TP1Ratio*risk
	tp2 := price + p.TP2Ratio*risk
	return model.TradeLevels{
		StopLoss: stop,
		TP1:      tp1,
		TP2:      tp2,
		RR1:      (tp1 - price) / risk,
		RR2:      (tp2 - price) / risk,
		Risk:     risk,
	}
}

func firstPositive(xs ...float64) float64 {
	for _, x := range xs {
		if x > 0 && !math.IsInf(x, 0) {
			return x
		}
	}
	return math.NaN()
}
