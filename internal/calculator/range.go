package calculator

import (
	"math"

	"MarketScreener/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prevClose := bars[i-1].Close
		out[i] = math.Max(hl, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return out
}

// ATR is the rolling mean of the true range.
func ATR(bars []model.OHLCV, period int) []float64 {
	return rollingMean(TrueRange(bars), period)
}

// SwingLow is the trailing minimum of lows over period bars.
func SwingLow(bars []model.OHLCV, period int) []float64 {
	lows := make([]float64, len(bars))
	for i, b := range bars {
		lows[i] = b.Low
	}
	return rollingMin(lows, period)
}

// Bollinger returns mid/upper/lower bands and the normalised band width.
func Bollinger(closes []float64, period int, k float64) (mid, upper, lower, width []float64) {
	mid = rollingMean(closes, period)
	sd := rollingStd(closes, period)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = mid[i] + k*sd[i]
		lower[i] = mid[i] - k*sd[i]
	}
	width = bandWidth(mid, upper, lower)
	return mid, upper, lower, width
}

func bandWidth(mid, upper, lower []float64) []float64 {
	width := make([]float64, len(mid))
	for i := range mid {
		if mid[i] == 0 || math.IsNaN(mid[i]) {
			width[i] = math.NaN()
			continue
		}
		width[i] = (upper[i] - lower[i]) / mid[i]
	}
	return width
}
