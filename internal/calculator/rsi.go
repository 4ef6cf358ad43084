package calculator

import "math"

// RSI computes the relative strength index with exponential smoothing
// (alpha = 1/period) of gains and losses. The first bar has no change and
// counts as zero gain and zero loss.
//
// A zero average loss with positive average gain saturates to 100; when both
// averages are zero the value is NaN.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else if change < 0 {
			losses[i] = -change
		}
	}

	alpha := 1.0 / float64(period)
	avgGain := ewma(gains, alpha)
	avgLoss := ewma(losses, alpha)

	out := make([]float64, n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// StochRSI normalises rsi into [0,1] against its own rolling min/max, then
// returns %K (scaled to 0..100) and %D.
func StochRSI(rsi []float64, period, kPeriod, dPeriod int) (k, d []float64) {
	lo := rollingMin(rsi, period)
	hi := rollingMax(rsi, period)
	raw := make([]float64, len(rsi))
	for i := range rsi {
		span := hi[i] - lo[i]
		if math.IsNaN(rsi[i]) || math.IsNaN(span) || span == 0 {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = (rsi[i] - lo[i]) / span
	}
	k = rollingMean(raw, kPeriod)
	for i := range k {
		k[i] *= 100
	}
	d = rollingMean(k, dPeriod)
	return k, d
}
