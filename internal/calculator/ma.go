package calculator

import (
	"errors"
	"math"
)

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMA returns the trailing simple moving average for every index. Indices
// before the window is full are NaN.
func SMA(xs []float64, period int) []float64 {
	return rollingMean(xs, period)
}

// EMA returns the exponential moving average with alpha = 2/(span+1),
// seeded at the first value.
func EMA(xs []float64, span int) []float64 {
	return ewma(xs, 2.0/float64(span+1))
}

// ewma is a recursive exponential mean: y[0] = x[0], y[t] = (1-a)y[t-1] + a*x[t].
// Leading NaNs stay NaN; a NaN after the seed carries the previous mean forward.
func ewma(xs []float64, alpha float64) []float64 {
	out := make([]float64, len(xs))
	seeded := false
	var prev float64
	for i, x := range xs {
		switch {
		case math.IsNaN(x) && !seeded:
			out[i] = math.NaN()
			continue
		case math.IsNaN(x):
			out[i] = prev
			continue
		case !seeded:
			prev = x
			seeded = true
		default:
			prev = (1-alpha)*prev + alpha*x
		}
		out[i] = prev
	}
	return out
}

// MACD returns the line (fast EMA - slow EMA), its signal EMA and the
// histogram. All three are defined from the first bar.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f := EMA(closes, fast)
	s := EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}
