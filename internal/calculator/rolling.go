package calculator

import (
	"math"
	"sort"
)

// rolling applies fn to every full trailing window of xs. A window containing
// NaN yields NaN.
func rolling(xs []float64, window int, fn func(w []float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if window <= 0 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		w := xs[i-window+1 : i+1]
		if hasNaN(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func rollingMean(xs []float64, window int) []float64 {
	return rolling(xs, window, mean)
}

func rollingMin(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

func rollingMax(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

// rollingStd is the sample standard deviation (ddof=1) over the window.
func rollingStd(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		m := mean(w)
		var ss float64
		for _, v := range w {
			ss += (v - m) * (v - m)
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

// expandingQuantile returns, for each index, the q-quantile of all defined
// values up to and including that index. Fewer than minSamples defined
// values yields NaN.
func expandingQuantile(xs []float64, q float64, minSamples int) []float64 {
	out := make([]float64, len(xs))
	sorted := make([]float64, 0, len(xs))
	for i, x := range xs {
		if !math.IsNaN(x) {
			idx := sort.SearchFloat64s(sorted, x)
			sorted = append(sorted, 0)
			copy(sorted[idx+1:], sorted[idx:])
			sorted[idx] = x
		}
		if len(sorted) == 0 || len(sorted) < minSamples {
			out[i] = math.NaN()
			continue
		}
		out[i] = quantileSorted(sorted, q)
	}
	return out
}

// quantileSorted uses linear interpolation between closest ranks.
func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func mean(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

func hasNaN(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
