package calculator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"MarketScreener/internal/model"
)

// TalibEngine computes the windowed indicators with go-talib. ta-lib emits
// zeros for warm-up bars; those are masked to NaN using each function's
// lookback.
//
// ta-lib seeds RSI, EMA and MACD with an SMA and reports RSI 0 for a flat
// series, so those columns share the first-close-seeded helpers with
// NativeEngine. Bollinger bands use the sample standard deviation.
type TalibEngine struct {
	p Params
}

// NewTalibEngine creates a TalibEngine.
func NewTalibEngine(p Params) *TalibEngine {
	return &TalibEngine{p: p}
}

func (e *TalibEngine) Name() string { return BackendTalib }

// Compute derives the full IndicatorFrame.
func (e *TalibEngine) Compute(series *model.PriceSeries) (frame *model.IndicatorFrame, err error) {
	if err := checkHistory(series, e.p); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			frame, err = nil, fmt.Errorf("%s: talib: %v", series.Symbol, r)
		}
	}()

	p := e.p
	bars := series.Bars
	n := len(bars)
	closes, volumes := closesAndVolumes(bars)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	c := &columns{}
	c.rsi = RSI(closes, p.RSIPeriod)
	c.macd, c.macdSignal, c.macdHist = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)

	c.sma50 = talibSMA(closes, p.SMAFast)
	c.sma200 = talibSMA(closes, p.SMASlow)
	c.ema20 = EMA(closes, p.EMAPeriod)

	tr := talib.TRange(highs, lows, closes)
	tr[0] = highs[0] - lows[0]
	c.atr = talibSMA(tr, p.ATRPeriod)

	c.bbMid, c.bbUpper, c.bbLower = talibBands(closes, p.BBPeriod, p.BBStdDev)
	c.bbWidth = bandWidth(c.bbMid, c.bbUpper, c.bbLower)
	c.bbWidthP5 = expandingQuantile(c.bbWidth, p.SqueezePercentile, p.SqueezeMinSamples)

	c.stochK, c.stochD = StochRSI(c.rsi, p.StochPeriod, p.StochK, p.StochD)

	obv := talib.Obv(closes, volumes)
	for i := range obv {
		obv[i] -= volumes[0]
	}
	c.obv = obv
	c.obvMA = talibSMA(c.obv, p.OBVMAPeriod)

	c.volMA5 = talibSMA(volumes, p.VolumeMAFast)
	c.volMA20 = talibSMA(volumes, p.VolumeMASlow)
	c.swingLow = guarded(n, p.SwingLowPeriod-1, func() []float64 { return talib.Min(lows, p.SwingLowPeriod) })

	return assemble(series, c), nil
}

// talibBands rescales ta-lib's population deviation to the sample one.
func talibBands(closes []float64, period int, k float64) (mid, upper, lower []float64) {
	n := len(closes)
	mid, upper, lower = nanSeries(n), nanSeries(n), nanSeries(n)
	if period < 2 || n < period {
		return mid, upper, lower
	}
	mid = talibSMA(closes, period)
	sd := masked(talib.StdDev(closes, period, 1), period-1)
	scale := math.Sqrt(float64(period) / float64(period-1))
	for i := period - 1; i < n; i++ {
		dev := k * sd[i] * scale
		upper[i] = mid[i] + dev
		lower[i] = mid[i] - dev
	}
	return mid, upper, lower
}

func talibSMA(xs []float64, period int) []float64 {
	return guarded(len(xs), period-1, func() []float64 { return talib.Sma(xs, period) })
}

// guarded runs fn only when there is at least one bar past the lookback.
func guarded(n, lookback int, fn func() []float64) []float64 {
	if n <= lookback {
		return nanSeries(n)
	}
	return masked(fn(), lookback)
}

func masked(xs []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(xs); i++ {
		xs[i] = math.NaN()
	}
	return xs
}
