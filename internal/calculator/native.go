package calculator

import "MarketScreener/internal/model"

// NativeEngine computes every indicator in plain Go.
type NativeEngine struct {
	p Params
}

// NewNativeEngine creates a NativeEngine.
func NewNativeEngine(p Params) *NativeEngine {
	return &NativeEngine{p: p}
}

func (e *NativeEngine) Name() string { return BackendNative }

// Compute derives the full IndicatorFrame.
func (e *NativeEngine) Compute(series *model.PriceSeries) (*model.IndicatorFrame, error) {
	if err := checkHistory(series, e.p); err != nil {
		return nil, err
	}
	p := e.p
	bars := series.Bars
	closes, volumes := closesAndVolumes(bars)

	c := &columns{}
	c.rsi = RSI(closes, p.RSIPeriod)

	c.macd, c.macdSignal, c.macdHist = MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)

	c.sma50 = SMA(closes, p.SMAFast)
	c.sma200 = SMA(closes, p.SMASlow)
	c.ema20 = EMA(closes, p.EMAPeriod)
	c.atr = ATR(bars, p.ATRPeriod)

	c.bbMid, c.bbUpper, c.bbLower, c.bbWidth = Bollinger(closes, p.BBPeriod, p.BBStdDev)
	c.bbWidthP5 = expandingQuantile(c.bbWidth, p.SqueezePercentile, p.SqueezeMinSamples)

	c.stochK, c.stochD = StochRSI(c.rsi, p.StochPeriod, p.StochK, p.StochD)

	c.obv = OBV(bars)
	c.obvMA = rollingMean(c.obv, p.OBVMAPeriod)

	c.volMA5 = rollingMean(volumes, p.VolumeMAFast)
	c.volMA20 = rollingMean(volumes, p.VolumeMASlow)
	c.swingLow = SwingLow(bars, p.SwingLowPeriod)

	return assemble(series, c), nil
}
