package strategy

import (
	"MarketScreener/internal/model"
)

// Reason tags.
const (
	TagRSIOversold       = "RSI Oversold (<30)"
	TagRSICheap          = "RSI Cheap (<40)"
	TagMACDGoldenCross   = "MACD Golden Cross"
	TagMACDStrengthening = "MACD Strengthening"
	TagVolumeSpike       = "Volume Spike (>1.5x Avg)"
	TagAboveSMA200       = "Uptrend (Above MA200)"
	TagBBBounce          = "Bollinger Lower Bounce"
	TagBBSqueeze         = "Bollinger Squeeze Breakout"
	TagStochCross        = "StochRSI Cross Up"
	TagOBVRising         = "OBV Rising"
	TagAboveEMA20        = "Above EMA20"
)

const (
	rsiOversold         = 30.0
	rsiCheap            = 40.0
	macdStrengthenFloor = -0.5
	volumeSpikeRatio    = 1.5
	bbBounceTolerance   = 1.01
	stochOversold       = 30.0
	obvLookback         = 5
)

type input struct {
	curr    model.IndicatorRow
	prev    model.IndicatorRow
	obvBack float64 // OBV obvLookback bars before curr
}

type hit struct {
	points int
	tag    string
}

// rule returns ok=false when its condition is not met or a required value is
// undefined. NaN comparisons are always false, so undefined inputs disable
// only the rule that reads them.
type rule func(in input) (hit, bool)

var rules = []rule{
	scoreRSI,
	scoreMACD,
	scoreVolumeSpike,
	scoreAboveSMA200,
	scoreBollinger,
	scoreStochRSI,
	scoreOBV,
	scoreAboveEMA20,
}

func scoreRSI(in input) (hit, bool) {
	rsi := in.curr.RSI
	switch {
	case rsi < rsiOversold:
		return hit{3, TagRSIOversold}, true
	case rsi >= rsiOversold && rsi < rsiCheap:
		return hit{1, TagRSICheap}, true
	}
	return hit{}, false
}

// scoreMACD: a fresh histogram sign flip beats a merely rising histogram.
func scoreMACD(in input) (hit, bool) {
	curr, prev := in.curr.MACDHist, in.prev.MACDHist
	switch {
	case prev < 0 && curr > 0:
		return hit{3, TagMACDGoldenCross}, true
	case curr > prev && curr > macdStrengthenFloor:
		return hit{1, TagMACDStrengthening}, true
	}
	return hit{}, false
}

func scoreVolumeSpike(in input) (hit, bool) {
	if in.curr.Volume > volumeSpikeRatio*in.curr.VolMA5 {
		return hit{2, TagVolumeSpike}, true
	}
	return hit{}, false
}

func scoreAboveSMA200(in input) (hit, bool) {
	if in.curr.Close > in.curr.SMA200 {
		return hit{1, TagAboveSMA200}, true
	}
	return hit{}, false
}

func scoreBollinger(in input) (hit, bool) {
	if in.prev.Close <= bbBounceTolerance*in.prev.BBLower && in.curr.Close > in.curr.BBLower {
		return hit{2, TagBBBounce}, true
	}
	if in.prev.BBWidth <= in.prev.BBWidthP5 && in.curr.Close > in.curr.BBMid {
		return hit{2, TagBBSqueeze}, true
	}
	return hit{}, false
}

func scoreStochRSI(in input) (hit, bool) {
	c, p := in.curr, in.prev
	if c.StochK < stochOversold && p.StochK <= p.StochD && c.StochK > c.StochD {
		return hit{2, TagStochCross}, true
	}
	return hit{}, false
}

func scoreOBV(in input) (hit, bool) {
	if in.curr.OBV > in.curr.OBVMA5 && in.obvBack < in.curr.OBV {
		return hit{1, TagOBVRising}, true
	}
	return hit{}, false
}

func scoreAboveEMA20(in input) (hit, bool) {
	if in.curr.Close > in.curr.EMA20 {
		return hit{1, TagAboveEMA20}, true
	}
	return hit{}, false
}
