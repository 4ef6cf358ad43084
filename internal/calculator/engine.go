// Package calculator derives per-bar technical indicators from raw OHLCV
// history. Two interchangeable backends implement Engine: a hand-rolled one
// and one backed by go-talib.
package calculator

import (
	"fmt"
	"strings"

	"MarketScreener/internal/model"
)

// Backend names accepted by NewEngine.
const (
	BackendNative = "native"
	BackendTalib  = "talib"
)

// Engine computes an IndicatorFrame from a PriceSeries. Implementations hold
// no state between calls.
type Engine interface {
	Name() string
	Compute(series *model.PriceSeries) (*model.IndicatorFrame, error)
}

// Params holds the indicator window lengths. They are fixed for the lifetime
// of an Engine.
type Params struct {
	MinBars           int     `yaml:"min_bars"`
	RSIPeriod         int     `yaml:"rsi_period"`
	MACDFast          int     `yaml:"macd_fast"`
	MACDSlow          int     `yaml:"macd_slow"`
	MACDSignal        int     `yaml:"macd_signal"`
	SMAFast           int     `yaml:"sma_fast"`
	SMASlow           int     `yaml:"sma_slow"`
	EMAPeriod         int     `yaml:"ema_period"`
	ATRPeriod         int     `yaml:"atr_period"`
	BBPeriod          int     `yaml:"bb_period"`
	BBStdDev          float64 `yaml:"bb_std_dev"`
	SqueezePercentile float64 `yaml:"squeeze_percentile"`
	SqueezeMinSamples int     `yaml:"squeeze_min_samples"`
	StochPeriod       int     `yaml:"stoch_period"`
	StochK            int     `yaml:"stoch_k"`
	StochD            int     `yaml:"stoch_d"`
	OBVMAPeriod       int     `yaml:"obv_ma_period"`
	VolumeMAFast      int     `yaml:"volume_ma_fast"`
	VolumeMASlow      int     `yaml:"volume_ma_slow"`
	SwingLowPeriod    int     `yaml:"swing_low_period"`
}

// DefaultParams returns the standard window lengths.
func DefaultParams() Params {
	return Params{
		MinBars:           50,
		RSIPeriod:         14,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		SMAFast:           50,
		SMASlow:           200,
		EMAPeriod:         20,
		ATRPeriod:         14,
		BBPeriod:          20,
		BBStdDev:          2,
		SqueezePercentile: 0.05,
		SqueezeMinSamples: 20,
		StochPeriod:       14,
		StochK:            3,
		StochD:            3,
		OBVMAPeriod:       5,
		VolumeMAFast:      5,
		VolumeMASlow:      20,
		SwingLowPeriod:    10,
	}
}

// NewEngine selects a backend by name.
func NewEngine(backend string, p Params) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendNative:
		return NewNativeEngine(p), nil
	case BackendTalib:
		return NewTalibEngine(p), nil
	default:
		return nil, fmt.Errorf("unknown indicator backend %q", backend)
	}
}

// columns is the column-oriented intermediate form both backends fill.
type columns struct {
	rsi, macd, macdSignal, macdHist []float64
	sma50, sma200, ema20, atr       []float64
	bbMid, bbUpper, bbLower         []float64
	bbWidth, bbWidthP5              []float64
	stochK, stochD                  []float64
	obv, obvMA                      []float64
	volMA5, volMA20, swingLow       []float64
}

func checkHistory(series *model.PriceSeries, p Params) error {
	if series.Len() < p.MinBars {
		return fmt.Errorf("%s: %d bars, need %d: %w",
			symbolOf(series), series.Len(), p.MinBars, model.ErrInsufficientHistory)
	}
	return nil
}

func symbolOf(series *model.PriceSeries) string {
	if series == nil {
		return ""
	}
	return series.Symbol
}

func closesAndVolumes(bars []model.OHLCV) (closes, volumes []float64) {
	closes = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	return closes, volumes
}

// assemble zips the columns back onto the source bars, one row per bar.
func assemble(series *model.PriceSeries, c *columns) *model.IndicatorFrame {
	rows := make([]model.IndicatorRow, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = model.IndicatorRow{
			Time:       b.Time,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			RSI:        c.rsi[i],
			MACD:       c.macd[i],
			MACDSignal: c.macdSignal[i],
			MACDHist:   c.macdHist[i],
			SMA50:      c.sma50[i],
			SMA200:     c.sma200[i],
			EMA20:      c.ema20[i],
			ATR:        c.atr[i],
			BBMid:      c.bbMid[i],
			BBUpper:    c.bbUpper[i],
			BBLower:    c.bbLower[i],
			BBWidth:    c.bbWidth[i],
			BBWidthP5:  c.bbWidthP5[i],
			StochK:     c.stochK[i],
			StochD:     c.stochD[i],
			OBV:        c.obv[i],
			OBVMA5:     c.obvMA[i],
			VolMA5:     c.volMA5[i],
			VolMA20:    c.volMA20[i],
			SwingLow10: c.swingLow[i],
		}
	}
	return &model.IndicatorFrame{Symbol: series.Symbol, Rows: rows}
}
