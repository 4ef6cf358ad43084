package model

import (
	"math"
	"time"
)

// IndicatorRow carries the derived values for one bar. Values inside a
// metric's warm-up window are NaN.
type IndicatorRow struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	SMA50      float64
	SMA200     float64
	EMA20      float64
	ATR        float64

	BBMid     float64
	BBUpper   float64
	BBLower   float64
	BBWidth   float64
	BBWidthP5 float64 // 5th percentile of widths observed up to this row

	StochK float64
	StochD float64

	OBV    float64
	OBVMA5 float64

	VolMA5     float64
	VolMA20    float64
	SwingLow10 float64
}

// IndicatorFrame holds one IndicatorRow per source bar, index-aligned.
type IndicatorFrame struct {
	Symbol string
	Rows   []IndicatorRow
}

// Len returns the number of rows.
func (f *IndicatorFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Last returns the most recent row.
func (f *IndicatorFrame) Last() IndicatorRow { return f.Back(0) }

// Prev returns the row before the most recent one.
func (f *IndicatorFrame) Prev() IndicatorRow { return f.Back(1) }

// Back returns the row n bars before the latest. Out of range yields an
// all-NaN row.
func (f *IndicatorFrame) Back(n int) IndicatorRow {
	i := len(f.Rows) - 1 - n
	if i < 0 || i >= len(f.Rows) {
		return UndefinedRow()
	}
	return f.Rows[i]
}

// UndefinedRow returns a row whose every value is NaN.
func UndefinedRow() IndicatorRow {
	nan := math.NaN()
	return IndicatorRow{
		Open: nan, High: nan, Low: nan, Close: nan, Volume: nan,
		RSI: nan, MACD: nan, MACDSignal: nan, MACDHist: nan,
		SMA50: nan, SMA200: nan, EMA20: nan, ATR: nan,
		BBMid: nan, BBUpper: nan, BBLower: nan, BBWidth: nan, BBWidthP5: nan,
		StochK: nan, StochD: nan, OBV: nan, OBVMA5: nan,
		VolMA5: nan, VolMA20: nan, SwingLow10: nan,
	}
}

// Defined reports whether every value is a number.
func Defined(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
