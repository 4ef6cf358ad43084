package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScreener/internal/calculator"
	"MarketScreener/internal/model"
)

// quietRow passes the liquidity gate and triggers no rule.
func quietRow() model.IndicatorRow {
	return model.IndicatorRow{
		Close:      1000,
		Volume:     150_000,
		RSI:        50,
		MACD:       -1,
		MACDSignal: 0,
		MACDHist:   -1,
		SMA50:      1050,
		SMA200:     2000,
		EMA20:      1100,
		ATR:        20,
		BBMid:      1050,
		BBUpper:    1200,
		BBLower:    900,
		BBWidth:    0.2,
		BBWidthP5:  0.1,
		StochK:     50,
		StochD:     40,
		OBV:        0,
		OBVMA5:     10,
		VolMA5:     200_000,
		VolMA20:    200_000,
		SwingLow10: 950,
	}
}

func frameOf(prev, curr model.IndicatorRow) *model.IndicatorFrame {
	rows := []model.IndicatorRow{quietRow(), quietRow(), quietRow(), quietRow(), prev, curr}
	return &model.IndicatorFrame{Symbol: "TEST.JK", Rows: rows}
}

func evaluate(t *testing.T, prev, curr model.IndicatorRow, threshold int) Verdict {
	t.Helper()
	v, err := Evaluate(frameOf(prev, curr), threshold, DefaultParams())
	require.NoError(t, err)
	return v
}

func TestEvaluate_QuietInstrumentScoresZero(t *testing.T) {
	v := evaluate(t, quietRow(), quietRow(), 5)
	assert.Equal(t, 0, v.Score)
	assert.Empty(t, v.Reasons)
	assert.False(t, v.Qualified)
	assert.Equal(t, RejectScore, v.Rejection)
}

func TestEvaluate_OversoldCrossVolumeScenario(t *testing.T) {
	prev, curr := quietRow(), quietRow()
	curr.RSI = 25
	prev.MACDHist = -0.2
	curr.MACDHist = 0.3
	curr.Volume = 2 * curr.VolMA5

	v := evaluate(t, prev, curr, 8)
	assert.Equal(t, 8, v.Score)
	assert.Equal(t, []string{TagRSIOversold, TagMACDGoldenCross, TagVolumeSpike}, v.Reasons)
	assert.True(t, v.Qualified)
	for _, th := range []int{5, 6, 8} {
		assert.True(t, evaluate(t, prev, curr, th).Qualified, "threshold %d", th)
	}
}

func TestEvaluate_LiquidityGateIsHardVeto(t *testing.T) {
	prev, curr := quietRow(), quietRow()
	curr.RSI = 25
	prev.MACDHist = -0.2
	curr.MACDHist = 0.3
	curr.Volume = 2 * curr.VolMA5

	cheap := curr
	cheap.Close = 99
	v := evaluate(t, prev, cheap, 0)
	assert.False(t, v.Qualified)
	assert.Equal(t, RejectPrice, v.Rejection)
	assert.Zero(t, v.Score)

	thin := curr
	thin.VolMA20 = 99_999
	v = evaluate(t, prev, thin, 0)
	assert.False(t, v.Qualified)
	assert.Equal(t, RejectLiquidity, v.Rejection)

	undefinedVol := curr
	undefinedVol.VolMA20 = math.NaN()
	v = evaluate(t, prev, undefinedVol, 0)
	assert.Equal(t, RejectLiquidity, v.Rejection)
}

func TestEvaluate_UndefinedRSIRejects(t *testing.T) {
	curr := quietRow()
	curr.RSI = math.NaN()
	curr.Volume = 10 * curr.VolMA5
	v := evaluate(t, quietRow(), curr, 0)
	assert.False(t, v.Qualified)
	assert.Equal(t, RejectRSI, v.Rejection)
}

func TestEvaluate_RSIBands(t *testing.T) {
	tests := []struct {
		rsi  float64
		want []string
	}{
		{29.9, []string{TagRSIOversold}},
		{30, []string{TagRSICheap}},
		{39.9, []string{TagRSICheap}},
		{40, nil},
	}
	for _, tt := range tests {
		curr := quietRow()
		curr.RSI = tt.rsi
		v := evaluate(t, quietRow(), curr, 0)
		assert.Equal(t, tt.want, v.Reasons, "rsi %.1f", tt.rsi)
	}
}

func TestEvaluate_MACDCrossAndStrengtheningAreExclusive(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr float64
		want       string
	}{
		{"fresh cross", -0.2, 0.3, TagMACDGoldenCross},
		{"rising above zero", 0.1, 0.4, TagMACDStrengthening},
		{"rising from zero", 0, 0.5, TagMACDStrengthening},
		{"rising to zero", -0.3, 0, TagMACDStrengthening},
		{"rising below floor", -1, -0.6, ""},
		{"rising past floor", -0.6, -0.4, TagMACDStrengthening},
		{"falling", 0.4, 0.1, ""},
		{"undefined", math.NaN(), 0.3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, curr := quietRow(), quietRow()
			prev.MACDHist = tt.prev
			curr.MACDHist = tt.curr
			v := evaluate(t, prev, curr, 0)

			cross := contains(v.Reasons, TagMACDGoldenCross)
			strong := contains(v.Reasons, TagMACDStrengthening)
			assert.False(t, cross && strong)
			if tt.want == "" {
				assert.False(t, cross || strong)
				return
			}
			assert.Equal(t, []string{tt.want}, v.Reasons)
		})
	}
}

func TestEvaluate_UndefinedValueDisablesOnlyItsRule(t *testing.T) {
	curr := quietRow()
	curr.SMA200 = math.NaN()
	curr.EMA20 = 900
	curr.Volume = 2 * curr.VolMA5
	v := evaluate(t, quietRow(), curr, 0)
	assert.Equal(t, []string{TagVolumeSpike, TagAboveEMA20}, v.Reasons)
	assert.Equal(t, 3, v.Score)

	curr.SMA200 = 500
	v = evaluate(t, quietRow(), curr, 0)
	assert.Equal(t, []string{TagVolumeSpike, TagAboveSMA200, TagAboveEMA20}, v.Reasons)
}

func TestEvaluate_BollingerBounceBeatsSqueeze(t *testing.T) {
	prev, curr := quietRow(), quietRow()
	prev.Close = 905 // within 1% of the lower band
	prev.BBWidth = 0.05
	curr.Close = 1060 // above lower and mid
	v := evaluate(t, prev, curr, 0)
	assert.Contains(t, v.Reasons, TagBBBounce)
	assert.NotContains(t, v.Reasons, TagBBSqueeze)
}

func TestEvaluate_SqueezeBreakout(t *testing.T) {
	prev, curr := quietRow(), quietRow()
	prev.BBWidth = 0.08
	curr.Close = 1060
	v := evaluate(t, prev, curr, 0)
	assert.Contains(t, v.Reasons, TagBBSqueeze)

	prev.BBWidthP5 = math.NaN()
	v = evaluate(t, prev, curr, 0)
	assert.NotContains(t, v.Reasons, TagBBSqueeze)
}

func TestEvaluate_StochRSICrossUp(t *testing.T) {
	prev, curr := quietRow(), quietRow()
	prev.StochK, prev.StochD = 10, 15
	curr.StochK, curr.StochD = 22, 18
	v := evaluate(t, prev, curr, 0)
	assert.Equal(t, []string{TagStochCross}, v.Reasons)
	assert.Equal(t, 2, v.Score)

	curr.StochK = 35
	v = evaluate(t, prev, curr, 0)
	assert.Empty(t, v.Reasons)
}

func TestEvaluate_OBVRising(t *testing.T) {
	curr := quietRow()
	curr.OBV = 50
	curr.OBVMA5 = 20
	v := evaluate(t, quietRow(), curr, 0)
	assert.Equal(t, []string{TagOBVRising}, v.Reasons)
}

func TestEvaluate_ThresholdBoundary(t *testing.T) {
	curr := quietRow()
	curr.RSI = 35
	curr.Volume = 2 * curr.VolMA5
	curr.EMA20 = 900
	// 1 + 2 + 1 = 4
	assert.True(t, evaluate(t, quietRow(), curr, 4).Qualified)
	v := evaluate(t, quietRow(), curr, 5)
	assert.False(t, v.Qualified)
	assert.Equal(t, 4, v.Score)
}

func TestEvaluate_ShortFrame(t *testing.T) {
	_, err := Evaluate(&model.IndicatorFrame{Rows: []model.IndicatorRow{quietRow()}}, 5, DefaultParams())
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func TestEvaluate_FlatSeriesRejected(t *testing.T) {
	for _, vol := range []float64{0, 500_000} {
		series := &model.PriceSeries{Symbol: "FLAT.JK", Interval: model.IntervalDaily}
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 60; i++ {
			series.Bars = append(series.Bars, model.OHLCV{
				Time: start.AddDate(0, 0, i), Open: 1000, High: 1000, Low: 1000, Close: 1000, Volume: vol,
			})
		}
		frame, err := calculator.NewNativeEngine(calculator.DefaultParams()).Compute(series)
		require.NoError(t, err)

		v, err := Evaluate(frame, 5, DefaultParams())
		require.NoError(t, err)
		assert.False(t, v.Qualified, "volume %.0f", vol)
		assert.Zero(t, v.Score)
	}
}

func TestEvaluate_FlatSeriesRejectedOnEveryBackend(t *testing.T) {
	series := &model.PriceSeries{Symbol: "FLAT.JK", Interval: model.IntervalDaily}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		series.Bars = append(series.Bars, model.OHLCV{
			Time: start.AddDate(0, 0, i), Open: 500, High: 500, Low: 500, Close: 500, Volume: 1e6,
		})
	}
	for _, backend := range []string{calculator.BackendNative, calculator.BackendTalib} {
		engine, err := calculator.NewEngine(backend, calculator.DefaultParams())
		require.NoError(t, err)
		frame, err := engine.Compute(series)
		require.NoError(t, err)

		v, err := Evaluate(frame, 0, DefaultParams())
		require.NoError(t, err)
		assert.False(t, v.Qualified, backend)
		assert.Equal(t, RejectRSI, v.Rejection, backend)
		assert.Zero(t, v.Score, backend)
	}
}
