package collector

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"MarketScreener/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols present in Errors fail; symbols present in Daily or Weekly return
// those bars; anything else gets a generated series around Price.
type MockFetcher struct {
	Price  float64
	Daily  map[string][]model.OHLCV
	Weekly map[string][]model.OHLCV
	Errors map[string]error

	dailyCalls  atomic.Int64
	weeklyCalls atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, days int) (*model.PriceSeries, error) {
	m.dailyCalls.Add(1)
	return m.fetch(symbol, model.IntervalDaily, m.Daily, days)
}

func (m *MockFetcher) FetchWeeklyBars(_ context.Context, symbol string, weeks int) (*model.PriceSeries, error) {
	m.weeklyCalls.Add(1)
	return m.fetch(symbol, model.IntervalWeekly, m.Weekly, weeks)
}

// Calls returns how many daily and weekly fetches were made.
func (m *MockFetcher) Calls() (daily, weekly int64) {
	return m.dailyCalls.Load(), m.weeklyCalls.Load()
}

func (m *MockFetcher) fetch(symbol string, iv model.Interval, data map[string][]model.OHLCV, n int) (*model.PriceSeries, error) {
	if err, ok := m.Errors[symbol]; ok {
		return nil, fmt.Errorf("mock %s: %w: %w", symbol, model.ErrProviderFailure, err)
	}
	bars, ok := data[symbol]
	if !ok {
		if m.Price <= 0 {
			return nil, fmt.Errorf("mock %s: %w: no data", symbol, model.ErrProviderFailure)
		}
		step := 24 * time.Hour
		if iv == model.IntervalWeekly {
			step *= 7
		}
		bars = generateMockBars(m.Price, n, step)
	}
	out := make([]model.OHLCV, len(bars))
	copy(out, bars)
	return &model.PriceSeries{Symbol: symbol, Interval: iv, Bars: out, FetchedAt: time.Now()}, nil
}

func generateMockBars(basePrice float64, count int, step time.Duration) []model.OHLCV {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
