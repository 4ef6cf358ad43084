package collector

import (
	"context"

	"MarketScreener/internal/model"
)

// Fetcher retrieves split/dividend-adjusted price history for one symbol.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) (*model.PriceSeries, error)
	FetchWeeklyBars(ctx context.Context, symbol string, weeks int) (*model.PriceSeries, error)
	Name() string
}

func isoWeekKey(bar model.OHLCV) int {
	year, week := bar.Time.ISOWeek()
	return year*100 + week
}

// aggregateDailyToWeekly folds daily bars into ISO-week bars. Each weekly bar
// is stamped with its first trading day.
func aggregateDailyToWeekly(daily []model.OHLCV) []model.OHLCV {
	var weekly []model.OHLCV
	for _, d := range daily {
		n := len(weekly)
		if n == 0 || isoWeekKey(weekly[n-1]) != isoWeekKey(d) {
			weekly = append(weekly, d)
			continue
		}
		w := &weekly[n-1]
		w.High = max(w.High, d.High)
		w.Low = min(w.Low, d.Low)
		w.Close = d.Close
		w.Volume += d.Volume
	}
	return weekly
}

func tail(bars []model.OHLCV, n int) []model.OHLCV {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
