// Package collector fetches price history and the instrument universe.
package collector

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"MarketScreener/internal/model"
)

// BatchResult is one symbol's fetch outcome within a batch.
type BatchResult struct {
	Symbol string
	Series *model.PriceSeries
	Err    error
}

// FetchBatch fetches daily history for every symbol with at most limit
// requests in flight. Failures are reported per symbol and never abort the
// batch. Results keep the order of symbols.
func FetchBatch(ctx context.Context, f Fetcher, symbols []string, days, limit int) []BatchResult {
	results := make([]BatchResult, len(symbols))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			res := BatchResult{Symbol: sym}
			if err := ctx.Err(); err != nil {
				res.Err = fmt.Errorf("%s: %w", sym, err)
			} else {
				res.Series, res.Err = f.FetchDailyBars(ctx, sym, days)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
