package screener

import (
	"context"

	"golang.org/x/sync/errgroup"

	"MarketScreener/internal/calculator"
	"MarketScreener/internal/model"
)

// confirmWeekly fetches weekly history for every candidate and applies the
// bonus when the weekly close is above its weekly SMA. It runs only on
// candidates that already met the daily threshold and never re-checks it.
func (s *Screener) confirmWeekly(ctx context.Context, candidates []*model.Candidate) {
	p := s.Params
	if p.WeeklyBonus == 0 || len(candidates) == 0 {
		return
	}
	var g errgroup.Group
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warn().Str("symbol", c.Symbol).Interface("panic", r).Msg("weekly confirmation panicked")
				}
			}()
			if s.weeklyUptrend(ctx, c.Symbol) {
				c.ApplyWeeklyBonus(p.WeeklyBonus, WeeklyTag)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// weeklyUptrend reports whether the last weekly close is above the weekly
// SMA. Missing or short weekly history counts as unconfirmed.
func (s *Screener) weeklyUptrend(ctx context.Context, symbol string) bool {
	p := s.Params
	series, err := s.Fetcher.FetchWeeklyBars(ctx, symbol, p.WeeklyLookback)
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("weekly history unavailable")
		return false
	}
	if series.Len() < p.WeeklyMinBars {
		return false
	}
	sma, err := calculator.CalculateSMA(series.Closes(), p.WeeklySMA)
	if err != nil {
		return false
	}
	return series.Bars[series.Len()-1].Close > sma
}
