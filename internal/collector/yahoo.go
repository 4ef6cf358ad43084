package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"MarketScreener/internal/model"
)

// DefaultYahooURL is the public chart endpoint.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooOptions configures a YahooFetcher.
type YahooOptions struct {
	BaseURL        string
	ProxyURL       string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	MaxElapsed     time.Duration // retry budget per request
}

// YahooFetcher implements Fetcher using the Yahoo Finance v8 chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	Limiter   *rate.Limiter
	Breaker   *gobreaker.CircuitBreaker
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker

	maxElapsed time.Duration
}

// NewYahooFetcher creates a Yahoo fetcher with optional proxy support.
func NewYahooFetcher(opts YahooOptions) *YahooFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultYahooURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 10
	}
	if opts.Burst == 0 {
		opts.Burst = 5
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 20 * time.Second
	}

	transport := &http.Transport{}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	st := gobreaker.Settings{
		Name:     "yahoo-chart",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.ConsecutiveFailures >= 10 {
				return true
			}
			return c.Requests >= 40 && float64(c.TotalFailures)/float64(c.Requests) > 0.5
		},
		IsSuccessful: func(err error) bool {
			// An unknown or delisted symbol is not an upstream outage.
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	}

	return &YahooFetcher{
		BaseURL: opts.BaseURL,
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		Limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		Breaker:    gobreaker.NewCircuitBreaker(st),
		SymbolMap:  map[string]string{"IHSG": "^JKSE", "JCI": "^JKSE", "COMPOSITE": "^JKSE"},
		maxElapsed: opts.MaxElapsed,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

var errNoData = errors.New("yahoo: no data returned")

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo: status %d, body: %s", e.code, e.body)
}

// isClientError reports a 4xx response other than 429.
func isClientError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) (*model.PriceSeries, error) {
	rng := "2y"
	switch {
	case days <= 30:
		rng = "1mo"
	case days <= 90:
		rng = "3mo"
	case days <= 180:
		rng = "6mo"
	case days <= 365:
		rng = "1y"
	}
	bars, err := f.fetchChart(ctx, symbol, model.IntervalDaily, rng)
	if err != nil {
		return nil, fmt.Errorf("daily %s: %w: %w", symbol, model.ErrProviderFailure, err)
	}
	return f.series(symbol, model.IntervalDaily, tail(bars, days)), nil
}

// FetchWeeklyBars falls back to aggregating daily bars when the weekly chart
// cannot be fetched.
func (f *YahooFetcher) FetchWeeklyBars(ctx context.Context, symbol string, weeks int) (*model.PriceSeries, error) {
	rng := "2y"
	switch {
	case weeks <= 26:
		rng = "6mo"
	case weeks <= 52:
		rng = "1y"
	}
	bars, err := f.fetchChart(ctx, symbol, model.IntervalWeekly, rng)
	if err != nil {
		daily, dailyErr := f.fetchChart(ctx, symbol, model.IntervalDaily, rng)
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly %s: %w: %w; daily fallback: %w", symbol, model.ErrProviderFailure, err, dailyErr)
		}
		log.Debug().Str("symbol", symbol).Err(err).Msg("weekly chart failed, aggregating daily bars")
		bars = aggregateDailyToWeekly(daily)
	}
	return f.series(symbol, model.IntervalWeekly, tail(bars, weeks)), nil
}

func (f *YahooFetcher) series(symbol string, iv model.Interval, bars []model.OHLCV) *model.PriceSeries {
	return &model.PriceSeries{Symbol: symbol, Interval: iv, Bars: bars, FetchedAt: time.Now()}
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, iv model.Interval, rng string) ([]model.OHLCV, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&events=div%%2Csplit",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), iv, rng)

	var body []byte
	op := func() error {
		if err := f.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		out, err := f.Breaker.Execute(func() (interface{}, error) {
			return f.get(ctx, u)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || isClientError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = out.([]byte)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = f.maxElapsed
	notify := func(err error, wait time.Duration) {
		log.Debug().Str("symbol", symbol).Err(err).Dur("wait", wait).Msg("yahoo retry")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return parseChart(body)
}

func (f *YahooFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return body, nil
}

// parseChart decodes a chart payload. Null bars (holidays, halted sessions)
// are skipped. When an adjusted close is present, O/H/L/C are scaled by
// adjclose/close so the series is split and dividend adjusted.
func parseChart(body []byte) ([]model.OHLCV, error) {
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() {
		return nil, fmt.Errorf("yahoo api error: %s", desc.String())
	}
	result := gjson.GetBytes(body, "chart.result.0")
	ts := result.Get("timestamp").Array()
	if len(ts) == 0 {
		return nil, errNoData
	}

	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()
	adj := result.Get("indicators.adjclose.0.adjclose").Array()

	at := func(xs []gjson.Result, i int) (float64, bool) {
		if i >= len(xs) || xs[i].Type != gjson.Number {
			return 0, false
		}
		return xs[i].Float(), true
	}

	bars := make([]model.OHLCV, 0, len(ts))
	for i, t := range ts {
		o, ok1 := at(opens, i)
		h, ok2 := at(highs, i)
		l, ok3 := at(lows, i)
		c, ok4 := at(closes, i)
		if !(ok1 && ok2 && ok3 && ok4) || c == 0 {
			continue
		}
		v, _ := at(volumes, i)
		if a, ok := at(adj, i); ok && a > 0 {
			k := a / c
			o, h, l, c = o*k, h*k, l*k, a
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(t.Int(), 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	if len(bars) == 0 {
		return nil, errNoData
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return dedupeBars(bars), nil
}

// dedupeBars drops repeated timestamps from sorted bars. The later bar wins,
// it is the more recent quote for that period.
func dedupeBars(bars []model.OHLCV) []model.OHLCV {
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
