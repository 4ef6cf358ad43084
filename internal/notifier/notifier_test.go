package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScreener/internal/model"
)

type fakeSender struct {
	sent  []tgbotapi.MessageConfig
	fails int
	err   error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.fails > 0 {
		f.fails--
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func testNotifier(s *fakeSender) *TelegramNotifier {
	t := newTelegram(s, 42)
	t.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return t
}

func sampleReport(n int) *model.RunReport {
	r := &model.RunReport{
		RunID:     "run",
		StartedAt: time.Date(2024, 5, 6, 16, 30, 0, 0, time.UTC),
		Elapsed:   95 * time.Second,
		Scanned:   912,
		Failed:    3,
		Rejected:  900,
		Qualified: n,
		Regime: model.RegimeSnapshot{
			Regime: model.RegimeBullish, Symbol: "^JKSE", Threshold: 5,
			Close: 7250.5, SMA50: 7100, SMA200: 6900, RSI: 61.2, Change5Pct: 1.25,
		},
	}
	for i := 0; i < n; i++ {
		r.Candidates = append(r.Candidates, &model.Candidate{
			Symbol: fmt.Sprintf("S%03d.JK", i), Name: "PT Contoh & Co",
			Close: 1234, RSI: 27.4, Volume: 12_345_678, Score: 9 - i%4,
			Reasons: []string{"RSI Oversold (<30)", "Volume Spike (>1.5x Avg)"},
			Levels:  model.TradeLevels{StopLoss: 1187.3, TP1: 1310.1, TP2: 1357.2, RR1: 1.618, RR2: 2.618, Risk: 46.7},
		})
	}
	return r
}

func TestFormatReport_Candidates(t *testing.T) {
	msgs := FormatReport(sampleReport(2))
	require.Len(t, msgs, 1)
	m := msgs[0]

	assert.Contains(t, m, "Scanned 912 instruments in 1m35s")
	assert.Contains(t, m, "🟢 <b>Market: BULLISH</b> (min score 5)")
	assert.Contains(t, m, "^JKSE 7,250.5 (+1.25% 5d)")
	assert.Contains(t, m, "1. 🔥 <b>S000.JK</b> (Score: 9) PT Contoh &amp; Co")
	assert.Contains(t, m, "2. 🔥 <b>S001.JK</b> (Score: 8)")
	assert.Contains(t, m, "Price: 1,234 | RSI: 27.4 | Vol: 12.3 M")
	assert.Contains(t, m, "SL: 1,185 | TP1: 1,310 | TP2: 1,355 (R:R 1:1.62 / 1:2.62)")
	assert.Contains(t, m, "RSI Oversold (&lt;30), Volume Spike (&gt;1.5x Avg)")
}

func TestFormatReport_NoCandidates(t *testing.T) {
	r := sampleReport(0)
	r.Regime = model.RegimeSnapshot{
		Regime: model.RegimeNeutral, Threshold: 6, Note: "benchmark unavailable",
		Close: math.NaN(), SMA50: math.NaN(), SMA200: math.NaN(), RSI: math.NaN(), Change5Pct: math.NaN(),
	}
	msgs := FormatReport(r)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "No instrument met the criteria today.")
	assert.Contains(t, msgs[0], "<i>benchmark unavailable</i>")
	assert.NotContains(t, msgs[0], "NaN")
}

func TestFormatReport_SplitsLongReports(t *testing.T) {
	msgs := FormatReport(sampleReport(60))
	require.Greater(t, len(msgs), 1)
	total := 0
	for _, m := range msgs {
		assert.LessOrEqual(t, utf8.RuneCountInString(m), MaxMessageLen)
		total += strings.Count(m, ".JK</b>")
	}
	assert.Equal(t, 60, total, "no candidate lost or cut")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	got := SplitMessage("aaaa\n\nbbbb\n\ncccc", 10)
	assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, got)

	got = SplitMessage("l1\nl2\nl3\nl4", 5)
	assert.Equal(t, []string{"l1\nl2", "l3\nl4"}, got)

	got = SplitMessage(strings.Repeat("x", 12), 5)
	assert.Equal(t, []string{"xxxxx", "xxxxx", "xx"}, got)
}

func TestSplitMessage_LongLineKeepsTagsBalanced(t *testing.T) {
	line := "<b>HEAD</b> <i>" + strings.Repeat("a&amp;", 20) + "</i>"
	got := SplitMessage(line, 16)
	require.Greater(t, len(got), 1)

	var plain strings.Builder
	for _, part := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(part), 16, part)
		assert.Equal(t, strings.Count(part, "<i>"), strings.Count(part, "</i>"), part)
		assert.Equal(t, strings.Count(part, "<b>"), strings.Count(part, "</b>"), part)
		assert.NotContains(t, part, "&amp\n")
		assert.False(t, strings.HasSuffix(part, "&amp"), part)
		plain.WriteString(PlainText(part))
	}
	assert.Equal(t, "HEAD "+strings.Repeat("a&", 20), plain.String())
}

func TestCutRunes_ClosesAndReopensTag(t *testing.T) {
	got := cutRunes("<i>"+strings.Repeat("a", 12)+"</i>", 10)
	assert.Equal(t, []string{"<i>aaa</i>", "<i>aaa</i>", "<i>aaa</i>", "<i>aaa</i>"}, got)
}

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{150.4, 150},
		{201, 202},
		{499, 500},
		{1187.3, 1185},
		{1357.6, 1360},
		{4996, 5000},
		{7312, 7300},
		{7313, 7325},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundToTick(tt.in), "%.1f", tt.in)
	}
	assert.True(t, math.IsNaN(RoundToTick(math.NaN())))
}

func TestSendWithRetry(t *testing.T) {
	s := &fakeSender{fails: 2, err: errors.New("connection reset")}
	n := testNotifier(s)
	require.NoError(t, n.SendWithRetry(context.Background(), "<b>hi</b>"))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(42), s.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, s.sent[0].ParseMode)

	s = &fakeSender{fails: 10, err: errors.New("connection reset")}
	err := testNotifier(s).SendWithRetry(context.Background(), "x")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestSendWithRetry_APIRejectionIsPermanent(t *testing.T) {
	s := &fakeSender{fails: 10, err: &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}}
	err := testNotifier(s).SendWithRetry(context.Background(), "<b>")
	assert.Error(t, err)
	assert.Equal(t, 9, s.fails, "only one attempt")
}

func TestDeliverAndAlert(t *testing.T) {
	s := &fakeSender{}
	n := testNotifier(s)
	require.NoError(t, n.Deliver(context.Background(), sampleReport(60)))
	assert.Greater(t, len(s.sent), 1)

	s.sent = nil
	require.NoError(t, n.Alert(context.Background(), errors.New("universe: <missing>")))
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].Text, "&lt;missing&gt;")
}

func TestHandleUpdate(t *testing.T) {
	s := &fakeSender{}
	n := testNotifier(s)
	var got []string
	handler := func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "ok " + cmd
	}
	command := func(chatID int64, text string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: chatID},
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: strings.IndexByte(text+" ", ' ')}},
		}}
	}

	n.handleUpdate(context.Background(), command(42, "/regime@screener_bot"), handler)
	n.handleUpdate(context.Background(), command(7, "/scan"), handler)
	n.handleUpdate(context.Background(), tgbotapi.Update{}, handler)

	assert.Equal(t, []string{"/regime"}, got)
	require.Len(t, s.sent, 1)
	assert.Equal(t, "ok /regime", s.sent[0].Text)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSink(&buf)
	require.NoError(t, c.Deliver(context.Background(), sampleReport(1)))
	out := buf.String()
	assert.Contains(t, out, "Market: BULLISH")
	assert.Contains(t, out, "PT Contoh & Co")
	assert.NotContains(t, out, "<b>")

	buf.Reset()
	require.NoError(t, c.Alert(context.Background(), errors.New("boom")))
	assert.Contains(t, buf.String(), "Screening failed")
}
