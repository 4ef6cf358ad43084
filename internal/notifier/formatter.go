package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"MarketScreener/internal/model"
)

// MaxMessageLen keeps every message under Telegram's 4096 character cap.
const MaxMessageLen = 4000

// HotScore marks candidates highlighted with a fire icon.
const HotScore = 8

var regimeIcons = map[model.Regime]string{
	model.RegimeBullish: "🟢",
	model.RegimeNeutral: "🟡",
	model.RegimeBearish: "🔴",
}

// FormatReport renders a run report as one or more HTML messages.
func FormatReport(r *model.RunReport) []string {
	var b strings.Builder
	b.WriteString(formatHeader(r))
	b.WriteString("\n\n")
	b.WriteString(FormatRegime(r.Regime))

	if len(r.Candidates) == 0 {
		b.WriteString("\n\n😴 No instrument met the criteria today.")
		return SplitMessage(b.String(), MaxMessageLen)
	}
	for i, c := range r.Candidates {
		b.WriteString("\n\n")
		b.WriteString(formatCandidate(i+1, c))
	}
	return SplitMessage(b.String(), MaxMessageLen)
}

func formatHeader(r *model.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚀 <b>Stock Screener</b> | %s\n", r.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "<i>Scanned %s instruments in %s</i>\n",
		humanize.Comma(int64(r.Scanned)), r.Elapsed.Round(time.Second))
	fmt.Fprintf(&b, "Qualified: %d | Rejected: %s | Failed: %d", r.Qualified, humanize.Comma(int64(r.Rejected)), r.Failed)
	if r.Qualified > len(r.Candidates) && len(r.Candidates) > 0 {
		fmt.Fprintf(&b, "\nShowing top %d", len(r.Candidates))
	}
	return b.String()
}

// FormatRegime renders the benchmark snapshot.
func FormatRegime(s model.RegimeSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Market: %s</b> (min score %d)", regimeIcons[s.Regime], s.Regime, s.Threshold)
	if model.Defined(s.Close) {
		fmt.Fprintf(&b, "\n%s %s", html.EscapeString(s.Symbol), humanize.CommafWithDigits(s.Close, 2))
		if model.Defined(s.Change5Pct) {
			fmt.Fprintf(&b, " (%+.2f%% 5d)", s.Change5Pct)
		}
	}
	if model.Defined(s.SMA50, s.SMA200) {
		fmt.Fprintf(&b, "\nMA50 %s | MA200 %s",
			humanize.CommafWithDigits(s.SMA50, 2), humanize.CommafWithDigits(s.SMA200, 2))
	}
	if model.Defined(s.RSI) {
		fmt.Fprintf(&b, " | RSI %.1f", s.RSI)
	}
	if s.Note != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(s.Note))
	}
	return b.String()
}

func formatCandidate(rank int, c *model.Candidate) string {
	icon := "✅"
	if c.Score >= HotScore {
		icon = "🔥"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s <b>%s</b> (Score: %d)", rank, icon, html.EscapeString(c.Symbol), c.Score)
	if c.Name != "" {
		fmt.Fprintf(&b, " %s", html.EscapeString(c.Name))
	}
	fmt.Fprintf(&b, "\n   Price: %s | RSI: %.1f | Vol: %s",
		formatPrice(c.Close), c.RSI, strings.TrimSpace(humanize.SIWithDigits(c.Volume, 1, "")))
	lv := c.Levels
	fmt.Fprintf(&b, "\n   SL: %s | TP1: %s | TP2: %s",
		formatPrice(RoundToTick(lv.StopLoss)), formatPrice(RoundToTick(lv.TP1)), formatPrice(RoundToTick(lv.TP2)))
	if model.Defined(lv.RR1, lv.RR2) {
		fmt.Fprintf(&b, " (R:R 1:%.2f / 1:%.2f)", lv.RR1, lv.RR2)
	}
	if len(c.Reasons) > 0 {
		fmt.Fprintf(&b, "\n   <i>%s</i>", html.EscapeString(strings.Join(c.Reasons, ", ")))
	}
	return b.String()
}

// FormatAlert renders a fatal run failure.
func FormatAlert(err error) string {
	return fmt.Sprintf("❌ <b>Screening failed</b>\n\n<code>%s</code>", html.EscapeString(err.Error()))
}

// tickSize returns the exchange price fraction for a price level.
func tickSize(price decimal.Decimal) decimal.Decimal {
	switch {
	case price.LessThan(decimal.NewFromInt(200)):
		return decimal.NewFromInt(1)
	case price.LessThan(decimal.NewFromInt(500)):
		return decimal.NewFromInt(2)
	case price.LessThan(decimal.NewFromInt(2000)):
		return decimal.NewFromInt(5)
	case price.LessThan(decimal.NewFromInt(5000)):
		return decimal.NewFromInt(10)
	default:
		return decimal.NewFromInt(25)
	}
}

// RoundToTick rounds a price to the nearest valid exchange tick.
func RoundToTick(price float64) float64 {
	if !model.Defined(price) || math.IsInf(price, 0) || price <= 0 {
		return price
	}
	d := decimal.NewFromFloat(price)
	tick := tickSize(d)
	f, _ := d.Div(tick).Round(0).Mul(tick).Float64()
	return f
}

func formatPrice(p float64) string {
	if !model.Defined(p) || math.IsInf(p, 0) {
		return "-"
	}
	if p == math.Trunc(p) {
		return humanize.Comma(int64(p))
	}
	return humanize.CommafWithDigits(p, 2)
}

// SplitMessage breaks text into messages of at most limit characters.
// Breaks prefer blank lines, then single lines; only a single over-long line
// is cut mid-line.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			out = append(out, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}
	add := func(piece, sep string) {
		n := utf8.RuneCountInString(piece)
		sepLen := 0
		if curLen > 0 {
			sepLen = utf8.RuneCountInString(sep)
		}
		if curLen+sepLen+n > limit {
			flush()
			sepLen = 0
		}
		if sepLen > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
		curLen += sepLen + n
	}

	for _, para := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(para) <= limit {
			add(para, "\n\n")
			continue
		}
		for i, line := range strings.Split(para, "\n") {
			sep := "\n"
			if i == 0 {
				sep = "\n\n"
			}
			for _, part := range cutRunes(line, limit) {
				add(part, sep)
				sep = "\n"
			}
		}
	}
	flush()
	return out
}

// cutRunes cuts one over-long line into parts of at most limit runes. Tags
// and entities are never split; tags open at a cut are closed at the end of
// the part and reopened at the start of the next.
func cutRunes(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var (
		parts   []string
		open    []string
		cur     strings.Builder
		curLen  int
		content bool
	)
	closers := func() string {
		var b strings.Builder
		for i := len(open) - 1; i >= 0; i-- {
			b.WriteString("</" + tagName(open[i]) + ">")
		}
		return b.String()
	}
	for _, tok := range htmlTokens(s) {
		n := utf8.RuneCountInString(tok)
		closing := strings.HasPrefix(tok, "</")
		opening := !closing && len(tok) > 1 && tok[0] == '<'
		need := utf8.RuneCountInString(closers())
		if opening {
			need += len(tagName(tok)) + 3
		}
		if content && !closing && curLen+n+need > limit {
			cur.WriteString(closers())
			parts = append(parts, cur.String())
			cur.Reset()
			reopen := strings.Join(open, "")
			cur.WriteString(reopen)
			curLen = utf8.RuneCountInString(reopen)
			content = false
		}
		cur.WriteString(tok)
		curLen += n
		switch {
		case closing:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case opening:
			open = append(open, tok)
		default:
			content = true
		}
	}
	if content || len(parts) == 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// htmlTokens splits s into tags, entities and single runes.
func htmlTokens(s string) []string {
	var toks []string
	for len(s) > 0 {
		end := 0
		switch s[0] {
		case '<':
			if j := strings.IndexByte(s, '>'); j > 0 {
				end = j + 1
			}
		case '&':
			if j := strings.IndexByte(s, ';'); j > 0 && j <= 10 {
				end = j + 1
			}
		}
		if end == 0 {
			_, end = utf8.DecodeRuneInString(s)
		}
		toks = append(toks, s[:end])
		s = s[end:]
	}
	return toks
}

func tagName(open string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(open, "<"), ">")
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	return name
}
