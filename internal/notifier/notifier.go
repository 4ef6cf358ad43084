// Package notifier formats screening reports and delivers them to a chat
// or the terminal.
package notifier

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"

	"MarketScreener/internal/model"
)

// Sink delivers the single report of a run, or the alert that replaces it.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r *model.RunReport) error
	Alert(ctx context.Context, err error) error
}

// ConsoleSink writes plain-text reports, used for dry runs.
type ConsoleSink struct {
	W io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink { return &ConsoleSink{W: w} }

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Deliver(_ context.Context, r *model.RunReport) error {
	for _, msg := range FormatReport(r) {
		if _, err := fmt.Fprintln(c.W, PlainText(msg)); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsoleSink) Alert(_ context.Context, err error) error {
	_, werr := fmt.Fprintln(c.W, PlainText(FormatAlert(err)))
	return werr
}

var tagRe = regexp.MustCompile(`</?[a-z]+>`)

// PlainText strips the HTML markup used in chat messages.
func PlainText(s string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}
