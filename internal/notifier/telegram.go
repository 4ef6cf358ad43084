package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"MarketScreener/internal/metrics"
	"MarketScreener/internal/model"
)

// sender is the part of *tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends HTML messages via the Telegram Bot API.
type TelegramNotifier struct {
	ChatID     int64
	MaxRetries uint64
	Metrics    *metrics.Metrics

	bot     sender
	api     *tgbotapi.BotAPI
	logger  zerolog.Logger
	backoff func() backoff.BackOff
}

// NewTelegramNotifier creates a notifier with optional proxy support. It
// calls getMe, so an invalid token fails here.
func NewTelegramNotifier(botToken, chatID, proxyURL string) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{
		Timeout:   60 * time.Second,
		Transport: transport,
	}
	api, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	t := newTelegram(api, id)
	t.api = api
	t.logger.Info().Str("bot", api.Self.UserName).Msg("telegram notifier ready")
	return t, nil
}

func newTelegram(bot sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		ChatID:     chatID,
		MaxRetries: 3,
		bot:        bot,
		logger:     log.With().Str("component", "telegram").Logger(),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send sends one HTML message to the configured chat.
func (t *TelegramNotifier) Send(text string) error {
	return t.sendTo(t.ChatID, text)
}

func (t *TelegramNotifier) sendTo(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry. Telegram
// rejections of the message itself (bad markup, unknown chat) are not
// retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string) error {
	attempt := 0
	op := func() error {
		attempt++
		err := t.Send(text)
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		t.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("telegram send failed")
	}
	b := backoff.WithContext(backoff.WithMaxRetries(t.backoff(), t.MaxRetries), ctx)
	err := backoff.RetryNotify(op, b, notify)
	t.Metrics.ObserveNotification(t.Name(), err)
	if err != nil {
		return fmt.Errorf("telegram delivery after %d attempts: %w", attempt, err)
	}
	return nil
}

// Deliver sends the report, split into as many messages as needed. Every
// part is attempted even if an earlier one failed.
func (t *TelegramNotifier) Deliver(ctx context.Context, r *model.RunReport) error {
	var errs []error
	for _, msg := range FormatReport(r) {
		if err := t.SendWithRetry(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TelegramNotifier) Alert(ctx context.Context, err error) error {
	return t.SendWithRetry(ctx, FormatAlert(err))
}
