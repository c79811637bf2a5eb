package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Amsmoox/tradebot/internal/model"
	"github.com/Amsmoox/tradebot/internal/resilience"
)

// TelegramOptions configures the Telegram channel.
type TelegramOptions struct {
	BaseURL  string // default https://api.telegram.org
	BotToken string
	ChatID   string
	Timeout  time.Duration

	// Retry controls resends on transient Bot API failures (429, 5xx,
	// network errors). Zero value gets the package defaults.
	Retry resilience.RetryConfig
}

// Telegram sends one message per signal through the Bot API's sendMessage
// endpoint with HTML parse mode. Per-signal failures are logged and the rest
// of the batch still goes out.
type Telegram struct {
	opts   TelegramOptions
	client *resty.Client
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(opts TelegramOptions) *Telegram {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.telegram.org"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout)
	return &Telegram{opts: opts, client: client}
}

func (t *Telegram) Notify(ctx context.Context, signals []model.Signal) error {
	if t.opts.BotToken == "" || t.opts.ChatID == "" {
		return eris.New("notify: telegram bot not configured")
	}

	var failed int
	for _, sig := range signals {
		text := FormatSignal(sig)
		err := resilience.Do(ctx, t.retryFor(sig.Source), func(ctx context.Context) error {
			return t.sendMessage(ctx, text)
		})
		if err != nil {
			failed++
			zap.L().Error("notify: telegram send failed",
				zap.String("source", sig.Source),
				zap.String("instrument", sig.Instrument),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return eris.Errorf("notify: %d of %d telegram messages failed", failed, len(signals))
	}
	return nil
}

func (t *Telegram) retryFor(source string) resilience.RetryConfig {
	cfg := t.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(source, "telegram_send")
	}
	return cfg
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chat_id":    t.opts.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.opts.BotToken))
	if err != nil {
		return eris.Wrap(err, "notify: telegram request")
	}
	if resp.IsError() {
		statusErr := eris.Errorf("notify: telegram status %d: %s", resp.StatusCode(), resp.String())
		if resilience.IsTransientHTTPStatus(resp.StatusCode()) {
			return resilience.NewTransientError(statusErr, resp.StatusCode())
		}
		return statusErr
	}
	return nil
}

// FormatSignal renders a signal as a Telegram message. Sell signals get the
// red marker, active signals the lightning marker.
func FormatSignal(s model.Signal) string {
	actionEmoji := "\U0001F7E2" // green circle
	if strings.EqualFold(s.Action, "sell") {
		actionEmoji = "\U0001F534" // red circle
	}
	statusEmoji := "⏳" // hourglass
	if strings.EqualFold(s.Status, "active") {
		statusEmoji = "⚡" // lightning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s Signal for: %s\n", actionEmoji, statusEmoji, s.Instrument)
	fmt.Fprintf(&b, "Action: %s\n", s.Action)
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	if s.EntryPrice != "" {
		fmt.Fprintf(&b, "Entry Price: %s\n", s.EntryPrice)
	}
	if s.StopLoss != "" {
		fmt.Fprintf(&b, "Stop Loss: %s\n", s.StopLoss)
	}
	if s.TakeProfit != "" {
		fmt.Fprintf(&b, "Take Profit: %s\n", s.TakeProfit)
	}
	return b.String()
}
