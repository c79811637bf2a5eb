package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amsmoox/tradebot/internal/model"
	"github.com/Amsmoox/tradebot/internal/resilience"
)

func quickRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func sampleSignal() model.Signal {
	return model.Signal{
		ID:         "sig-1",
		Source:     "fxleaders",
		Instrument: "EUR/USD",
		Action:     "BUY",
		EntryPrice: "1.0850",
		StopLoss:   "1.0820",
		TakeProfit: "1.0910",
		Status:     "Active",
	}
}

func TestFormatSignalBuyActive(t *testing.T) {
	msg := FormatSignal(sampleSignal())
	assert.Contains(t, msg, "\U0001F7E2 ⚡ Signal for: EUR/USD")
	assert.Contains(t, msg, "Action: BUY")
	assert.Contains(t, msg, "Status: Active")
	assert.Contains(t, msg, "Entry Price: 1.0850")
	assert.Contains(t, msg, "Stop Loss: 1.0820")
	assert.Contains(t, msg, "Take Profit: 1.0910")
}

func TestFormatSignalSellPending(t *testing.T) {
	s := sampleSignal()
	s.Action = "SELL"
	s.Status = "Get Ready"
	s.StopLoss = ""
	s.TakeProfit = ""

	msg := FormatSignal(s)
	assert.Contains(t, msg, "\U0001F534 ⏳ Signal for: EUR/USD")
	assert.NotContains(t, msg, "Stop Loss")
	assert.NotContains(t, msg, "Take Profit")
}

func TestTelegramSendsPerSignal(t *testing.T) {
	var paths []string
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		texts = append(texts, r.URL.Query().Get("text"))
		assert.Equal(t, "HTML", r.URL.Query().Get("parse_mode"))
		assert.Equal(t, "-100", r.URL.Query().Get("chat_id"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{BaseURL: srv.URL, BotToken: "tok", ChatID: "-100"})

	s2 := sampleSignal()
	s2.Instrument = "GOLD"
	err := tg.Notify(context.Background(), []model.Signal{sampleSignal(), s2})
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, "/bottok/sendMessage", paths[0])
	assert.Contains(t, texts[0], "EUR/USD")
	assert.Contains(t, texts[1], "GOLD")
}

func TestTelegramPartialFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{BaseURL: srv.URL, BotToken: "tok", ChatID: "-100", Retry: quickRetry(3)})

	s2 := sampleSignal()
	s2.Instrument = "GOLD"
	err := tg.Notify(context.Background(), []model.Signal{sampleSignal(), s2})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestTelegramRetriesTransientStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{BaseURL: srv.URL, BotToken: "tok", ChatID: "-100", Retry: quickRetry(3)})

	err := tg.Notify(context.Background(), []model.Signal{sampleSignal()})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTelegramDoesNotRetryClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramOptions{BaseURL: srv.URL, BotToken: "tok", ChatID: "-100", Retry: quickRetry(3)})

	err := tg.Notify(context.Background(), []model.Signal{sampleSignal()})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTelegramUnconfigured(t *testing.T) {
	tg := NewTelegram(TelegramOptions{})
	err := tg.Notify(context.Background(), []model.Signal{sampleSignal()})
	require.Error(t, err)
}

func TestWebhookPostsBatch(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), []model.Signal{sampleSignal()})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Signals, 1)
	assert.Equal(t, "EUR/USD", got.Signals[0].Instrument)
}

func TestWebhookServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	wh.retry = quickRetry(2)
	err := wh.Notify(context.Background(), []model.Signal{sampleSignal()})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "5xx responses should be retried before giving up")
}

func TestWebhookRetryRecovers(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	wh.retry = quickRetry(3)
	err := wh.Notify(context.Background(), []model.Signal{sampleSignal()})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMultiContinuesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	failing := NewWebhook("http://127.0.0.1:0/unreachable")
	failing.retry = quickRetry(1)
	working := NewWebhook(srv.URL)

	err := Multi{failing, working}.Notify(context.Background(), []model.Signal{sampleSignal()})
	assert.NoError(t, err)
}
