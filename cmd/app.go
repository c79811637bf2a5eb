package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Amsmoox/tradebot/internal/config"
	"github.com/Amsmoox/tradebot/internal/extract"
	"github.com/Amsmoox/tradebot/internal/fetcher"
	"github.com/Amsmoox/tradebot/internal/metrics"
	"github.com/Amsmoox/tradebot/internal/notify"
	"github.com/Amsmoox/tradebot/internal/resilience"
	"github.com/Amsmoox/tradebot/internal/scheduler"
	"github.com/Amsmoox/tradebot/internal/scraper"
	"github.com/Amsmoox/tradebot/internal/store"
)

// appEnv holds the initialized store, orchestrator and scheduler shared by
// the scrape/watch/serve/status commands.
type appEnv struct {
	Store     store.Store
	Service   *scraper.Service
	Scheduler *scheduler.Scheduler
}

// Close releases resources held by the environment.
func (a *appEnv) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initApp opens the store, runs migrations, registers every enabled source
// with its fetcher, and wires the orchestrator. Callers defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sources, err := config.LoadSources(cfg.Sources)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	enabled := config.EnabledSources(sources)
	if len(enabled) == 0 {
		_ = st.Close()
		return nil, eris.Errorf("no enabled sources in %s", cfg.Sources)
	}

	svc := scraper.NewService(
		scraper.Options{
			DefaultInterval: cfg.Interval.DefaultSecs,
			CycleTimeout:    2 * time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			Policy: scraper.IntervalPolicy{
				Min:               cfg.Interval.MinSecs,
				Max:               cfg.Interval.MaxSecs,
				DecreaseStep:      cfg.Interval.DecreaseStepSecs,
				IncreaseStep:      cfg.Interval.IncreaseStepSecs,
				NoChangeThreshold: cfg.Interval.NoChangeThreshold,
			},
		},
		st,
		extract.NewFXLeaders(),
		buildNotifier(),
		metrics.New(prometheus.DefaultRegisterer),
	)

	for _, src := range enabled {
		f, err := buildFetcher(src)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		svc.AddSource(src.Name, src.URL, f)
		zap.L().Info("source registered",
			zap.String("source", src.Name),
			zap.String("url", src.URL),
		)
	}

	sched := scheduler.New(svc, resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	))

	return &appEnv{Store: st, Service: svc, Scheduler: sched}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildFetcher constructs the fetch strategy for one source: a plain
// conditional fetcher, or the session variant when the source defines a
// login URL (or the global strategy forces it).
func buildFetcher(src config.Source) (fetcher.Fetcher, error) {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Fetch.RatePerSec,
		RateBurst:  cfg.Fetch.RateBurst,
	})

	if cfg.Fetch.Strategy == "session" || src.LoginURL != "" {
		return fetcher.NewSessionFetcher(fetcher.SessionOptions{
			LoginURL:  src.LoginURL,
			Username:  src.Username(),
			Password:  src.Password(),
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		}, httpFetcher)
	}
	return httpFetcher, nil
}

// buildNotifier assembles the configured notification channels. Returns nil
// when nothing is configured, which disables notification entirely.
func buildNotifier() notify.Notifier {
	var channels notify.Multi
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != "" {
		channels = append(channels, notify.NewTelegram(notify.TelegramOptions{
			BaseURL:  cfg.Notify.Telegram.BaseURL,
			BotToken: cfg.Notify.Telegram.Token,
			ChatID:   cfg.Notify.Telegram.ChatID,
		}))
	}
	if cfg.Notify.Webhook.URL != "" {
		channels = append(channels, notify.NewWebhook(cfg.Notify.Webhook.URL))
	}
	if len(channels) == 0 {
		zap.L().Info("no notification channels configured")
		return nil
	}
	return channels
}
