package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/flowdeck/internal/api"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/config"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/dispatch"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/llm"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/notify"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/observability"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/ratelimit"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/store"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/voice"
)

// backend is a store holding both flows and documents.
type backend interface {
	store.Store
	store.Documents
}

type app struct {
	deps      api.Deps
	backend   backend
	redis     *redis.Client
	providers *observability.Providers
}

func wire(ctx context.Context, s config.Settings, logger *slog.Logger) (*app, error) {
	telemetry := observability.ProviderConfig{
		Metrics: s.Observability.Metrics,
		Tracing: s.Observability.Tracing,
	}
	if s.Observability.Exporter == "stdout" {
		var err error
		telemetry, err = observability.StdoutExport(telemetry, os.Stderr, s.Observability.ExportInterval)
		if err != nil {
			return nil, err
		}
	}
	a := &app{providers: observability.SetupProviders(telemetry)}

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if s.Observability.Metrics {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if s.Observability.Tracing {
		spans = observability.NewSpanManager()
	}

	b, err := openStore(ctx, s.Store, logger)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	a.backend = b

	limiter, err := a.openLimiter(ctx, s)
	if err != nil {
		a.close(logger)
		return nil, err
	}
	checker := ratelimit.NewChecker(limiter,
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(metrics),
	)

	bus := notify.NewBus(notify.BusConfig{
		OnDrop: func(n notify.Notification, subscriberID int64) {
			logger.Debug("notification dropped",
				slog.Int64("subscriber", subscriberID),
				slog.String("user_id", n.UserID),
			)
		},
	})

	opts := []dispatch.Option{
		dispatch.WithDocuments(b),
		dispatch.WithRateLimit(checker),
		dispatch.WithNotifier(notify.Multi(bus, notify.LogNotifier{Logger: logger})),
		dispatch.WithSessions(voice.NewRegistry()),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
		dispatch.WithTracing(spans),
		dispatch.WithStructureCheck(s.Dispatch.RequireStructure),
	}

	if s.Flowise.BaseURL != "" {
		flowise := llm.NewFlowiseClient(s.Flowise.BaseURL,
			llm.FlowiseFlows{
				Prompt:   s.Flowise.PromptFlowID,
				Document: s.Flowise.DocumentFlowID,
				CSV:      s.Flowise.CSVFlowID,
				URL:      s.Flowise.URLFlowID,
			},
			llm.WithFlowiseAPIKey(s.Flowise.APIKey),
			llm.WithFlowiseTimeout(s.Flowise.Timeout),
		)
		opts = append(opts, dispatch.WithPrompt(flowise), dispatch.WithKnowledge(flowise))
	} else {
		logger.Warn("flowise base url not set; prompt and knowledge nodes will fail")
	}

	var chat llm.Client
	if s.OpenAI.APIKey != "" {
		openaiOpts := []llm.OpenAIOption{llm.WithModel(s.OpenAI.Model)}
		if s.OpenAI.BaseURL != "" {
			openaiOpts = append(openaiOpts, llm.WithBaseURL(s.OpenAI.BaseURL))
		}
		chat = llm.NewOpenAIClient(s.OpenAI.APIKey, openaiOpts...)
		opts = append(opts, dispatch.WithChat(chat))
	}

	if s.Voice.BaseURL != "" {
		opts = append(opts, dispatch.WithCaller(voice.NewHTTPCaller(s.Voice.BaseURL, s.Voice.APIKey)))
	} else {
		logger.Warn("voice base url not set; telephone nodes will fail")
	}

	a.deps = api.Deps{
		Store:      b,
		Documents:  b,
		Dispatcher: dispatch.New(opts...),
		Limits:     checker,
		Chat:       chat,
		Bus:        bus,
		Logger:     logger,
		Metrics:    metrics,
	}
	return a, nil
}

func openStore(ctx context.Context, s config.StoreSettings, logger *slog.Logger) (backend, error) {
	opts := []store.Option{store.WithLogger(logger)}
	switch s.Driver {
	case "memory":
		return store.NewMemoryStore(opts...), nil
	case "postgres":
		st, err := store.NewPostgresStore(ctx, s.PostgresURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	default:
		st, err := store.NewSQLiteStore(s.SQLitePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	}
}

func (a *app) openLimiter(ctx context.Context, s config.Settings) (ratelimit.Limiter, error) {
	quotas := ratelimit.QuotasFromSettings(s.RateLimit)
	if s.Redis.URL == "" {
		return ratelimit.NewMemoryLimiter(quotas), nil
	}
	client, err := ratelimit.NewRedisClient(ctx, s.Redis)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return ratelimit.NewRedisLimiter(client, quotas), nil
}

func (a *app) close(logger *slog.Logger) {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			logger.Warn("close store", slog.Any("error", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("close redis", slog.Any("error", err))
		}
	}
	if a.providers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.providers.Shutdown(ctx); err != nil {
			logger.Warn("shutdown telemetry", slog.Any("error", err))
		}
	}
}
