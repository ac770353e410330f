package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/stylebot/internal/channel"
	"github.com/memohai/stylebot/internal/channel/adapters/twilio"
	"github.com/memohai/stylebot/internal/channel/inbound"
	"github.com/memohai/stylebot/internal/config"
	"github.com/memohai/stylebot/internal/handlers"
	"github.com/memohai/stylebot/internal/logger"
	"github.com/memohai/stylebot/internal/media"
	"github.com/memohai/stylebot/internal/metrics"
	"github.com/memohai/stylebot/internal/pipeline"
	"github.com/memohai/stylebot/internal/server"
	"github.com/memohai/stylebot/internal/storage/providers/localfs"
	s3provider "github.com/memohai/stylebot/internal/storage/providers/s3"
	"github.com/memohai/stylebot/internal/stylize/fal"
	"github.com/memohai/stylebot/internal/version"
)

func runServe(configPath string) error {
	app := fx.New(
		fx.Supply(configFile(configPath)),
		fx.Provide(
			provideConfig,
			provideLogger,
			metrics.New,
			provideStorage,
			provideMediaService,
			provideFetcher,
			provideStylizer,
			providePipeline,
			provideMessenger,
			provideDeduper,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewMetricsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	app.Run()
	return app.Err()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type configFile string

func provideConfig(path configFile) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// storageResult exposes the local provider as a route handler when it is
// the configured backend.
type storageResult struct {
	fx.Out
	Provider media.StorageProvider
	Handlers []server.Handler `group:"server_handlers,flatten"`
}

func provideStorage(cfg config.Config) (storageResult, error) {
	provider, err := newStorageProvider(context.Background(), cfg)
	if err != nil {
		return storageResult{}, err
	}
	out := storageResult{Provider: provider}
	if local, ok := provider.(*localfs.Provider); ok {
		out.Handlers = append(out.Handlers, local)
	}
	return out, nil
}

func newStorageProvider(ctx context.Context, cfg config.Config) (media.StorageProvider, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendLocal:
		return localfs.New(cfg.Local.Root, cfg.Local.PublicBaseURL)
	default:
		return s3provider.New(ctx, s3provider.Config{
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
		})
	}
}

func provideMediaService(log *slog.Logger, provider media.StorageProvider) *media.Service {
	return media.NewService(log, provider)
}

func provideFetcher(m *metrics.Metrics) *media.Fetcher {
	return media.NewFetcher(media.WithRetryHook(m.FetchRetried))
}

func provideStylizer(log *slog.Logger, cfg config.Config) fal.Stylizer {
	return fal.NewClient(log, fal.Config{
		APIKey:       cfg.Fal.APIKey,
		BaseURL:      cfg.Fal.BaseURL,
		Model:        cfg.Fal.Model,
		Prompt:       cfg.Fal.Prompt,
		PollInterval: config.MustDuration(cfg.Fal.PollInterval),
		MaxWait:      config.MustDuration(cfg.Fal.MaxWait),
	}, nil)
}

func providePipeline(log *slog.Logger, cfg config.Config, fetcher *media.Fetcher, stylizer fal.Stylizer, mediaService *media.Service, m *metrics.Metrics) *pipeline.Pipeline {
	return pipeline.New(log, pipelineConfig(cfg), fetcher, stylizer, mediaService, m)
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	return pipeline.Config{
		ProviderMediaHost: cfg.Twilio.MediaHost,
		AccountSID:        cfg.Twilio.AccountSID,
		AuthToken:         cfg.Twilio.AuthToken,
		MaxBytes:          cfg.Media.MaxBytes,
	}
}

func provideMessenger(log *slog.Logger, cfg config.Config) channel.Messenger {
	if !cfg.Twilio.HasCredentials() {
		log.Warn("twilio credentials missing: replies are disabled")
		return nil
	}
	return twilio.NewSender(log, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
}

func provideDeduper(cfg config.Config) (*inbound.Deduper, error) {
	return inbound.NewDeduper(cfg.Webhook.DedupSize, config.MustDuration(cfg.Webhook.DedupTTL))
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, messenger channel.Messenger, p *pipeline.Pipeline, deduper *inbound.Deduper, m *metrics.Metrics) *twilio.WebhookHandler {
	if cfg.Twilio.AuthToken == "" {
		log.Warn("twilio auth token missing: webhook signatures are not verified")
	}
	return twilio.NewWebhookHandler(
		log,
		twilio.WebhookConfig{AllowedHostSuffixes: cfg.Webhook.AllowedHostSuffixes},
		twilio.NewSignatureVerifier(cfg.Twilio.AuthToken, cfg.Server.PublicBaseURL),
		messenger,
		p,
		deduper,
		m,
	)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, server.Options{
		Addr:           params.Config.Server.Addr,
		RequestTimeout: config.MustDuration(params.Config.Server.RequestTimeout),
	}, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("starting stylebot", slog.String("version", version.GetInfo()), slog.String("addr", srv.Addr()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
