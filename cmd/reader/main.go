package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketchart/config"
	"marketchart/internal/reader"
	"marketchart/internal/scheduler"
	"marketchart/logger"
	"marketchart/pkg/alphavantage"
	"marketchart/pkg/fmpcloud"
	"marketchart/pkg/httpcache"
	"marketchart/pkg/storage"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// zap logger
	log, err := logger.New("reader", cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("reader failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	secrets, err := config.NewSecretSource(ctx, cfg.Secrets)
	if err != nil {
		return err
	}

	var user, password string
	if cfg.Storage != "memory" {
		if user, password, err = cfg.Secrets.Credentials(ctx, secrets); err != nil {
			return fmt.Errorf("read credentials: %w", err)
		}
	}
	store, err := storage.Open(ctx, cfg, user, password, cfg.Reader.Tickers, log)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	// provider, through the response cache when configured
	var httpClient *http.Client
	if cfg.FMPCloud.CachePath != "" {
		transport, err := httpcache.Open(cfg.FMPCloud.CachePath, cfg.FMPCloud.CacheTTL, nil, log)
		if err != nil {
			return err
		}
		defer transport.Close()
		if purged, err := transport.Purge(); err != nil {
			log.Warn("failed to purge response cache", zap.Error(err))
		} else if purged > 0 {
			log.Info("response cache purged", zap.Int64("responses", purged))
		}
		httpClient = &http.Client{Transport: transport, Timeout: cfg.FMPCloud.Timeout}
	}
	provider, unsupported, err := newProvider(ctx, cfg, secrets, httpClient, log)
	if err != nil {
		return err
	}
	r := reader.New(provider, store, unsupported, log)
	job := func(ctx context.Context) error { return r.Run(ctx, cfg.Reader.Tickers) }

	sched := scheduler.New(log, cfg.Reader.Timeout)
	if cfg.Reader.Cron == "" {
		defer context.AfterFunc(ctx, sched.Stop)()
		return sched.RunNow("reader", job)
	}

	if err := sched.Register(cfg.Reader.Cron, "reader", job); err != nil {
		return err
	}
	sched.Start()
	<-ctx.Done()
	sched.Stop()
	return nil
}

// newProvider builds the configured market data client and the predicate
// recognising the series it cannot serve.
func newProvider(ctx context.Context, cfg *config.Config, secrets config.SecretSource, httpClient *http.Client, log *zap.Logger) (reader.Provider, reader.UnsupportedFunc, error) {
	switch cfg.Reader.Provider {
	case "alphavantage":
		apiKey, err := secrets.Get(ctx, cfg.AlphaVantage.APIKeySecret)
		if err != nil {
			return nil, nil, fmt.Errorf("read alphavantage api key: %w", err)
		}
		client := alphavantage.NewClient(cfg.AlphaVantage.BaseURL, apiKey, httpClient, cfg.AlphaVantage.Timeout, log)
		return client, func(err error) bool { return errors.Is(err, alphavantage.ErrUnsupportedSerie) }, nil

	default:
		apiKey, err := secrets.Get(ctx, cfg.FMPCloud.APIKeySecret)
		if err != nil {
			return nil, nil, fmt.Errorf("read fmpcloud api key: %w", err)
		}
		client := fmpcloud.NewClient(cfg.FMPCloud.BaseURL, apiKey, httpClient, cfg.FMPCloud.Timeout, log)
		return client, func(err error) bool { return errors.Is(err, fmpcloud.ErrUnsupportedSerie) }, nil
	}
}
