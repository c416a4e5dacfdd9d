package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketchart/config"
	"marketchart/internal/auth"
	"marketchart/internal/cache"
	"marketchart/internal/server"
	"marketchart/logger"
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
	log, err := logger.New("chartserver", cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("chart server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var user, password string
	if cfg.Storage != "memory" {
		secrets, err := config.NewSecretSource(ctx, cfg.Secrets)
		if err != nil {
			return err
		}
		if user, password, err = cfg.Secrets.Credentials(ctx, secrets); err != nil {
			return fmt.Errorf("read credentials: %w", err)
		}
	}

	store, err := storage.Open(ctx, cfg, user, password, cfg.Server.Tickers, log)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	var payloads cache.Payloads = cache.Noop{}
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		payloads = redisCache
		log.Info("chart cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}
	defer payloads.Close()

	var opts []server.Option
	if cfg.Server.CredentialsFile != "" {
		users := auth.NewAuthenticator(auth.NewJSONFileStore(cfg.Server.CredentialsFile), auth.DefaultParams, log)
		opts = append(opts, server.WithUsers(users))
		log.Info("basic authentication enabled", zap.String("credentials", cfg.Server.CredentialsFile))
	}

	return server.New(cfg.Server, store, payloads, log, opts...).Run(ctx)
}
