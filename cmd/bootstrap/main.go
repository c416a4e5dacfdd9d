package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketchart/config"
	"marketchart/internal/bootstrap"
	"marketchart/logger"
	"marketchart/pkg/storage/mongodb"
	"marketchart/pkg/storage/postgres"

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
	log, err := logger.New("bootstrap", cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// application credentials
	secrets, err := config.NewSecretSource(ctx, cfg.Secrets)
	if err != nil {
		return err
	}
	user, password, err := cfg.Secrets.Credentials(ctx, secrets)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}

	plan := bootstrap.NewPlan(user, password,
		cfg.Bootstrap.Databases, cfg.Bootstrap.Role,
		cfg.Bootstrap.Collections, cfg.Bootstrap.Indexes)

	var engine bootstrap.Engine
	switch cfg.Bootstrap.Engine {
	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo, cfg.Mongo.AdminUser, cfg.Mongo.AdminPassword)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.WithoutCancel(ctx))
		engine = mongodb.NewEngine(client)
	case "postgres":
		pg := postgres.NewEngine(cfg.Postgres, log)
		defer pg.Close()
		engine = pg
	default:
		return fmt.Errorf("unknown bootstrap engine %q", cfg.Bootstrap.Engine)
	}

	log.Info("bootstrap starting",
		zap.String("engine", engine.Name()),
		zap.String("user", user),
		zap.Strings("databases", plan.Databases),
		zap.Int("collections", len(plan.Collections)),
	)

	_, err = bootstrap.NewRunner(engine, log).Run(ctx, plan)
	return err
}
