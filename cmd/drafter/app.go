package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"post_drafter/internal/config"
	"post_drafter/internal/publisher"
	"post_drafter/internal/runner/openai"
	"post_drafter/internal/service"
	"post_drafter/internal/source/gtasks"
	"post_drafter/internal/storage/file"
	"post_drafter/internal/storage/postgres"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	docs      service.DocumentStore
	txManager service.TransactionManager
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("connected to database")

		a.docs = postgres.NewDocumentStore(db)
		a.txManager = postgres.NewTransactionManager(db)
	default:
		docs, err := file.NewDocumentStore(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		a.docs = docs
		a.txManager = file.NewTransactionManager()
	}

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) source(ctx context.Context) (service.Source, error) {
	if a.cfg.Source.Kind == "api" {
		return gtasks.NewAPISource(ctx, a.cfg.Source.CredentialsPath, a.cfg.Source.TokenPath, a.logger)
	}
	return gtasks.NewFileSource(a.cfg.Source.BackupPath, a.logger), nil
}

// publisher returns nil when RabbitMQ is disabled.
func (a *app) publisher() (service.Publisher, error) {
	if !a.cfg.RabbitMQ.Enabled {
		return nil, nil
	}

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		RoutingKey: a.cfg.RabbitMQ.RoutingKey,
		QueueName:  a.cfg.RabbitMQ.QueueName,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rabbitMQ.Close)
	return rabbitMQ, nil
}

func (a *app) pipeline(ctx context.Context) (*service.Pipeline, error) {
	source, err := a.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("create task source: %w", err)
	}

	pub, err := a.publisher()
	if err != nil {
		return nil, err
	}

	runner := openai.New(openai.Config{
		BaseURL:  a.cfg.OpenAI.BaseURL,
		APIKey:   a.cfg.OpenAI.APIKey,
		Endpoint: a.cfg.OpenAI.Endpoint,
		Timeout:  a.cfg.OpenAI.Timeout,
	}, a.logger)

	return service.NewPipeline(
		source,
		a.docs,
		runner,
		a.txManager,
		pub,
		a.logger,
		a.cfg.Generation,
		service.TrackerConfig{
			Endpoint:         a.cfg.OpenAI.Endpoint,
			CompletionWindow: a.cfg.OpenAI.CompletionWindow,
		},
	), nil
}
