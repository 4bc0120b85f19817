package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"teamdict/internal/app"
	"teamdict/internal/config"
	"teamdict/internal/logger"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	a := app.New(cfg, deps.DB, deps.NSQProducer)

	commandConsumer, err := nsq.NewConsumer(config.TopicCommand, config.ChannelWorker, nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create command consumer", "error", err)
		os.Exit(1)
	}
	commandConsumer.AddConcurrentHandlers(nsq.HandlerFunc(a.CommandConsumer.HandleMessage), cfg.WorkerConcurrency)
	if err := commandConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect command consumer to NSQLookupd", "error", err)
		os.Exit(1)
	}
	defer commandConsumer.Stop()

	utilityConsumer, err := nsq.NewConsumer(config.TopicUtility, config.ChannelWorker, nsq.NewConfig())
	if err != nil {
		slog.Error("failed to create utility consumer", "error", err)
		os.Exit(1)
	}
	utilityConsumer.AddConcurrentHandlers(nsq.HandlerFunc(a.UtilityConsumer.HandleMessage), cfg.WorkerConcurrency)
	if err := utilityConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect utility consumer to NSQLookupd", "error", err)
		os.Exit(1)
	}
	defer utilityConsumer.Stop()

	slog.Info("workers connected", "concurrency", cfg.WorkerConcurrency)

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
