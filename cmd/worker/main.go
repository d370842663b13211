package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/Domenick1991/tripquote/config"
	"github.com/Domenick1991/tripquote/internal/alert"
	"github.com/Domenick1991/tripquote/internal/bootstrap"
	"github.com/Domenick1991/tripquote/internal/events"
	"github.com/Domenick1991/tripquote/internal/kafka"
	"github.com/Domenick1991/tripquote/internal/logger"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		cfg.ApplyEnv()
		err = cfg.Validate()
	}
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.Log).With().Str("service", "tripquote-worker").Logger()
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal().Msg("kafka.brokers is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	partitions, err := kafka.CheckConnection(checkCtx, cfg.Kafka.Brokers)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("kafka is unreachable")
	}
	log.Info().Int("partitions", partitions).Msg("connected to kafka")

	quoteConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.QuoteEventsTopic, log)
	defer closeConsumer(log, quoteConsumer)
	breakerConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BreakerEventsTopic, log)
	defer closeConsumer(log, breakerConsumer)

	worker := bootstrap.NewWorker(
		events.NewStats(),
		alert.NewSender(log.With().Str("component", "alert").Logger()),
		cfg.Worker.SummaryInterval(),
		log,
	)

	log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("worker started")
	worker.Run(ctx, quoteConsumer, breakerConsumer)
	log.Info().Msg("worker stopped")
}

func closeConsumer(log zerolog.Logger, c *kafka.Consumer) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("topic", c.Topic()).Msg("close consumer")
	}
}
