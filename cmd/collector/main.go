package main

import (
	"context"
	"os/signal"
	"syscall"

	"main/internal/application/service/ingest"
	"main/internal/config"
	"main/internal/infrastructure/bus"
	inframarketdata "main/internal/infrastructure/marketdata"
	"main/internal/infrastructure/venue"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// collector runs a single REST polling pass over every enabled venue that
// exposes a trade history endpoint. It is meant for cron-style backfill when
// the streaming ingester is down or a venue has no websocket feed.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	schema := inframarketdata.NewSchemaManager(pool)

	rabbitConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatalf("connect rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	publisher, err := bus.NewPublisher(rabbitConn, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		logger.Fatalf("init publisher: %v", err)
	}
	defer publisher.Close()

	g, gctx := errgroup.WithContext(ctx)
	started := 0
	for _, venueCfg := range cfg.Venues {
		if !venueCfg.Enabled || venueCfg.RESTURL == "" {
			continue
		}
		venueCfg := venueCfg

		if err := schema.EnsureVenueSchema(ctx, venueCfg.Name); err != nil {
			logger.Fatalf("ensure schema for %s: %v", venueCfg.Name, err)
		}

		repo, err := inframarketdata.NewRepositoryWithPool(pool, venueCfg.Name)
		if err != nil {
			logger.Fatalf("init repository for %s: %v", venueCfg.Name, err)
		}
		log := logger.WithFields(logrus.Fields{
			"module": "collector",
			"venue":  venueCfg.Name,
		})
		history, err := venue.NewHistoryClient(venueCfg.RESTURL, 0, log)
		if err != nil {
			logger.Fatalf("init history client for %s: %v", venueCfg.Name, err)
		}
		candles := ingest.NewCandleAggregator(venueCfg.Name, venueCfg.CandleIntervalSeconds, repo, nil, log)
		processor := ingest.NewTradeProcessor(venueCfg.Name, venueCfg.WhaleThreshold, repo, publisher, candles, nil, nil, log)
		collector := ingest.NewFallbackCollector(venueCfg.Name, venueCfg.Instruments, history, processor, candles, log)

		started++
		g.Go(func() error {
			return collector.Collect(gctx)
		})
	}
	if started == 0 {
		logger.Fatal("no enabled venues with a trade history endpoint")
	}

	if err := g.Wait(); err != nil {
		logger.Fatalf("collection failed: %v", err)
	}
	logger.WithField("venues", started).Info("collection pass complete")
}
