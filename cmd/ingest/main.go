package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"main/internal/application/service/ingest"
	"main/internal/config"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/bus"
	infracache "main/internal/infrastructure/cache"
	inframarketdata "main/internal/infrastructure/marketdata"
	"main/internal/infrastructure/stream"
	"main/internal/infrastructure/venue"
	"main/internal/instrumentation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	metrics := instrumentation.NewMetrics()
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Infof("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server error: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	started := 0
	for _, venueCfg := range cfg.Venues {
		if !venueCfg.Enabled {
			logger.WithField("venue", venueCfg.Name).Info("venue disabled, skipping")
			continue
		}
		venueCfg := venueCfg

		if err := schema.EnsureVenueSchema(ctx, venueCfg.Name); err != nil {
			logger.Fatalf("ensure schema for %s: %v", venueCfg.Name, err)
		}

		engine, err := buildEngine(cfg, venueCfg, pool, publisher, redisClient, metrics)
		if err != nil {
			logger.Fatalf("build engine for %s: %v", venueCfg.Name, err)
		}

		started++
		g.Go(func() error {
			return superviseVenue(gctx, engine, venueCfg.Name, logger)
		})
	}
	if started == 0 {
		logger.Fatal("no enabled venues configured")
	}
	logger.WithField("venues", started).Info("ingestion started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("ingestion stopped with error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("metrics server shutdown error: %v", err)
	}
	logger.Info("ingestion stopped")
}

// venueRunner is the slice of ingest.Engine the supervisor needs.
type venueRunner interface {
	Run(ctx context.Context) error
}

// sessionRetryDelay spaces out restarts after a failed session.
var sessionRetryDelay = 5 * time.Second

// superviseVenue re-invokes bounded sessions until the caller stops or the
// venue's circuit breaker trips. Session errors restart only this venue;
// the other venues keep running.
func superviseVenue(ctx context.Context, engine venueRunner, venueName string, logger *logrus.Logger) error {
	log := logger.WithField("venue", venueName)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := engine.Run(ctx)
		switch {
		case errors.Is(err, ingest.ErrVenueUnreachable):
			log.Error("venue circuit breaker tripped, stopping supervision")
			return nil
		case err != nil:
			log.WithError(err).Errorf("session failed, retrying in %s", sessionRetryDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sessionRetryDelay):
			}
		default:
			log.Debug("session completed, starting next run")
		}
	}
}

func buildEngine(
	cfg *config.Config,
	venueCfg config.VenueConfig,
	pool *pgxpool.Pool,
	publisher *bus.Publisher,
	redisClient *redis.Client,
	metrics *instrumentation.Metrics,
) (*ingest.Engine, error) {
	repo, err := inframarketdata.NewRepositoryWithPool(pool, venueCfg.Name)
	if err != nil {
		return nil, err
	}

	venueLogger := logrus.New()
	venueLogger.SetFormatter(&logrus.JSONFormatter{})
	venueLogger.AddHook(bus.NewLogHook(publisher, venueCfg.Name))
	log := venueLogger.WithFields(logrus.Fields{
		"module": "ingest",
		"venue":  venueCfg.Name,
	})

	var prices interfaces.PriceCache
	if redisClient != nil {
		prices = infracache.NewPriceCache(redisClient, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	}

	candles := ingest.NewCandleAggregator(venueCfg.Name, venueCfg.CandleIntervalSeconds, repo, metrics, log)
	processor := ingest.NewTradeProcessor(venueCfg.Name, venueCfg.WhaleThreshold, repo, publisher, candles, prices, metrics, log)

	var books *ingest.OrderBookMaintainer
	if venueCfg.OrderBookEnabled {
		books = ingest.NewOrderBookMaintainer(venueCfg.Name, venueCfg.OrderBookDepth, venueCfg.SnapshotInterval(), repo, metrics, log)
	}

	var venueStream interfaces.VenueStream
	if venueCfg.WSURL != "" {
		ws, err := stream.NewWebSocketStream(stream.NewFeedAdapter(), stream.Options{
			PrimaryURL:   venueCfg.WSURL,
			FallbackURLs: venueCfg.FallbackURLs,
			ReadTimeout:  venueCfg.HeartbeatTimeout(),
		}, log)
		if err != nil {
			return nil, err
		}
		venueStream = ws
	}

	var fallback *ingest.FallbackCollector
	if venueCfg.RESTURL != "" {
		history, err := venue.NewHistoryClient(venueCfg.RESTURL, 0, log)
		if err != nil {
			return nil, err
		}
		fallback = ingest.NewFallbackCollector(venueCfg.Name, venueCfg.Instruments, history, processor, candles, log)
	}

	return ingest.NewEngine(ingest.EngineConfig{
		Venue:            venueCfg.Name,
		Symbols:          venueCfg.Instruments,
		OrderBookEnabled: venueCfg.OrderBookEnabled,
		SessionDuration:  cfg.SessionDuration(),
		Stream:           venueStream,
		Publisher:        publisher,
		Processor:        processor,
		Candles:          candles,
		Books:            books,
		Fallback:         fallback,
		Metrics:          metrics,
		Logger:           log,
	})
}
