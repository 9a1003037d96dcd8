package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"main/internal/config"
	marketdata "main/internal/domain/entity/marketdata"
	"main/internal/infrastructure/bus"

	"github.com/sirupsen/logrus"
)

// alerts tails the event bus and surfaces whale trades and connection
// incidents as structured log lines, for piping into a notifier or a
// terminal during an incident.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	consumer, err := bus.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, handleEvent(logger), logger)
	if err != nil {
		logger.Fatalf("init consumer: %v", err)
	}
	if err := consumer.Start(ctx, "*.whales", "*.connection"); err != nil {
		logger.Fatalf("start consumer: %v", err)
	}
	defer consumer.Close()

	<-ctx.Done()
	logger.Info("alert tail stopped")
}

func handleEvent(logger *logrus.Logger) bus.Handler {
	return func(_ context.Context, subject string, body []byte) error {
		switch {
		case strings.HasSuffix(subject, ".whales"):
			var event marketdata.WhaleEvent
			if err := json.Unmarshal(body, &event); err != nil {
				return fmt.Errorf("decode whale event: %w", err)
			}
			logger.WithFields(logrus.Fields{
				"venue":     event.Venue,
				"symbol":    event.Symbol,
				"direction": event.Direction,
				"notional":  event.Notional,
			}).Warn(event.Message)
			return nil
		case strings.HasSuffix(subject, ".connection"):
			return logConnectionEvent(logger, body)
		default:
			return fmt.Errorf("unexpected subject: %s", subject)
		}
	}
}

// Connection events share one subject; dead notifications carry a reason,
// reconnect attempts carry a delay.
func logConnectionEvent(logger *logrus.Logger, body []byte) error {
	var peek struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return fmt.Errorf("decode connection event: %w", err)
	}
	if peek.Reason != "" {
		var event marketdata.VenueDeadEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("decode dead event: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"venue":    event.Venue,
			"attempts": event.Attempts,
			"reason":   event.Reason,
		}).Error("venue marked dead")
		return nil
	}
	var event marketdata.ReconnectEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode reconnect event: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"venue":    event.Venue,
		"attempt":  event.Attempt,
		"delay_ms": event.DelayMs,
	}).Warn("venue reconnecting")
	return nil
}
