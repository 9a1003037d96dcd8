package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Handler processes one delivered message. A non-nil error requeues the
// delivery.
type Handler func(ctx context.Context, subject string, body []byte) error

// Consumer binds exclusive queues to the topic exchange and forwards
// matching messages to a handler. Each binding pattern gets its own
// channel and consume loop.
type Consumer struct {
	url      string
	exchange string
	handler  Handler
	logger   *logrus.Logger

	conn     *amqp.Connection
	channels []*amqp.Channel
	wg       sync.WaitGroup
}

// NewConsumer prepares a consumer for the given bus endpoint.
func NewConsumer(url, exchange string, handler Handler, logger *logrus.Logger) (*Consumer, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	return &Consumer{
		url:      url,
		exchange: exchange,
		handler:  handler,
		logger:   logger,
	}, nil
}

// Start establishes the AMQP connection and begins consuming the given
// binding patterns, for example "*.whales" or "btc_spot.#".
func (c *Consumer) Start(ctx context.Context, patterns ...string) error {
	if len(patterns) == 0 {
		return errors.New("at least one binding pattern is required")
	}
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	c.conn = conn

	for _, pattern := range patterns {
		if err := c.startBinding(ctx, pattern); err != nil {
			c.Close()
			return err
		}
	}
	c.logger.Infof("bus consumer started: exchange=%s patterns=%v", c.exchange, patterns)
	return nil
}

// Close stops consumption and releases resources.
func (c *Consumer) Close() {
	for _, ch := range c.channels {
		_ = ch.Close()
	}
	c.channels = nil
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.wg.Wait()
}

func (c *Consumer) startBinding(ctx context.Context, pattern string) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel for %s: %w", pattern, err)
	}
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue for %s: %w", pattern, err)
	}
	if err := ch.QueueBind(queue.Name, pattern, c.exchange, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, pattern, err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("start consume for %s: %w", pattern, err)
	}
	c.channels = append(c.channels, ch)
	c.wg.Add(1)
	go c.consumeLoop(ctx, pattern, deliveries)
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, pattern string, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.WithField("pattern", pattern)
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := c.handler(ctx, delivery.RoutingKey, delivery.Body); err != nil {
				log.WithError(err).Warn("failed to process message")
				_ = delivery.Nack(false, true)
				continue
			}
			if err := delivery.Ack(false); err != nil {
				log.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}
