package ingest

import (
	"context"
	"errors"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/instrumentation"

	"github.com/sirupsen/logrus"
)

// ErrVenueUnreachable is returned when the circuit breaker trips: the
// reconnect budget is exhausted and the run will not dial again.
var ErrVenueUnreachable = errors.New("venue unreachable: reconnect attempts exhausted")

const flushTimeout = 10 * time.Second

// EngineConfig wires one venue engine instance.
type EngineConfig struct {
	Venue            string
	Symbols          []string
	OrderBookEnabled bool
	SessionDuration  time.Duration

	Stream    interfaces.VenueStream
	Publisher interfaces.EventPublisher
	Processor *TradeProcessor
	Candles   *CandleAggregator
	// Books may be nil when the order book channel is disabled.
	Books *OrderBookMaintainer
	// Fallback may be nil when the venue has no REST history endpoint.
	Fallback *FallbackCollector

	Metrics *instrumentation.Metrics
	Logger  *logrus.Entry
}

// Engine owns one venue streaming session: connect, subscribe, dispatch,
// reconnect with backoff, and the REST fallback when streaming cannot be
// established. All inbound messages are handled on the single Run goroutine,
// in arrival order, so per-instance state needs no locks.
type Engine struct {
	cfg     EngineConfig
	session marketdata.Session
	sleep   func(ctx context.Context, d time.Duration) bool
}

// NewEngine validates the wiring and builds an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Venue == "" {
		return nil, errors.New("venue is required")
	}
	if cfg.Stream == nil && cfg.Fallback == nil {
		return nil, errors.New("a stream or a fallback collector is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if cfg.Processor == nil || cfg.Candles == nil {
		return nil, errors.New("trade processor and candle aggregator are required")
	}
	if cfg.SessionDuration <= 0 {
		return nil, errors.New("session duration must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{cfg: cfg, session: marketdata.NewSession(), sleep: sleepCtx}, nil
}

// Session exposes the current connection state.
func (e *Engine) Session() marketdata.Session {
	return e.session
}

// Run drives one bounded session. It returns nil on a graceful stop
// (caller cancellation or the session-duration cap) and ErrVenueUnreachable
// when the circuit breaker trips. Open candles are flushed on every exit
// path.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.SessionDuration)
	defer cancel()

	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), flushTimeout)
		defer flushCancel()
		e.cfg.Candles.FlushAll(flushCtx)
	}()

	if e.cfg.Stream == nil {
		return e.collectFallback(runCtx)
	}

	// Each supervised run starts from a clean slate; a caller re-invoking
	// after a Dead run gets a fresh attempt budget.
	e.session = marketdata.NewSession().Connecting()
	if err := e.cfg.Stream.Connect(runCtx); err != nil {
		e.session = e.session.Stopped()
		e.cfg.Logger.WithError(err).Warn("streaming unavailable")
		if e.cfg.Fallback != nil {
			e.cfg.Logger.Info("falling back to REST collection")
			return e.collectFallback(runCtx)
		}
		return err
	}
	if err := e.subscribe(runCtx); err != nil {
		if ok, terminal := e.reconnect(runCtx, err); !ok {
			return terminal
		}
	} else {
		e.session = e.session.Opened()
	}
	e.cfg.Logger.Info("session open")

	for {
		msg, err := e.cfg.Stream.Read(runCtx)
		if err != nil {
			if errors.Is(err, interfaces.ErrMalformedMessage) {
				e.cfg.Logger.WithError(err).Warn("dropping malformed message")
				if e.cfg.Metrics != nil {
					e.cfg.Metrics.MalformedFrames.WithLabelValues(e.cfg.Venue).Inc()
				}
				continue
			}
			if runCtx.Err() != nil {
				return e.stop()
			}
			ok, terminal := e.reconnect(runCtx, err)
			if !ok {
				return terminal
			}
			continue
		}
		e.dispatch(runCtx, msg)
	}
}

func (e *Engine) dispatch(ctx context.Context, msg marketdata.StreamMessage) {
	switch {
	case msg.Trade != nil:
		e.cfg.Processor.Process(ctx, *msg.Trade)
	case msg.Book != nil:
		if e.cfg.Books != nil {
			e.cfg.Books.Apply(ctx, *msg.Book)
		}
	}
}

func (e *Engine) subscribe(ctx context.Context) error {
	return e.cfg.Stream.Subscribe(ctx, e.cfg.Symbols, e.cfg.OrderBookEnabled)
}

// reconnect drives the backoff cycle after an unexpected close. It returns
// ok=true once the session is reopened; otherwise ok=false with the
// terminal result: nil for a graceful stop, ErrVenueUnreachable when the
// circuit breaker tripped.
func (e *Engine) reconnect(ctx context.Context, cause error) (bool, error) {
	e.cfg.Logger.WithError(cause).Warn("stream disconnected")
	_ = e.cfg.Stream.Close()

	for {
		next, retry := e.session.Failed()
		e.session = next
		if !retry {
			e.publishDead(ctx, next.Attempts, cause)
			e.cfg.Logger.WithField("attempts", next.Attempts).Error("reconnect attempts exhausted, venue is dead")
			return false, ErrVenueUnreachable
		}

		e.publishReconnect(ctx, next)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.Reconnects.WithLabelValues(e.cfg.Venue).Inc()
		}
		if !e.sleep(ctx, next.Delay) {
			return false, e.stop()
		}

		e.session = e.session.Connecting()
		if err := e.cfg.Stream.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return false, e.stop()
			}
			cause = err
			continue
		}
		if err := e.subscribe(ctx); err != nil {
			_ = e.cfg.Stream.Close()
			cause = err
			continue
		}

		e.session = e.session.Opened()
		e.cfg.Logger.WithField("attempt", next.Attempts).Info("session reopened")
		return true, nil
	}
}

func (e *Engine) stop() error {
	_ = e.cfg.Stream.Close()
	e.session = e.session.Stopped()
	e.cfg.Logger.Info("session stopped")
	return nil
}

func (e *Engine) collectFallback(ctx context.Context) error {
	err := e.cfg.Fallback.Collect(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (e *Engine) publishReconnect(ctx context.Context, session marketdata.Session) {
	event := marketdata.ReconnectEvent{
		Venue:   e.cfg.Venue,
		Attempt: session.Attempts,
		DelayMs: session.Delay.Milliseconds(),
		At:      time.Now().UTC(),
	}
	if err := e.cfg.Publisher.Publish(ctx, marketdata.ConnectionSubject(e.cfg.Venue), event); err != nil {
		e.cfg.Logger.WithError(err).Warn("publish reconnect notification failed")
	}
}

func (e *Engine) publishDead(ctx context.Context, attempts int, cause error) {
	event := marketdata.VenueDeadEvent{
		Venue:    e.cfg.Venue,
		Attempts: attempts,
		Reason:   cause.Error(),
		At:       time.Now().UTC(),
	}
	if err := e.cfg.Publisher.Publish(ctx, marketdata.ConnectionSubject(e.cfg.Venue), event); err != nil {
		e.cfg.Logger.WithError(err).Warn("publish dead notification failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
