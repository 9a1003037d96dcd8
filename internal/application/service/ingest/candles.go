package ingest

import (
	"context"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/instrumentation"

	"github.com/sirupsen/logrus"
)

// CandleAggregator folds trades into fixed-width OHLCV buckets, one open
// candle per instrument, and flushes completed buckets to storage. It is
// owned by a single engine goroutine and needs no locking.
type CandleAggregator struct {
	venue           string
	intervalSeconds int64
	repo            interfaces.MarketDataRepository
	metrics         *instrumentation.Metrics
	logger          *logrus.Entry

	open map[string]*marketdata.Candle
}

// NewCandleAggregator builds an aggregator for one venue instance.
func NewCandleAggregator(venue string, intervalSeconds int64, repo interfaces.MarketDataRepository, metrics *instrumentation.Metrics, logger *logrus.Entry) *CandleAggregator {
	return &CandleAggregator{
		venue:           venue,
		intervalSeconds: intervalSeconds,
		repo:            repo,
		metrics:         metrics,
		logger:          logger,
		open:            make(map[string]*marketdata.Candle),
	}
}

// Update folds one trade into its instrument's open candle. A trade for a
// later bucket flushes the superseded candle first.
func (a *CandleAggregator) Update(ctx context.Context, trade marketdata.Trade) {
	current := a.open[trade.Symbol]
	if current != nil && current.Contains(trade.TradedAt) {
		current.Apply(trade)
		return
	}
	if current != nil {
		a.flush(ctx, current)
	}
	candle := marketdata.NewCandle(trade, a.intervalSeconds)
	a.open[trade.Symbol] = &candle
}

// Open returns the in-progress candle for an instrument, if any.
func (a *CandleAggregator) Open(symbol string) (marketdata.Candle, bool) {
	candle := a.open[symbol]
	if candle == nil {
		return marketdata.Candle{}, false
	}
	return *candle, true
}

// FlushAll persists every still-open candle. Called on shutdown so no
// bucket is lost at the boundary between runs.
func (a *CandleAggregator) FlushAll(ctx context.Context) {
	for symbol, candle := range a.open {
		a.flush(ctx, candle)
		delete(a.open, symbol)
	}
}

func (a *CandleAggregator) flush(ctx context.Context, candle *marketdata.Candle) {
	if err := a.repo.UpsertCandle(ctx, candle); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":       candle.Symbol,
			"period_start": candle.PeriodStart,
		}).Warn("candle flush failed")
		if a.metrics != nil {
			a.metrics.RecordError(a.venue, "candles")
		}
		return
	}
	if a.metrics != nil {
		a.metrics.CandleFlushes.WithLabelValues(a.venue).Inc()
	}
}
