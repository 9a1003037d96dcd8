package ingest

import (
	"context"

	interfaces "main/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// FallbackCollector is the degraded-mode path: it polls the venue's REST
// trade history for each watched instrument and feeds the results through
// the same trade pipeline. One failing instrument never aborts the rest.
type FallbackCollector struct {
	venue     string
	symbols   []string
	history   interfaces.TradeHistoryClient
	processor *TradeProcessor
	candles   *CandleAggregator
	logger    *logrus.Entry
}

// NewFallbackCollector builds a collector for one venue instance.
func NewFallbackCollector(venue string, symbols []string, history interfaces.TradeHistoryClient, processor *TradeProcessor, candles *CandleAggregator, logger *logrus.Entry) *FallbackCollector {
	return &FallbackCollector{
		venue:     venue,
		symbols:   symbols,
		history:   history,
		processor: processor,
		candles:   candles,
		logger:    logger,
	}
}

// Collect runs one polling pass over all watched instruments and flushes
// open candles at the end.
func (c *FallbackCollector) Collect(ctx context.Context) error {
	defer c.candles.FlushAll(ctx)

	for _, symbol := range c.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		trades, err := c.history.RecentTrades(ctx, symbol)
		if err != nil {
			c.logger.WithError(err).WithField("symbol", symbol).Warn("trade history fetch failed")
			continue
		}
		for _, raw := range trades {
			c.processor.Process(ctx, raw)
		}
		c.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"trades": len(trades),
		}).Debug("trade history collected")
	}
	return nil
}
