package ingest

import (
	"context"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/instrumentation"

	"github.com/sirupsen/logrus"
)

// TradeProcessor normalizes one raw trade: idempotent persist, trade event
// on the bus, whale detection with a separate alert subject, a best-effort
// latest-price cache write, and the candle aggregator fold. Storage errors
// are logged and skipped; one bad write must not stall ingestion.
type TradeProcessor struct {
	venue          string
	whaleThreshold float64
	repo           interfaces.MarketDataRepository
	publisher      interfaces.EventPublisher
	candles        *CandleAggregator
	prices         interfaces.PriceCache
	metrics        *instrumentation.Metrics
	logger         *logrus.Entry
}

// NewTradeProcessor builds a processor for one venue instance. prices may
// be nil when the cache is disabled.
func NewTradeProcessor(
	venue string,
	whaleThreshold float64,
	repo interfaces.MarketDataRepository,
	publisher interfaces.EventPublisher,
	candles *CandleAggregator,
	prices interfaces.PriceCache,
	metrics *instrumentation.Metrics,
	logger *logrus.Entry,
) *TradeProcessor {
	return &TradeProcessor{
		venue:          venue,
		whaleThreshold: whaleThreshold,
		repo:           repo,
		publisher:      publisher,
		candles:        candles,
		prices:         prices,
		metrics:        metrics,
		logger:         logger,
	}
}

// Process handles one raw trade end to end.
func (p *TradeProcessor) Process(ctx context.Context, raw marketdata.RawTrade) {
	start := time.Now()
	trade := marketdata.NewTrade(p.venue, raw, p.whaleThreshold)

	inserted, err := p.repo.AddTrade(ctx, &trade)
	switch {
	case err != nil:
		p.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":   trade.Symbol,
			"trade_id": trade.VenueTradeID,
		}).Warn("trade persist failed")
		if p.metrics != nil {
			p.metrics.RecordError(p.venue, "trades")
		}
	case !inserted:
		if p.metrics != nil {
			p.metrics.TradesDuplicate.WithLabelValues(p.venue).Inc()
		}
	default:
		if p.metrics != nil {
			p.metrics.TradesProcessed.WithLabelValues(p.venue).Inc()
		}
	}

	event := marketdata.TradeExecutedEvent{
		Venue:    trade.Venue,
		Symbol:   trade.Symbol,
		Side:     trade.Side,
		Price:    trade.Price,
		Size:     trade.Size,
		Notional: trade.Notional,
		TradedAt: trade.TradedAt,
	}
	if err := p.publisher.Publish(ctx, marketdata.TradesSubject(p.venue), event); err != nil {
		p.logger.WithError(err).Warn("publish trade event failed")
		if p.metrics != nil {
			p.metrics.RecordError(p.venue, "publish")
		}
	}

	if trade.IsWhale {
		alert := marketdata.NewWhaleEvent(trade)
		if err := p.publisher.Publish(ctx, marketdata.WhalesSubject(p.venue), alert); err != nil {
			p.logger.WithError(err).Warn("publish whale alert failed")
			if p.metrics != nil {
				p.metrics.RecordError(p.venue, "publish")
			}
		} else {
			p.logger.WithFields(logrus.Fields{
				"symbol":    trade.Symbol,
				"notional":  trade.Notional,
				"direction": alert.Direction,
			}).Info("whale trade detected")
			if p.metrics != nil {
				p.metrics.WhaleAlerts.WithLabelValues(p.venue).Inc()
			}
		}
	}

	if p.prices != nil {
		if err := p.prices.SetLatestPrice(ctx, p.venue, trade.Symbol, trade.Price, trade.TradedAt); err != nil {
			p.logger.WithError(err).Debug("price cache write failed")
		}
	}

	p.candles.Update(ctx, trade)

	if p.metrics != nil {
		p.metrics.ProcessLatency.Observe(float64(time.Since(start).Milliseconds()))
	}
}
