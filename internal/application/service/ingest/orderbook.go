package ingest

import (
	"context"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/instrumentation"

	"github.com/sirupsen/logrus"
)

// OrderBookMaintainer applies incremental level updates to per-instrument
// books and persists throttled snapshots. Update streams run far hotter
// than snapshot storage needs to, so at most one snapshot per instrument is
// written per throttle window.
type OrderBookMaintainer struct {
	venue       string
	depth       int
	minInterval time.Duration
	repo        interfaces.MarketDataRepository
	metrics     *instrumentation.Metrics
	logger      *logrus.Entry

	books        map[string]*marketdata.OrderBook
	lastSnapshot map[string]time.Time
	now          func() time.Time
}

// NewOrderBookMaintainer builds a maintainer for one venue instance.
func NewOrderBookMaintainer(venue string, depth int, minInterval time.Duration, repo interfaces.MarketDataRepository, metrics *instrumentation.Metrics, logger *logrus.Entry) *OrderBookMaintainer {
	return &OrderBookMaintainer{
		venue:        venue,
		depth:        depth,
		minInterval:  minInterval,
		repo:         repo,
		metrics:      metrics,
		logger:       logger,
		books:        make(map[string]*marketdata.OrderBook),
		lastSnapshot: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Apply folds one level update into the instrument's book and attempts a
// snapshot afterwards.
func (m *OrderBookMaintainer) Apply(ctx context.Context, update marketdata.RawBookUpdate) {
	book := m.books[update.Symbol]
	if book == nil {
		book = marketdata.NewOrderBook(update.Symbol, m.depth)
		m.books[update.Symbol] = book
	}
	book.ApplyLevel(update.Side, update.Price, update.Size)
	m.MaybeSnapshot(ctx, update.Symbol)
}

// Book returns the live book for an instrument, if one exists.
func (m *OrderBookMaintainer) Book(symbol string) (*marketdata.OrderBook, bool) {
	book, ok := m.books[symbol]
	return book, ok
}

// MaybeSnapshot persists a snapshot unless a side is empty or the previous
// snapshot for the instrument is younger than the minimum interval.
func (m *OrderBookMaintainer) MaybeSnapshot(ctx context.Context, symbol string) {
	book := m.books[symbol]
	if book == nil {
		return
	}

	now := m.now().UTC()
	if last, ok := m.lastSnapshot[symbol]; ok && now.Sub(last) < m.minInterval {
		return
	}

	snapshot, ok := book.Snapshot(m.venue, now)
	if !ok {
		return
	}

	if err := m.repo.AddOrderBookSnapshot(ctx, &snapshot); err != nil {
		m.logger.WithError(err).WithField("symbol", symbol).Warn("order book snapshot failed")
		if m.metrics != nil {
			m.metrics.RecordError(m.venue, "orderbook")
		}
		return
	}
	m.lastSnapshot[symbol] = now
	if m.metrics != nil {
		m.metrics.SnapshotsWritten.WithLabelValues(m.venue).Inc()
	}
}
