package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "main/internal/domain/entity/marketdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists normalized market data for one venue. Tables are
// venue-prefixed; every write is keyed by a deterministic identifier so the
// pipeline stays safe under redelivery.
type Repository struct {
	pool  *pgxpool.Pool
	venue string

	insertTradeQuery    string
	upsertCandleQuery   string
	insertSnapshotQuery string
}

// NewRepository connects a pool and binds it to the venue's tables.
func NewRepository(ctx context.Context, dsn, venue string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return NewRepositoryWithPool(pool, venue)
}

// NewRepositoryWithPool binds an existing pool to the venue's tables, so
// independent venue engines can share one connection pool.
func NewRepositoryWithPool(pool *pgxpool.Pool, venue string) (*Repository, error) {
	prefix, err := TablePrefix(venue)
	if err != nil {
		return nil, err
	}
	return &Repository{
		pool:  pool,
		venue: venue,
		insertTradeQuery: fmt.Sprintf(`
			INSERT INTO %s_trades (trade_id, venue_trade_id, symbol, side, price, size, notional, is_whale, traded_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (trade_id) DO NOTHING`, prefix),
		upsertCandleQuery: fmt.Sprintf(`
			INSERT INTO %s_candles (candle_id, symbol, interval_seconds, period_start, open, high, low, close, volume, trade_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (symbol, interval_seconds, period_start) DO UPDATE
			SET high = GREATEST(%[1]s_candles.high, EXCLUDED.high),
			    low = LEAST(%[1]s_candles.low, EXCLUDED.low),
			    close = EXCLUDED.close,
			    volume = GREATEST(%[1]s_candles.volume, EXCLUDED.volume),
			    trade_count = GREATEST(%[1]s_candles.trade_count, EXCLUDED.trade_count)`, prefix),
		insertSnapshotQuery: fmt.Sprintf(`
			INSERT INTO %s_orderbook_snapshots (snapshot_id, symbol, bids, asks, mid_price, spread_bps, snapshot_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (snapshot_id) DO NOTHING`, prefix),
	}, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// AddTrade inserts a trade, ignoring redelivered identities. It reports
// whether a new row was written.
func (r *Repository) AddTrade(ctx context.Context, trade *domain.Trade) (bool, error) {
	if trade == nil {
		return false, errors.New("nil trade")
	}
	if trade.ID == uuid.Nil {
		trade.ID = domain.TradeUID(trade.Venue, trade.VenueTradeID)
	}
	tag, err := r.pool.Exec(ctx, r.insertTradeQuery,
		trade.ID,
		trade.VenueTradeID,
		trade.Symbol,
		trade.Side,
		trade.Price,
		trade.Size,
		trade.Notional,
		trade.IsWhale,
		trade.TradedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertCandle merges a candle bucket. The conflict clause keeps high/low
// monotonic so a retried flush can never shrink the range.
func (r *Repository) UpsertCandle(ctx context.Context, candle *domain.Candle) error {
	if candle == nil {
		return errors.New("nil candle")
	}
	if candle.ID == uuid.Nil {
		candle.ID = domain.CandleUID(candle.Venue, candle.Symbol, candle.IntervalSeconds, candle.PeriodStart)
	}
	_, err := r.pool.Exec(ctx, r.upsertCandleQuery,
		candle.ID,
		candle.Symbol,
		candle.IntervalSeconds,
		candle.PeriodStart,
		candle.Open,
		candle.High,
		candle.Low,
		candle.Close,
		candle.Volume,
		candle.TradeCount,
	)
	return err
}

// AddOrderBookSnapshot inserts a snapshot, ignoring duplicate identifiers.
func (r *Repository) AddOrderBookSnapshot(ctx context.Context, snapshot *domain.OrderBookSnapshot) error {
	if snapshot == nil {
		return errors.New("nil order book snapshot")
	}
	if snapshot.ID == uuid.Nil {
		snapshot.ID = domain.SnapshotUID(snapshot.Venue, snapshot.Symbol, snapshot.SnapshotAt)
	}
	bidsJSON, err := json.Marshal(snapshot.Bids)
	if err != nil {
		return fmt.Errorf("marshal bids: %w", err)
	}
	asksJSON, err := json.Marshal(snapshot.Asks)
	if err != nil {
		return fmt.Errorf("marshal asks: %w", err)
	}
	_, err = r.pool.Exec(ctx, r.insertSnapshotQuery,
		snapshot.ID,
		snapshot.Symbol,
		bidsJSON,
		asksJSON,
		snapshot.MidPrice,
		snapshot.SpreadBps,
		snapshot.SnapshotAt,
	)
	return err
}
