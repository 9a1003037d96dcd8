package interfaces

import (
	"context"

	marketdata "main/internal/domain/entity/marketdata"
)

// MarketDataRepository persists normalized market data for one venue.
// Every write is keyed by a deterministic identifier, so redelivery of the
// same trade, candle, or snapshot is safe.
type MarketDataRepository interface {
	// AddTrade inserts a trade, ignoring it when the identity already exists.
	// It reports whether a new row was written.
	AddTrade(ctx context.Context, trade *marketdata.Trade) (bool, error)

	// UpsertCandle merges a candle into storage. On conflict the merge is
	// monotonic: high only rises, low only falls.
	UpsertCandle(ctx context.Context, candle *marketdata.Candle) error

	// AddOrderBookSnapshot inserts a snapshot, ignoring duplicates.
	AddOrderBookSnapshot(ctx context.Context, snapshot *marketdata.OrderBookSnapshot) error

	Close()
}

// SchemaManager ensures per-venue storage tables exist before any write.
type SchemaManager interface {
	EnsureVenueSchema(ctx context.Context, venue string) error
}
