package interfaces

import (
	"context"
	"errors"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

// ErrMalformedMessage marks an inbound frame the adapter could not decode.
// The engine logs and drops such frames without terminating the session.
var ErrMalformedMessage = errors.New("malformed stream message")

// EventPublisher is the thin bus port: a JSON payload on a subject.
// Implementations must be safe for concurrent use by independent engines.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// VenueStream is one streaming session to a venue. Connect tries the primary
// URL first and each fallback in order; Read blocks until the next decoded
// message, a malformed-frame error, or a connection error.
type VenueStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string, includeBook bool) error
	Read(ctx context.Context) (marketdata.StreamMessage, error)
	Close() error
}

// TradeHistoryClient polls a venue's REST trade-history endpoint, used when
// streaming cannot be established.
type TradeHistoryClient interface {
	RecentTrades(ctx context.Context, symbol string) ([]marketdata.RawTrade, error)
}

// PriceCache keeps the latest observed price per venue instrument for
// read-side consumers. Writes are best-effort.
type PriceCache interface {
	SetLatestPrice(ctx context.Context, venue, symbol string, price float64, at time.Time) error
}
