package marketdata

import (
	"time"

	"github.com/google/uuid"
)

// TradeSide represents BUY/SELL direction derived from the incoming stream.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// IsValid reports whether the side is one of the two known directions.
func (s TradeSide) IsValid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// RawTrade is a venue trade as delivered by a stream or history adapter,
// before any derivation. Immutable once received.
type RawTrade struct {
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	Side       TradeSide `json:"side"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Trade is the normalized, persisted form of a RawTrade. Identity is
// venue + venue trade id, folded into a deterministic UUID so redelivered
// trades collapse onto the same row.
type Trade struct {
	ID           uuid.UUID `json:"id"`
	Venue        string    `json:"venue"`
	VenueTradeID string    `json:"venue_trade_id"`
	Symbol       string    `json:"symbol"`
	Side         TradeSide `json:"side"`
	Price        float64   `json:"price"`
	Size         float64   `json:"size"`
	Notional     float64   `json:"notional"`
	IsWhale      bool      `json:"is_whale"`
	TradedAt     time.Time `json:"traded_at"`
}

// NewTrade normalizes a raw trade for the given venue: computes the notional
// value, applies the whale threshold (inclusive at the boundary), and derives
// the stable identity.
func NewTrade(venue string, raw RawTrade, whaleThreshold float64) Trade {
	notional := raw.Price * raw.Size
	return Trade{
		ID:           TradeUID(venue, raw.TradeID),
		Venue:        venue,
		VenueTradeID: raw.TradeID,
		Symbol:       raw.Symbol,
		Side:         raw.Side,
		Price:        raw.Price,
		Size:         raw.Size,
		Notional:     notional,
		IsWhale:      notional >= whaleThreshold,
		TradedAt:     raw.OccurredAt,
	}
}

// TradeUID derives the stable identity for a venue trade id.
func TradeUID(venue, tradeID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("trade:"+venue+":"+tradeID))
}
