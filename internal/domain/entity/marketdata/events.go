package marketdata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WhaleDirection tags a whale alert with the market bias of the trade.
type WhaleDirection string

const (
	WhaleDirectionBullish WhaleDirection = "bullish"
	WhaleDirectionBearish WhaleDirection = "bearish"
)

// TradeExecutedEvent is published on the bus for every accepted trade.
type TradeExecutedEvent struct {
	Venue    string    `json:"venue"`
	Symbol   string    `json:"symbol"`
	Side     TradeSide `json:"side"`
	Price    float64   `json:"price"`
	Size     float64   `json:"size"`
	Notional float64   `json:"notional"`
	TradedAt time.Time `json:"traded_at"`
}

// WhaleEvent is the human-readable alert published when a trade's notional
// meets the venue threshold. The ID is derived from the alert content so
// redelivered alerts dedupe naturally downstream.
type WhaleEvent struct {
	ID         uuid.UUID      `json:"id"`
	Venue      string         `json:"venue"`
	Symbol     string         `json:"symbol"`
	Direction  WhaleDirection `json:"direction"`
	Price      float64        `json:"price"`
	Size       float64        `json:"size"`
	Notional   float64        `json:"notional"`
	Message    string         `json:"message"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewWhaleEvent builds the alert for a whale trade.
func NewWhaleEvent(trade Trade) WhaleEvent {
	direction := WhaleDirectionBearish
	verb := "sold"
	if trade.Side == TradeSideBuy {
		direction = WhaleDirectionBullish
		verb = "bought"
	}
	message := fmt.Sprintf("Whale %s %.4f %s at %.2f on %s ($%.0f)",
		verb, trade.Size, trade.Symbol, trade.Price, trade.Venue, trade.Notional)
	return WhaleEvent{
		ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte("whale:"+trade.Venue+":"+trade.VenueTradeID+":"+message)),
		Venue:      trade.Venue,
		Symbol:     trade.Symbol,
		Direction:  direction,
		Price:      trade.Price,
		Size:       trade.Size,
		Notional:   trade.Notional,
		Message:    message,
		OccurredAt: trade.TradedAt,
	}
}

// ReconnectEvent notifies monitoring of one reconnection attempt.
type ReconnectEvent struct {
	Venue   string    `json:"venue"`
	Attempt int       `json:"attempt"`
	DelayMs int64     `json:"delay_ms"`
	At      time.Time `json:"at"`
}

// VenueDeadEvent is the terminal notification emitted when the circuit
// breaker trips for a venue.
type VenueDeadEvent struct {
	Venue    string    `json:"venue"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// StreamMessage is one decoded inbound message from a venue stream adapter.
// Exactly one of Trade or Book is set.
type StreamMessage struct {
	Trade *RawTrade
	Book  *RawBookUpdate
}

// Bus subjects are "<venue>.<kind>" routing keys so monitoring can bind per
// venue or per event kind.

// TradesSubject is the routing key for trade-executed events.
func TradesSubject(venue string) string { return venue + ".trades" }

// WhalesSubject is the routing key for whale alerts.
func WhalesSubject(venue string) string { return venue + ".whales" }

// ConnectionSubject is the routing key for reconnect and dead notifications.
func ConnectionSubject(venue string) string { return venue + ".connection" }

// LogsSubject is the routing key for republished log lines.
func LogsSubject(venue string) string { return venue + ".logs" }
