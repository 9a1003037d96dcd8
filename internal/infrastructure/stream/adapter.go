package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
)

// FeedAdapter speaks the normalized JSON feed protocol: every frame is an
// envelope with a "type" discriminator, and subscriptions are one payload
// per channel. Venues behind a protocol gateway all present this shape;
// venue-native wire formats get their own Adapter implementations.
type FeedAdapter struct{}

// NewFeedAdapter returns the JSON feed codec.
func NewFeedAdapter() *FeedAdapter {
	return &FeedAdapter{}
}

type subscribeRequest struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols"`
}

type feedEnvelope struct {
	Type    string  `json:"type"`
	TradeID string  `json:"trade_id"`
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    string  `json:"side"`
	TsMs    int64   `json:"ts"`
}

// SubscribePayloads builds the trade-channel subscription, plus the
// order-book channel when requested.
func (a *FeedAdapter) SubscribePayloads(symbols []string, includeBook bool) ([][]byte, error) {
	channels := []string{"trades"}
	if includeBook {
		channels = append(channels, "book")
	}
	payloads := make([][]byte, 0, len(channels))
	for _, channel := range channels {
		body, err := json.Marshal(subscribeRequest{
			Op:      "subscribe",
			Channel: channel,
			Symbols: symbols,
		})
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, body)
	}
	return payloads, nil
}

// Decode parses one frame. Unknown types, missing fields, and invalid sides
// are malformed; the caller drops them without ending the session.
func (a *FeedAdapter) Decode(frame []byte) (marketdata.StreamMessage, error) {
	var envelope feedEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return marketdata.StreamMessage{}, fmt.Errorf("%w: %v", interfaces.ErrMalformedMessage, err)
	}

	switch envelope.Type {
	case "trade":
		if envelope.TradeID == "" || envelope.Symbol == "" {
			return marketdata.StreamMessage{}, fmt.Errorf("%w: trade missing id or symbol", interfaces.ErrMalformedMessage)
		}
		side := marketdata.TradeSide(strings.ToUpper(envelope.Side))
		if !side.IsValid() {
			return marketdata.StreamMessage{}, fmt.Errorf("%w: unknown trade side %q", interfaces.ErrMalformedMessage, envelope.Side)
		}
		return marketdata.StreamMessage{
			Trade: &marketdata.RawTrade{
				TradeID:    envelope.TradeID,
				Symbol:     envelope.Symbol,
				Price:      envelope.Price,
				Size:       envelope.Size,
				Side:       side,
				OccurredAt: time.UnixMilli(envelope.TsMs).UTC(),
			},
		}, nil
	case "book":
		if envelope.Symbol == "" {
			return marketdata.StreamMessage{}, fmt.Errorf("%w: book update missing symbol", interfaces.ErrMalformedMessage)
		}
		side := marketdata.BookSide(strings.ToUpper(envelope.Side))
		if !side.IsValid() {
			return marketdata.StreamMessage{}, fmt.Errorf("%w: unknown book side %q", interfaces.ErrMalformedMessage, envelope.Side)
		}
		return marketdata.StreamMessage{
			Book: &marketdata.RawBookUpdate{
				Symbol: envelope.Symbol,
				Side:   side,
				Price:  envelope.Price,
				Size:   envelope.Size,
			},
		}, nil
	default:
		return marketdata.StreamMessage{}, fmt.Errorf("%w: unknown message type %q", interfaces.ErrMalformedMessage, envelope.Type)
	}
}
