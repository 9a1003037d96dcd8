package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// BookSide distinguishes the two halves of an order book.
type BookSide string

const (
	BookSideBid BookSide = "BID"
	BookSideAsk BookSide = "ASK"
)

// IsValid reports whether the side is one of the two book halves.
func (s BookSide) IsValid() bool {
	return s == BookSideBid || s == BookSideAsk
}

// OrderBookLevel holds a price/size pair for one side of the book.
type OrderBookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// RawBookUpdate is an incremental level change as delivered by a stream
// adapter. A size of zero removes the level at that price.
type RawBookUpdate struct {
	Symbol string   `json:"symbol"`
	Side   BookSide `json:"side"`
	Price  float64  `json:"price"`
	Size   float64  `json:"size"`
}

// OrderBook is the live, depth-capped book for one instrument.
// Bids are kept descending by price, asks ascending.
type OrderBook struct {
	Symbol string
	Bids   []OrderBookLevel
	Asks   []OrderBookLevel
	depth  int
}

// NewOrderBook allocates an empty book capped at the given depth per side.
func NewOrderBook(symbol string, depth int) *OrderBook {
	return &OrderBook{Symbol: symbol, depth: depth}
}

// ApplyLevel upserts or removes one price level and restores side ordering
// and the depth cap.
func (b *OrderBook) ApplyLevel(side BookSide, price, size float64) {
	levels := b.Asks
	if side == BookSideBid {
		levels = b.Bids
	}

	if size == 0 {
		levels = removeLevel(levels, price)
	} else {
		levels = upsertLevel(levels, price, size)
		if side == BookSideBid {
			sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
		} else {
			sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
		}
		if b.depth > 0 && len(levels) > b.depth {
			levels = levels[:b.depth]
		}
	}

	if side == BookSideBid {
		b.Bids = levels
	} else {
		b.Asks = levels
	}
}

// BestBid returns the highest bid, if any.
func (b *OrderBook) BestBid() (OrderBookLevel, bool) {
	if len(b.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (b *OrderBook) BestAsk() (OrderBookLevel, bool) {
	if len(b.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return b.Asks[0], true
}

func upsertLevel(levels []OrderBookLevel, price, size float64) []OrderBookLevel {
	for i := range levels {
		if levels[i].Price == price {
			levels[i].Size = size
			return levels
		}
	}
	return append(levels, OrderBookLevel{Price: price, Size: size})
}

func removeLevel(levels []OrderBookLevel, price float64) []OrderBookLevel {
	for i := range levels {
		if levels[i].Price == price {
			return append(levels[:i], levels[i+1:]...)
		}
	}
	return levels
}

// OrderBookSnapshot is the persisted view of a book at one point in time,
// plus the derived mid price and spread in basis points.
type OrderBookSnapshot struct {
	ID         uuid.UUID        `json:"id"`
	Venue      string           `json:"venue"`
	Symbol     string           `json:"symbol"`
	Bids       []OrderBookLevel `json:"bids"`
	Asks       []OrderBookLevel `json:"asks"`
	MidPrice   float64          `json:"mid_price"`
	SpreadBps  float64          `json:"spread_bps"`
	SnapshotAt time.Time        `json:"snapshot_at"`
}

// Snapshot captures the current book state. It returns false when either
// side is empty, in which case no meaningful mid or spread exists.
func (b *OrderBook) Snapshot(venue string, at time.Time) (OrderBookSnapshot, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return OrderBookSnapshot{}, false
	}

	mid := (bid.Price + ask.Price) / 2
	var spreadBps float64
	if mid != 0 {
		spreadBps = (ask.Price - bid.Price) / mid * 10000
	}

	bids := make([]OrderBookLevel, len(b.Bids))
	copy(bids, b.Bids)
	asks := make([]OrderBookLevel, len(b.Asks))
	copy(asks, b.Asks)

	return OrderBookSnapshot{
		ID:         SnapshotUID(venue, b.Symbol, at),
		Venue:      venue,
		Symbol:     b.Symbol,
		Bids:       bids,
		Asks:       asks,
		MidPrice:   mid,
		SpreadBps:  spreadBps,
		SnapshotAt: at,
	}, true
}

// SnapshotUID derives the stable identity for a snapshot instant.
func SnapshotUID(venue, symbol string, at time.Time) uuid.UUID {
	key := fmt.Sprintf("snapshot:%s:%s:%d", venue, symbol, at.Unix())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}
