package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookOrderingAndDepth(t *testing.T) {
	book := NewOrderBook("BTCUSDT", 3)

	book.ApplyLevel(BookSideBid, 99, 1)
	book.ApplyLevel(BookSideBid, 101, 1)
	book.ApplyLevel(BookSideBid, 100, 1)
	book.ApplyLevel(BookSideAsk, 104, 1)
	book.ApplyLevel(BookSideAsk, 102, 1)
	book.ApplyLevel(BookSideAsk, 103, 1)

	require.Len(t, book.Bids, 3)
	assert.Equal(t, []float64{101, 100, 99}, prices(book.Bids))
	require.Len(t, book.Asks, 3)
	assert.Equal(t, []float64{102, 103, 104}, prices(book.Asks))

	// one past the cap drops the worst level on each side
	book.ApplyLevel(BookSideBid, 102, 1)
	book.ApplyLevel(BookSideAsk, 101.5, 1)
	assert.Equal(t, []float64{102, 101, 100}, prices(book.Bids))
	assert.Equal(t, []float64{101.5, 102, 103}, prices(book.Asks))
}

func TestOrderBookUpsertAndRemove(t *testing.T) {
	book := NewOrderBook("BTCUSDT", 5)

	book.ApplyLevel(BookSideBid, 100, 1)
	book.ApplyLevel(BookSideBid, 100, 2.5)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, 2.5, book.Bids[0].Size)

	book.ApplyLevel(BookSideBid, 100, 0)
	assert.Empty(t, book.Bids)

	// removing an unknown price is a no-op
	book.ApplyLevel(BookSideAsk, 101, 1)
	book.ApplyLevel(BookSideAsk, 999, 0)
	assert.Len(t, book.Asks, 1)
}

func TestOrderBookBest(t *testing.T) {
	book := NewOrderBook("BTCUSDT", 5)

	_, ok := book.BestBid()
	assert.False(t, ok)
	_, ok = book.BestAsk()
	assert.False(t, ok)

	book.ApplyLevel(BookSideBid, 99, 1)
	book.ApplyLevel(BookSideBid, 100, 1)
	book.ApplyLevel(BookSideAsk, 101, 1)

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid.Price)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 101.0, ask.Price)
}

func TestOrderBookSnapshot(t *testing.T) {
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	book := NewOrderBook("BTCUSDT", 5)
	book.ApplyLevel(BookSideBid, 99, 2)
	book.ApplyLevel(BookSideAsk, 101, 3)

	snapshot, ok := book.Snapshot("coinruler", at)
	require.True(t, ok)

	assert.Equal(t, "coinruler", snapshot.Venue)
	assert.Equal(t, "BTCUSDT", snapshot.Symbol)
	assert.Equal(t, 100.0, snapshot.MidPrice)
	assert.InDelta(t, 200.0, snapshot.SpreadBps, 1e-9)
	assert.Equal(t, SnapshotUID("coinruler", "BTCUSDT", at), snapshot.ID)

	// the snapshot owns its level slices
	book.ApplyLevel(BookSideBid, 99, 0)
	require.Len(t, snapshot.Bids, 1)
	assert.Equal(t, 2.0, snapshot.Bids[0].Size)
}

func TestOrderBookSnapshotEmptySide(t *testing.T) {
	at := time.Now()
	book := NewOrderBook("BTCUSDT", 5)

	_, ok := book.Snapshot("coinruler", at)
	assert.False(t, ok)

	book.ApplyLevel(BookSideBid, 99, 1)
	_, ok = book.Snapshot("coinruler", at)
	assert.False(t, ok)

	book.ApplyLevel(BookSideAsk, 101, 1)
	_, ok = book.Snapshot("coinruler", at)
	assert.True(t, ok)
}

func prices(levels []OrderBookLevel) []float64 {
	out := make([]float64, len(levels))
	for i, level := range levels {
		out[i] = level.Price
	}
	return out
}
