package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookUpdate(side marketdata.BookSide, price, size float64) marketdata.RawBookUpdate {
	return marketdata.RawBookUpdate{Symbol: "BTCUSDT", Side: side, Price: price, Size: size}
}

func TestOrderBookMaintainerAppliesUpdates(t *testing.T) {
	repo := &fakeRepo{}
	m := NewOrderBookMaintainer("coinruler", 5, time.Minute, repo, nil, testLogger())

	m.Apply(context.Background(), bookUpdate(marketdata.BookSideBid, 99, 2))
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideAsk, 101, 3))

	book, ok := m.Book("BTCUSDT")
	require.True(t, ok)
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 99.0, bid.Price)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 101.0, ask.Price)
}

func TestOrderBookMaintainerSnapshotThrottle(t *testing.T) {
	repo := &fakeRepo{}
	m := NewOrderBookMaintainer("coinruler", 5, time.Minute, repo, nil, testLogger())

	clock := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	// one-sided book: no snapshot yet
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideBid, 99, 2))
	assert.Empty(t, repo.snapshots)

	// both sides present: first snapshot lands
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideAsk, 101, 3))
	require.Len(t, repo.snapshots, 1)
	assert.Equal(t, 100.0, repo.snapshots[0].MidPrice)

	// inside the throttle window nothing new is written
	clock = clock.Add(30 * time.Second)
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideBid, 100, 1))
	assert.Len(t, repo.snapshots, 1)

	// once the window passes the next update snapshots again
	clock = clock.Add(31 * time.Second)
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideAsk, 102, 1))
	require.Len(t, repo.snapshots, 2)
	assert.Equal(t, repo.snapshots[1].SnapshotAt, clock)
}

func TestOrderBookMaintainerThrottlePerSymbol(t *testing.T) {
	repo := &fakeRepo{}
	m := NewOrderBookMaintainer("coinruler", 5, time.Minute, repo, nil, testLogger())
	clock := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.Apply(context.Background(), bookUpdate(marketdata.BookSideBid, 99, 2))
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideAsk, 101, 3))
	require.Len(t, repo.snapshots, 1)

	// a different instrument is not throttled by the first one
	eth := marketdata.RawBookUpdate{Symbol: "ETHUSDT", Side: marketdata.BookSideBid, Price: 2000, Size: 1}
	m.Apply(context.Background(), eth)
	eth.Side = marketdata.BookSideAsk
	eth.Price = 2001
	m.Apply(context.Background(), eth)
	require.Len(t, repo.snapshots, 2)
	assert.Equal(t, "ETHUSDT", repo.snapshots[1].Symbol)
}

func TestOrderBookMaintainerRetriesAfterStorageError(t *testing.T) {
	repo := &fakeRepo{snapshotErr: errors.New("db down")}
	m := NewOrderBookMaintainer("coinruler", 5, time.Minute, repo, nil, testLogger())
	clock := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.Apply(context.Background(), bookUpdate(marketdata.BookSideBid, 99, 2))
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideAsk, 101, 3))
	assert.Empty(t, repo.snapshots)

	// the failed write must not start a throttle window
	repo.snapshotErr = nil
	m.Apply(context.Background(), bookUpdate(marketdata.BookSideBid, 100, 1))
	assert.Len(t, repo.snapshots, 1)
}
