package stream

import (
	"encoding/json"
	"testing"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedAdapterSubscribePayloads(t *testing.T) {
	adapter := NewFeedAdapter()

	payloads, err := adapter.SubscribePayloads([]string{"BTCUSDT", "ETHUSDT"}, false)
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	var req subscribeRequest
	require.NoError(t, json.Unmarshal(payloads[0], &req))
	assert.Equal(t, "subscribe", req.Op)
	assert.Equal(t, "trades", req.Channel)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, req.Symbols)

	payloads, err = adapter.SubscribePayloads([]string{"BTCUSDT"}, true)
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	require.NoError(t, json.Unmarshal(payloads[1], &req))
	assert.Equal(t, "book", req.Channel)
}

func TestFeedAdapterDecodeTrade(t *testing.T) {
	adapter := NewFeedAdapter()

	frame := []byte(`{"type":"trade","trade_id":"42","symbol":"BTCUSDT","price":50000.5,"size":0.25,"side":"buy","ts":1741617000000}`)
	msg, err := adapter.Decode(frame)
	require.NoError(t, err)
	require.NotNil(t, msg.Trade)
	assert.Nil(t, msg.Book)

	assert.Equal(t, "42", msg.Trade.TradeID)
	assert.Equal(t, "BTCUSDT", msg.Trade.Symbol)
	assert.Equal(t, 50000.5, msg.Trade.Price)
	assert.Equal(t, 0.25, msg.Trade.Size)
	assert.Equal(t, marketdata.TradeSideBuy, msg.Trade.Side)
	assert.Equal(t, time.UnixMilli(1741617000000).UTC(), msg.Trade.OccurredAt)
}

func TestFeedAdapterDecodeBook(t *testing.T) {
	adapter := NewFeedAdapter()

	frame := []byte(`{"type":"book","symbol":"BTCUSDT","price":49999,"size":0,"side":"bid"}`)
	msg, err := adapter.Decode(frame)
	require.NoError(t, err)
	require.NotNil(t, msg.Book)
	assert.Nil(t, msg.Trade)

	assert.Equal(t, marketdata.BookSideBid, msg.Book.Side)
	assert.Equal(t, 49999.0, msg.Book.Price)
	assert.Zero(t, msg.Book.Size)
}

func TestFeedAdapterDecodeMalformed(t *testing.T) {
	adapter := NewFeedAdapter()

	tests := []struct {
		name  string
		frame string
	}{
		{name: "not json", frame: `{{{`},
		{name: "unknown type", frame: `{"type":"heartbeat"}`},
		{name: "trade without id", frame: `{"type":"trade","symbol":"BTCUSDT","side":"buy"}`},
		{name: "trade without symbol", frame: `{"type":"trade","trade_id":"1","side":"buy"}`},
		{name: "trade with bad side", frame: `{"type":"trade","trade_id":"1","symbol":"BTCUSDT","side":"hold"}`},
		{name: "book without symbol", frame: `{"type":"book","side":"bid"}`},
		{name: "book with bad side", frame: `{"type":"book","symbol":"BTCUSDT","side":"middle"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.Decode([]byte(tt.frame))
			assert.ErrorIs(t, err, interfaces.ErrMalformedMessage)
		})
	}
}
