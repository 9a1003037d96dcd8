package venue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestHistoryClientRecentTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"trade_id":"1","symbol":"BTCUSDT","price":50000,"size":0.5,"side":"buy","ts":1741617000000},
			{"trade_id":"2","symbol":"BTCUSDT","price":50100,"size":1.0,"side":"sell","ts":1741617001000}
		]`))
	}))
	defer server.Close()

	client, err := NewHistoryClient(server.URL, time.Second, testLogger())
	require.NoError(t, err)

	trades, err := client.RecentTrades(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "1", trades[0].TradeID)
	assert.Equal(t, marketdata.TradeSideBuy, trades[0].Side)
	assert.Equal(t, marketdata.TradeSideSell, trades[1].Side)
	assert.Equal(t, time.UnixMilli(1741617000000).UTC(), trades[0].OccurredAt)
}

func TestHistoryClientEnvelopeAndSkips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"trades":[
			{"trade_id":"1","symbol":"BTCUSDT","price":50000,"size":0.5,"side":"buy"},
			{"trade_id":"","symbol":"BTCUSDT","price":1,"size":1,"side":"buy"},
			{"trade_id":"3","symbol":"BTCUSDT","price":1,"size":1,"side":"hold"}
		]}`))
	}))
	defer server.Close()

	logger, hook := logtest.NewNullLogger()
	client, err := NewHistoryClient(server.URL, time.Second, logrus.NewEntry(logger))
	require.NoError(t, err)

	trades, err := client.RecentTrades(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "1", trades[0].TradeID)

	// dropped items surface in the log with a count, not silently
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "dropped malformed trade history items", entry.Message)
	assert.Equal(t, 2, entry.Data["skipped"])
	assert.Equal(t, "BTCUSDT", entry.Data["symbol"])
}

func TestHistoryClientNoSkipLogOnCleanBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"trade_id":"1","symbol":"BTCUSDT","price":1,"size":1,"side":"buy"}]`))
	}))
	defer server.Close()

	logger, hook := logtest.NewNullLogger()
	client, err := NewHistoryClient(server.URL, time.Second, logrus.NewEntry(logger))
	require.NoError(t, err)

	trades, err := client.RecentTrades(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Empty(t, hook.Entries)
}

func TestHistoryClientSymbolPlaceholder(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewHistoryClient(server.URL+"/history/{symbol}", time.Second, testLogger())
	require.NoError(t, err)

	_, err = client.RecentTrades(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "/history/BTCUSDT", gotPath)
}

func TestHistoryClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewHistoryClient(server.URL, time.Second, testLogger())
	require.NoError(t, err)

	_, err = client.RecentTrades(context.Background(), "BTCUSDT")
	assert.ErrorContains(t, err, "status 503")

	_, err = client.RecentTrades(context.Background(), "")
	assert.Error(t, err)

	_, err = NewHistoryClient("", time.Second, testLogger())
	assert.Error(t, err)
}

func TestHistoryClientBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client, err := NewHistoryClient(server.URL, time.Second, testLogger())
	require.NoError(t, err)

	_, err = client.RecentTrades(context.Background(), "BTCUSDT")
	assert.ErrorContains(t, err, "decode trade history")
}
