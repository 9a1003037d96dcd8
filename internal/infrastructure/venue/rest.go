package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 4 << 20
)

// HistoryClient polls a venue's REST trade-history endpoint. The endpoint is
// expected to serve the normalized feed shape: a JSON array of raw trades,
// optionally wrapped in a {"trades": [...]} envelope.
type HistoryClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Entry
}

// NewHistoryClient builds a client for the venue's history URL. The URL may
// contain a "{symbol}" placeholder; otherwise the symbol is appended as a
// query parameter.
func NewHistoryClient(baseURL string, timeout time.Duration, logger *logrus.Entry) (*HistoryClient, error) {
	if baseURL == "" {
		return nil, errors.New("history url is required")
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HistoryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// RecentTrades fetches the latest trades for one symbol.
func (c *HistoryClient) RecentTrades(ctx context.Context, symbol string) ([]marketdata.RawTrade, error) {
	endpoint, err := c.endpointFor(symbol)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request trade history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trade history returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read trade history: %w", err)
	}
	trades, skipped, err := decodeTrades(body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.WithFields(logrus.Fields{
			"symbol":  symbol,
			"skipped": skipped,
		}).Warn("dropped malformed trade history items")
	}
	return trades, nil
}

func (c *HistoryClient) endpointFor(symbol string) (string, error) {
	if symbol == "" {
		return "", errors.New("symbol is required")
	}
	if strings.Contains(c.baseURL, "{symbol}") {
		return strings.ReplaceAll(c.baseURL, "{symbol}", url.PathEscape(symbol)), nil
	}
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse history url: %w", err)
	}
	query := parsed.Query()
	query.Set("symbol", symbol)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// decodeTrades parses the response body and reports how many items were
// dropped for missing required fields.
func decodeTrades(body []byte) ([]marketdata.RawTrade, int, error) {
	type wireTrade struct {
		TradeID string  `json:"trade_id"`
		Symbol  string  `json:"symbol"`
		Price   float64 `json:"price"`
		Size    float64 `json:"size"`
		Side    string  `json:"side"`
		TsMs    int64   `json:"ts"`
	}

	var items []wireTrade
	if err := json.Unmarshal(body, &items); err != nil {
		var envelope struct {
			Trades []wireTrade `json:"trades"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, 0, fmt.Errorf("decode trade history: %w", err)
		}
		items = envelope.Trades
	}

	skipped := 0
	trades := make([]marketdata.RawTrade, 0, len(items))
	for _, item := range items {
		side := marketdata.TradeSide(strings.ToUpper(item.Side))
		if item.TradeID == "" || item.Symbol == "" || !side.IsValid() {
			skipped++
			continue
		}
		trades = append(trades, marketdata.RawTrade{
			TradeID:    item.TradeID,
			Symbol:     item.Symbol,
			Price:      item.Price,
			Size:       item.Size,
			Side:       side,
			OccurredAt: time.UnixMilli(item.TsMs).UTC(),
		})
	}
	return trades, skipped, nil
}
