package marketdata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Candle represents an OHLCV aggregate over a fixed-width time bucket.
type Candle struct {
	ID              uuid.UUID `json:"id"`
	Venue           string    `json:"venue"`
	Symbol          string    `json:"symbol"`
	IntervalSeconds int64     `json:"interval_seconds"`
	PeriodStart     time.Time `json:"period_start"`
	Open            float64   `json:"open"`
	High            float64   `json:"high"`
	Low             float64   `json:"low"`
	Close           float64   `json:"close"`
	Volume          float64   `json:"volume"`
	TradeCount      int64     `json:"trade_count"`
}

// BucketStart truncates a trade time to the start of its interval bucket.
func BucketStart(at time.Time, intervalSeconds int64) time.Time {
	unix := at.Unix()
	start := (unix / intervalSeconds) * intervalSeconds
	return time.Unix(start, 0).UTC()
}

// NewCandle opens a bucket from its first trade.
func NewCandle(trade Trade, intervalSeconds int64) Candle {
	start := BucketStart(trade.TradedAt, intervalSeconds)
	return Candle{
		ID:              CandleUID(trade.Venue, trade.Symbol, intervalSeconds, start),
		Venue:           trade.Venue,
		Symbol:          trade.Symbol,
		IntervalSeconds: intervalSeconds,
		PeriodStart:     start,
		Open:            trade.Price,
		High:            trade.Price,
		Low:             trade.Price,
		Close:           trade.Price,
		Volume:          trade.Size,
		TradeCount:      1,
	}
}

// Apply folds a same-bucket trade into the candle.
func (c *Candle) Apply(trade Trade) {
	if trade.Price > c.High {
		c.High = trade.Price
	}
	if trade.Price < c.Low {
		c.Low = trade.Price
	}
	c.Close = trade.Price
	c.Volume += trade.Size
	c.TradeCount++
}

// Contains reports whether the trade time falls inside this candle's bucket.
func (c *Candle) Contains(at time.Time) bool {
	return BucketStart(at, c.IntervalSeconds).Equal(c.PeriodStart)
}

// CandleUID derives the stable identity for a venue/symbol/interval bucket.
func CandleUID(venue, symbol string, intervalSeconds int64, periodStart time.Time) uuid.UUID {
	key := fmt.Sprintf("candle:%s:%s:%d:%d", venue, symbol, intervalSeconds, periodStart.Unix())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}
