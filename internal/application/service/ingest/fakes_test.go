package ingest

import (
	"context"
	"sync"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

type fakeRepo struct {
	mu        sync.Mutex
	trades    []marketdata.Trade
	candles   []marketdata.Candle
	snapshots []marketdata.OrderBookSnapshot

	tradeErr    error
	candleErr   error
	snapshotErr error
	duplicate   bool
}

func (r *fakeRepo) AddTrade(_ context.Context, trade *marketdata.Trade) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tradeErr != nil {
		return false, r.tradeErr
	}
	if r.duplicate {
		return false, nil
	}
	r.trades = append(r.trades, *trade)
	return true, nil
}

func (r *fakeRepo) UpsertCandle(_ context.Context, candle *marketdata.Candle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.candleErr != nil {
		return r.candleErr
	}
	r.candles = append(r.candles, *candle)
	return nil
}

func (r *fakeRepo) AddOrderBookSnapshot(_ context.Context, snapshot *marketdata.OrderBookSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshotErr != nil {
		return r.snapshotErr
	}
	r.snapshots = append(r.snapshots, *snapshot)
	return nil
}

func (r *fakeRepo) Close() {}

type published struct {
	subject string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{subject: subject, payload: payload})
	return nil
}

func (p *fakePublisher) bySubject(subject string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, event := range p.events {
		if event.subject == subject {
			out = append(out, event)
		}
	}
	return out
}

type fakeCache struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
}

func (c *fakeCache) SetLatestPrice(_ context.Context, venue, symbol string, price float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.prices == nil {
		c.prices = make(map[string]float64)
	}
	c.prices[venue+":"+symbol] = price
	return nil
}

type fakeHistory struct {
	trades map[string][]marketdata.RawTrade
	errs   map[string]error
	calls  []string
}

func (h *fakeHistory) RecentTrades(_ context.Context, symbol string) ([]marketdata.RawTrade, error) {
	h.calls = append(h.calls, symbol)
	if err := h.errs[symbol]; err != nil {
		return nil, err
	}
	return h.trades[symbol], nil
}

// scriptedStream replays a fixed sequence of connect and read outcomes.
type scriptedStream struct {
	connectErrs []error
	reads       []readResult

	connects   int
	subscribes int
	closes     int
	symbols    []string
	withBook   bool
}

type readResult struct {
	msg marketdata.StreamMessage
	err error
}

func (s *scriptedStream) Connect(context.Context) error {
	s.connects++
	if len(s.connectErrs) > 0 {
		err := s.connectErrs[0]
		s.connectErrs = s.connectErrs[1:]
		return err
	}
	return nil
}

func (s *scriptedStream) Subscribe(_ context.Context, symbols []string, includeBook bool) error {
	s.subscribes++
	s.symbols = symbols
	s.withBook = includeBook
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (marketdata.StreamMessage, error) {
	if len(s.reads) == 0 {
		// script exhausted: behave like a quiet socket until the session ends
		<-ctx.Done()
		return marketdata.StreamMessage{}, ctx.Err()
	}
	next := s.reads[0]
	s.reads = s.reads[1:]
	return next.msg, next.err
}

func (s *scriptedStream) Close() error {
	s.closes++
	return nil
}
