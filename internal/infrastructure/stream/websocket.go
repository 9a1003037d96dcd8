package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Adapter turns venue wire frames into normalized messages and builds the
// venue's subscribe payloads. Wire formats vary per venue; the engine never
// sees them.
type Adapter interface {
	SubscribePayloads(symbols []string, includeBook bool) ([][]byte, error)
	Decode(frame []byte) (marketdata.StreamMessage, error)
}

// Options configures one venue streaming session.
type Options struct {
	PrimaryURL   string
	FallbackURLs []string
	// ReadTimeout is the heartbeat window: when positive and no frame
	// arrives within it, the read fails and forces a reconnect cycle. A
	// silently stalled connection is otherwise indistinguishable from a
	// healthy idle one.
	ReadTimeout time.Duration
	DialTimeout time.Duration
}

// WebSocketStream is a VenueStream over a gorilla/websocket connection.
type WebSocketStream struct {
	opts    Options
	adapter Adapter
	logger  *logrus.Entry

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketStream builds a stream for the venue's URLs.
func NewWebSocketStream(adapter Adapter, opts Options, logger *logrus.Entry) (*WebSocketStream, error) {
	if adapter == nil {
		return nil, errors.New("stream adapter is required")
	}
	if opts.PrimaryURL == "" {
		return nil, errors.New("primary url is required")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	return &WebSocketStream{opts: opts, adapter: adapter, logger: logger}, nil
}

// Connect dials the primary URL first, then each fallback in order. It fails
// only when every URL fails.
func (s *WebSocketStream) Connect(ctx context.Context) error {
	urls := append([]string{s.opts.PrimaryURL}, s.opts.FallbackURLs...)

	var lastErr error
	for _, url := range urls {
		dialCtx, cancel := context.WithTimeout(ctx, s.opts.DialTimeout)
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", url, err)
			s.logger.WithError(err).WithField("url", url).Warn("dial failed")
			continue
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.logger.WithField("url", url).Info("stream connected")
		return nil
	}
	return fmt.Errorf("all stream urls failed: %w", lastErr)
}

// Subscribe sends the venue's subscribe payloads for the watched symbols.
func (s *WebSocketStream) Subscribe(ctx context.Context, symbols []string, includeBook bool) error {
	conn := s.current()
	if conn == nil {
		return errors.New("stream is not connected")
	}
	payloads, err := s.adapter.SubscribePayloads(symbols, includeBook)
	if err != nil {
		return fmt.Errorf("build subscribe payloads: %w", err)
	}
	for _, payload := range payloads {
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetWriteDeadline(deadline)
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return fmt.Errorf("send subscribe: %w", err)
		}
	}
	return nil
}

// Read blocks for the next frame and decodes it. Adapter decode failures are
// returned wrapped in the malformed-message sentinel; transport failures are
// returned as-is and end the session. A cancelled context interrupts the
// read even when the socket stays silently healthy, so the session cap and
// the stop signal always get through.
func (s *WebSocketStream) Read(ctx context.Context) (marketdata.StreamMessage, error) {
	conn := s.current()
	if conn == nil {
		return marketdata.StreamMessage{}, errors.New("stream is not connected")
	}
	if err := ctx.Err(); err != nil {
		return marketdata.StreamMessage{}, err
	}
	if s.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	} else if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	readDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readDone:
		}
	}()

	_, frame, err := conn.ReadMessage()
	close(readDone)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return marketdata.StreamMessage{}, ctxErr
		}
		return marketdata.StreamMessage{}, err
	}
	return s.adapter.Decode(frame)
}

// Close shuts the connection down.
func (s *WebSocketStream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (s *WebSocketStream) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
