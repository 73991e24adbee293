package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MarkPriceEvent is one mark price update for a symbol
type MarkPriceEvent struct {
	Symbol          string
	MarkPrice       decimal.Decimal
	IndexPrice      decimal.Decimal
	FundingRate     decimal.Decimal
	NextFundingTime time.Time
	EventTime       time.Time
}

// Handler receives mark price events as they arrive
type Handler func(MarkPriceEvent)

// combinedMessage is the envelope of the combined stream endpoint
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// markPricePayload is the wire form of a markPriceUpdate event
type markPricePayload struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	IndexPrice      string `json:"i"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

// MarkPriceStream consumes the futures mark price stream for a set of
// symbols and invokes the handler for each update
type MarkPriceStream struct {
	url     string
	handler Handler
	logger  zerolog.Logger

	handshakeTimeout  time.Duration
	readTimeout       time.Duration
	reconnectInterval time.Duration
	maxReconnects     int
}

// Option configures stream behavior
type Option func(*MarkPriceStream)

// WithHandshakeTimeout sets the dial handshake timeout
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(s *MarkPriceStream) {
		s.handshakeTimeout = timeout
	}
}

// WithReadTimeout sets the per-message read deadline
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *MarkPriceStream) {
		s.readTimeout = timeout
	}
}

// WithReconnectInterval sets the base reconnection backoff
func WithReconnectInterval(interval time.Duration) Option {
	return func(s *MarkPriceStream) {
		s.reconnectInterval = interval
	}
}

// WithMaxReconnects sets how many consecutive failed connections are
// tolerated before Run gives up
func WithMaxReconnects(attempts int) Option {
	return func(s *MarkPriceStream) {
		s.maxReconnects = attempts
	}
}

// NewMarkPriceStream creates a stream for the given symbols against the
// combined stream endpoint, e.g. wss://fstream.binance.com
func NewMarkPriceStream(wsBaseURL string, symbols []string, handler Handler, logger zerolog.Logger, opts ...Option) (*MarkPriceStream, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler required")
	}

	names := make([]string, len(symbols))
	for i, symbol := range symbols {
		names[i] = strings.ToLower(symbol) + "@markPrice@1s"
	}

	s := &MarkPriceStream{
		url:               strings.TrimSuffix(wsBaseURL, "/") + "/stream?streams=" + strings.Join(names, "/"),
		handler:           handler,
		logger:            logger,
		handshakeTimeout:  10 * time.Second,
		readTimeout:       90 * time.Second,
		reconnectInterval: 2 * time.Second,
		maxReconnects:     5,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// URL returns the combined stream URL
func (s *MarkPriceStream) URL() string {
	return s.url
}

// Run consumes the stream until the context is cancelled. Dropped
// connections are redialed with exponential backoff; a successful read
// resets the failure count.
func (s *MarkPriceStream) Run(ctx context.Context) error {
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.consume(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		if failures > s.maxReconnects {
			return fmt.Errorf("stream failed after %d reconnect attempts: %w", s.maxReconnects, err)
		}

		backoff := s.reconnectInterval * time.Duration(1<<uint(failures-1))
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}

		s.logger.Warn().
			Err(err).
			Int("attempt", failures).
			Dur("backoff", backoff).
			Msg("Stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// consume dials once and reads until the connection drops or the
// context is cancelled
func (s *MarkPriceStream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}
	defer conn.Close()

	// The server pings periodically; answering keeps the connection open
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	s.logger.Info().Str("url", s.url).Msg("Mark price stream connected")

	// Close the connection when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		event, err := parseMarkPrice(message)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unparseable stream message")
			continue
		}

		s.handler(event)
	}
}

func parseMarkPrice(message []byte) (MarkPriceEvent, error) {
	var envelope combinedMessage
	if err := json.Unmarshal(message, &envelope); err != nil {
		return MarkPriceEvent{}, fmt.Errorf("malformed stream envelope: %w", err)
	}

	payload := envelope.Data
	if payload == nil {
		// Raw stream endpoints deliver the event without an envelope
		payload = message
	}

	var raw markPricePayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return MarkPriceEvent{}, fmt.Errorf("malformed event payload: %w", err)
	}
	if raw.EventType != "markPriceUpdate" {
		return MarkPriceEvent{}, fmt.Errorf("unexpected event type %q", raw.EventType)
	}

	markPrice, err := decimal.NewFromString(raw.MarkPrice)
	if err != nil {
		return MarkPriceEvent{}, fmt.Errorf("invalid mark price %q: %w", raw.MarkPrice, err)
	}

	indexPrice, err := decimal.NewFromString(raw.IndexPrice)
	if err != nil {
		return MarkPriceEvent{}, fmt.Errorf("invalid index price %q: %w", raw.IndexPrice, err)
	}

	fundingRate, err := decimal.NewFromString(raw.FundingRate)
	if err != nil {
		return MarkPriceEvent{}, fmt.Errorf("invalid funding rate %q: %w", raw.FundingRate, err)
	}

	return MarkPriceEvent{
		Symbol:          raw.Symbol,
		MarkPrice:       markPrice,
		IndexPrice:      indexPrice,
		FundingRate:     fundingRate,
		NextFundingTime: time.UnixMilli(raw.NextFundingTime),
		EventTime:       time.UnixMilli(raw.EventTime),
	}, nil
}
