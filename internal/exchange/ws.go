package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultWSURL is the Hyperliquid mainnet websocket feed.
	DefaultWSURL = "wss://api.hyperliquid.xyz/ws"

	wsPingInterval = 50 * time.Second
	wsReadDeadline = 70 * time.Second
)

// FillHandler receives fills pushed over the websocket. isSnapshot is
// true for the initial history replay sent right after subscribing.
type FillHandler func(fills []FillRecord, isSnapshot bool)

// FillStream maintains a userFills websocket subscription for one
// wallet, reconnecting and resubscribing on any transport failure.
type FillStream struct {
	url    string
	user   string
	logger *zap.Logger

	// OnReconnect, when set, is called before each reconnect attempt.
	OnReconnect func()
}

// NewFillStream creates a fill stream for the given wallet address.
func NewFillStream(url, user string, logger *zap.Logger) *FillStream {
	return &FillStream{url: url, user: user, logger: logger}
}

type wsSubscribeMsg struct {
	Method       string         `json:"method"`
	Subscription wsSubscription `json:"subscription"`
}

type wsSubscription struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type wsEnvelope struct {
	Channel string              `json:"channel"`
	Data    jsoniter.RawMessage `json:"data"`
}

type wsFillsPayload struct {
	User       string       `json:"user"`
	Fills      []FillRecord `json:"fills"`
	IsSnapshot bool         `json:"isSnapshot"`
}

// Run blocks, delivering fills to handler until ctx is cancelled.
// Connection failures are retried with exponential backoff that
// resets after each successful connect.
func (s *FillStream) Run(ctx context.Context, handler FillHandler) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // retry forever, ctx is the only stop

	for {
		err := s.runConn(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := policy.NextBackOff()
		s.logger.Warn("fill stream disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", delay))
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runConn dials, subscribes, and reads until the connection dies.
func (s *FillStream) runConn(ctx context.Context, handler FillHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()

	sub := wsSubscribeMsg{
		Method:       "subscribe",
		Subscription: wsSubscription{Type: "userFills", User: s.user},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("fill stream subscribed", zap.String("user", s.user))

	// Close the connection when ctx is cancelled so ReadMessage
	// unblocks; also send periodic pings to keep the feed alive.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepAlive(pingCtx, conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			s.logger.Warn("undecodable websocket message", zap.Error(err))
			continue
		}
		if env.Channel != "userFills" {
			continue
		}

		var payload wsFillsPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			s.logger.Warn("undecodable fills payload", zap.Error(err))
			continue
		}
		if len(payload.Fills) > 0 {
			handler(payload.Fills, payload.IsSnapshot)
		}
	}
}

func (s *FillStream) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]string{"method": "ping"}); err != nil {
				conn.Close()
				return
			}
		}
	}
}
