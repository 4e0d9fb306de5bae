package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "battlecard-trader/internal/errors"
	"battlecard-trader/internal/models"
)

// WSFeedConfig holds configuration for the websocket feed.
type WSFeedConfig struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReadTimeout       time.Duration
}

// WSFeed implements PriceFeed over a Binance-style combined websocket
// stream using miniTicker events.
type WSFeed struct {
	cfg  WSFeedConfig
	conn *websocket.Conn

	onTick  func(models.Tick)
	onError func(error)

	mu         sync.Mutex
	writeMu    sync.Mutex // serializes websocket writes
	subscribed map[string]struct{}
	connected  bool
	reqID      int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSFeed creates a websocket price feed.
func NewWSFeed(cfg WSFeedConfig) *WSFeed {
	if cfg.ReconnectAttempts == 0 {
		cfg.ReconnectAttempts = 5
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	return &WSFeed{
		cfg:        cfg,
		subscribed: make(map[string]struct{}),
	}
}

// OnTick registers the tick handler.
func (f *WSFeed) OnTick(handler func(models.Tick)) {
	f.onTick = handler
}

// OnError registers the error handler.
func (f *WSFeed) OnError(handler func(error)) {
	f.onError = handler
}

// Connect dials the stream endpoint and starts the read pump.
func (f *WSFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		return nil
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})
	f.mu.Unlock()

	if err := f.dial(); err != nil {
		return apperrors.NewFeedError("connect", "", "dial failed", err)
	}

	go f.readPump()
	return nil
}

func (f *WSFeed) dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.cfg.URL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()
	return nil
}

// Disconnect closes the connection and stops the read pump.
func (f *WSFeed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return nil
	}
	f.connected = false
	if f.cancel != nil {
		f.cancel()
	}
	if f.conn != nil {
		f.conn.Close()
	}
	return nil
}

// Subscribe subscribes to miniTicker streams for the given symbols.
func (f *WSFeed) Subscribe(symbols []string) error {
	f.mu.Lock()
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		f.subscribed[s] = struct{}{}
		params = append(params, streamName(s))
	}
	f.mu.Unlock()

	return f.sendStreamRequest("SUBSCRIBE", params)
}

// Unsubscribe removes the streams for the given symbols. In-flight
// ticks already read off the socket are still delivered; the engine
// handles late ticks for dropped symbols by ignoring them.
func (f *WSFeed) Unsubscribe(symbols []string) error {
	f.mu.Lock()
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		delete(f.subscribed, s)
		params = append(params, streamName(s))
	}
	f.mu.Unlock()

	return f.sendStreamRequest("UNSUBSCRIBE", params)
}

func (f *WSFeed) sendStreamRequest(method string, params []string) error {
	if len(params) == 0 {
		return nil
	}

	f.mu.Lock()
	connected := f.connected
	conn := f.conn
	f.reqID++
	id := f.reqID
	f.mu.Unlock()

	if !connected || conn == nil {
		return apperrors.ErrFeedDisconnected
	}

	req := map[string]interface{}{
		"method": method,
		"params": params,
		"id":     id,
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return conn.WriteJSON(req)
}

func streamName(symbol string) string {
	return strings.ToLower(symbol) + "@miniTicker"
}

// miniTickerEvent is the Binance 24hr mini ticker payload.
type miniTickerEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
}

// readPump reads messages until the connection drops, then tries to
// reconnect with backoff and resubscribe.
func (f *WSFeed) readPump() {
	defer close(f.done)

	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.ctx.Done():
				return
			default:
			}

			if f.onError != nil {
				f.onError(apperrors.NewFeedError("read", "", "stream read failed", err))
			}

			if !f.reconnect() {
				return
			}
			continue
		}

		f.handleMessage(raw)
	}
}

func (f *WSFeed) handleMessage(raw []byte) {
	var event miniTickerEvent
	if err := json.Unmarshal(raw, &event); err != nil || event.Symbol == "" {
		// Subscription acks and unknown frames are ignored.
		return
	}

	price, err := strconv.ParseFloat(event.Close, 64)
	if err != nil {
		if f.onError != nil {
			f.onError(apperrors.NewFeedError("parse", event.Symbol, "bad price "+event.Close, err))
		}
		return
	}

	open, _ := strconv.ParseFloat(event.Open, 64)
	var change float64
	if open > 0 {
		change = (price - open) / open * 100
	}

	tick := models.Tick{
		Symbol:        event.Symbol,
		Price:         price,
		ChangePercent: change,
		Timestamp:     time.UnixMilli(event.EventTime),
	}

	if f.onTick != nil {
		f.onTick(tick)
	}
}

// reconnect re-dials with exponential backoff and resubscribes the
// current symbol set. Returns false once attempts are exhausted.
func (f *WSFeed) reconnect() bool {
	f.mu.Lock()
	f.connected = false
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()

	delay := f.cfg.ReconnectDelay
	for attempt := 0; attempt < f.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-f.ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := f.dial(); err != nil {
			if f.onError != nil {
				f.onError(apperrors.NewFeedError("reconnect", "", "dial failed", err))
			}
			delay *= 2
			continue
		}

		f.resubscribe()
		return true
	}

	if f.onError != nil {
		f.onError(apperrors.ErrFeedDisconnected)
	}
	return false
}

func (f *WSFeed) resubscribe() {
	f.mu.Lock()
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.mu.Unlock()

	if len(symbols) > 0 {
		f.Subscribe(symbols)
	}
}
