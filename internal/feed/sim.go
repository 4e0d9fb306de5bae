package feed

import (
	"context"
	"sync"
	"time"

	"battlecard-trader/internal/models"
)

// SimFeed is a scripted PriceFeed for tests and replay runs. Ticks are
// delivered synchronously from Push, preserving per-symbol order the
// same way a live feed would.
type SimFeed struct {
	mu         sync.Mutex
	subscribed map[string]struct{}
	connected  bool

	onTick  func(models.Tick)
	onError func(error)
}

// NewSimFeed creates an empty simulated feed.
func NewSimFeed() *SimFeed {
	return &SimFeed{subscribed: make(map[string]struct{})}
}

// Connect marks the feed connected.
func (f *SimFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

// Disconnect marks the feed disconnected.
func (f *SimFeed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

// Subscribe records the symbols as subscribed.
func (f *SimFeed) Subscribe(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		f.subscribed[s] = struct{}{}
	}
	return nil
}

// Unsubscribe removes the symbols.
func (f *SimFeed) Unsubscribe(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		delete(f.subscribed, s)
	}
	return nil
}

// OnTick registers the tick handler.
func (f *SimFeed) OnTick(handler func(models.Tick)) {
	f.onTick = handler
}

// OnError registers the error handler.
func (f *SimFeed) OnError(handler func(error)) {
	f.onError = handler
}

// Subscribed reports whether a symbol is currently subscribed.
func (f *SimFeed) Subscribed(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subscribed[symbol]
	return ok
}

// Push delivers a tick to the handler if its symbol is subscribed.
func (f *SimFeed) Push(tick models.Tick) {
	f.mu.Lock()
	_, ok := f.subscribed[tick.Symbol]
	handler := f.onTick
	f.mu.Unlock()

	if ok && handler != nil {
		handler(tick)
	}
}

// PushPrice is a shorthand for pushing a plain price tick.
func (f *SimFeed) PushPrice(symbol string, price float64) {
	f.Push(models.Tick{Symbol: symbol, Price: price, Timestamp: time.Now()})
}

// Fail invokes the error handler, simulating a feed fault.
func (f *SimFeed) Fail(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}
