// Package feed provides price feed interfaces and implementations.
package feed

import (
	"context"

	"battlecard-trader/internal/models"
)

// PriceFeed defines the interface for real-time price streaming. The
// engine assumes per-symbol ordering from the feed; it makes no
// assumption about cross-symbol ordering or exactly-once delivery.
// Reconnect and backoff are the feed's responsibility — after any gap
// it simply delivers a fresh tick stream.
type PriceFeed interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Subscribe(symbols []string) error
	Unsubscribe(symbols []string) error
	OnTick(handler func(models.Tick))
	OnError(handler func(error))
}
