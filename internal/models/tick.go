package models

import (
	"math"
	"time"
)

// Tick is a single validated price update from the feed. Ticks are
// ephemeral; the engine only ever keeps the last price it saw per
// symbol.
type Tick struct {
	Symbol        string
	Price         float64
	ChangePercent float64 // 24h change
	Timestamp     time.Time
}

// Valid reports whether the tick carries a usable price. Malformed
// ticks are dropped by the monitor and do not advance the previous
// price for their symbol.
func (t Tick) Valid() bool {
	if t.Symbol == "" {
		return false
	}
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return false
	}
	return true
}
