package models

import (
	"math"
	"testing"
	"time"
)

func TestTickValid(t *testing.T) {
	tests := []struct {
		name string
		tick Tick
		want bool
	}{
		{"valid", Tick{Symbol: "BTCUSDT", Price: 100, Timestamp: time.Now()}, true},
		{"empty symbol", Tick{Price: 100}, false},
		{"zero price", Tick{Symbol: "BTCUSDT", Price: 0}, false},
		{"negative price", Tick{Symbol: "BTCUSDT", Price: -1}, false},
		{"nan price", Tick{Symbol: "BTCUSDT", Price: math.NaN()}, false},
		{"inf price", Tick{Symbol: "BTCUSDT", Price: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tick.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
