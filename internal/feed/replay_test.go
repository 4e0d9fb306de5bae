package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeReplayFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing replay file: %v", err)
	}
	return path
}

func TestLoadReplayTicks(t *testing.T) {
	path := writeReplayFile(t, `symbol,price,timestamp
BTCUSDT,104.5,2026-01-02T15:04:05Z
BTCUSDT,106.0,
ETHUSDT,2000,not-a-time
`)

	ticks, err := LoadReplayTicks(path)
	if err != nil {
		t.Fatalf("LoadReplayTicks() error: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("got %d ticks, want 3", len(ticks))
	}

	if ticks[0].Symbol != "BTCUSDT" || ticks[0].Price != 104.5 {
		t.Errorf("unexpected first tick: %+v", ticks[0])
	}
	want := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	if !ticks[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ticks[0].Timestamp, want)
	}

	// Missing or unparseable timestamps fall back to now.
	for _, i := range []int{1, 2} {
		if ticks[i].Timestamp.IsZero() {
			t.Errorf("tick %d has zero timestamp", i)
		}
	}
	if ticks[1].Price != 106.0 || ticks[2].Symbol != "ETHUSDT" {
		t.Errorf("unexpected ticks: %+v, %+v", ticks[1], ticks[2])
	}
}

func TestLoadReplayTicksMissingFile(t *testing.T) {
	if _, err := LoadReplayTicks(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("missing file should error")
	}
}
