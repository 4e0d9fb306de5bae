package feed

import (
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"battlecard-trader/internal/models"
)

// replayRow is one line of a replay file: symbol, price and an
// optional RFC3339 timestamp.
type replayRow struct {
	Symbol    string  `csv:"symbol"`
	Price     float64 `csv:"price"`
	Timestamp string  `csv:"timestamp"`
}

// LoadReplayTicks reads a CSV replay file into ticks, preserving row
// order. Rows without a parseable timestamp get the current time.
func LoadReplayTicks(path string) ([]models.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*replayRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, err
	}

	ticks := make([]models.Tick, 0, len(rows))
	for _, r := range rows {
		ts := time.Now()
		if r.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
				ts = parsed
			}
		}
		ticks = append(ticks, models.Tick{Symbol: r.Symbol, Price: r.Price, Timestamp: ts})
	}
	return ticks, nil
}
