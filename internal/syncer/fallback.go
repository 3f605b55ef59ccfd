package syncer

import (
	"math"
	"math/rand"
	"time"

	"github.com/walletd/marketsync/internal/models"
)

const (
	// fallbackBasePrice anchors synthetic history when no real series
	// exists and every fetch failed. Placeholder only, never shown as
	// a real quote.
	fallbackBasePrice = 97000.0

	// fallbackJitterMax bounds the synthetic day-to-day variation.
	fallbackJitterMax = 4000.0

	fallbackDays = 7
)

// FallbackHistory produces a plausible-looking synthetic daily series:
// exactly 7 points from six days ago through today, strictly ascending
// timestamps, integer prices within ±fallbackJitterMax of base.
func FallbackHistory(base float64, now time.Time) []models.HistoryPoint {
	points := make([]models.HistoryPoint, 0, fallbackDays)
	for i := fallbackDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		jitter := (rand.Float64()*2 - 1) * fallbackJitterMax
		points = append(points, models.HistoryPoint{
			Timestamp: day.UnixMilli(),
			Price:     int64(math.Round(base + jitter)),
			Label:     day.UTC().Format("Jan 2"),
		})
	}
	return points
}
