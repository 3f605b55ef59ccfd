package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/walletd/marketsync/internal/cache"
	"github.com/walletd/marketsync/internal/models"
	"github.com/walletd/marketsync/internal/provider"
)

const (
	historyInterval = 30 * time.Minute
	historyTimeout  = 15 * time.Second

	// defaultHistoryCurrency is the series served when the requested
	// currency has no series of its own.
	defaultHistoryCurrency = "USD"
)

// ChartSource is the slice of the provider the history synchronizer needs.
type ChartSource interface {
	FetchMarketChart(ctx context.Context, vsCurrency string, days int) ([]provider.ChartPoint, error)
}

// HistoryState is the published read surface of the history synchronizer.
type HistoryState struct {
	// Series is nil until the first publish (real or fallback).
	Series models.HistorySet

	Loading bool
	Err     string

	// LastUpdated is zero while only fallback data has been published,
	// so the next cycle still counts as stale and retries.
	LastUpdated time.Time
}

// HistorySync maintains the per-currency daily price history. One fetch
// cycle fans out one call per tracked currency and joins all-or-nothing:
// a partial result set is never published.
type HistorySync struct {
	source     ChartSource
	store      cache.Store
	logger     *slog.Logger
	pub        Publisher
	now        func() time.Time
	currencies []string
	days       int
	interval   time.Duration
	timeout    time.Duration

	mu          sync.Mutex
	inFlight    bool
	loading     bool
	series      models.HistorySet
	lastErr     string
	lastUpdated time.Time
}

func NewHistorySync(source ChartSource, store cache.Store, days int, logger *slog.Logger, pub Publisher) *HistorySync {
	return &HistorySync{
		source:     source,
		store:      store,
		logger:     logger.With("sync", "history"),
		pub:        pub,
		now:        time.Now,
		currencies: models.CurrencyCodes,
		days:       days,
		interval:   historyInterval,
		timeout:    historyTimeout,
	}
}

// State returns a copy of the published state.
func (s *HistorySync) State() HistoryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return HistoryState{
		Series:      s.seriesCopy(),
		Loading:     s.loading,
		Err:         s.lastErr,
		LastUpdated: s.lastUpdated,
	}
}

// HistoryFor returns the series for a currency, falling back to the
// default (USD) series, then nil. Never panics.
func (s *HistorySync) HistoryFor(code string) []models.HistoryPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.series == nil {
		return nil
	}
	if pts, ok := s.series[strings.ToUpper(code)]; ok {
		return append([]models.HistoryPoint(nil), pts...)
	}
	if pts, ok := s.series[defaultHistoryCurrency]; ok {
		return append([]models.HistoryPoint(nil), pts...)
	}
	return nil
}

// Refresh performs one fan-out fetch cycle across all tracked
// currencies. The WaitGroup join is the only synchronization barrier:
// no early exit, no cancellation of sibling calls on first failure.
func (s *HistorySync) Refresh(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("Refresh skipped, fetch cycle already in flight")
		return
	}
	s.inFlight = true
	s.loading = true
	s.mu.Unlock()

	results := make(models.HistorySet, len(s.currencies))
	var firstErr error
	var resMu sync.Mutex
	var wg sync.WaitGroup

	for _, code := range s.currencies {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()

			fctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			points, err := s.source.FetchMarketChart(fctx, strings.ToLower(code), s.days)

			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", code, err)
				}
				return
			}
			results[code] = toHistoryPoints(points)
		}(code)
	}
	wg.Wait()

	now := s.now()

	s.mu.Lock()
	s.inFlight = false
	s.loading = false

	if firstErr != nil {
		s.lastErr = firstErr.Error()
		if s.series == nil {
			// Total outage with no prior data: synthesize a series per
			// currency so the UI has something to draw. Not cached and
			// not stamped, so the next cycle retries for real data.
			fb := make(models.HistorySet, len(s.currencies))
			for _, code := range s.currencies {
				fb[code] = FallbackHistory(fallbackBasePrice, now)
			}
			s.series = fb
		}
		s.mu.Unlock()
		s.logger.Warn("History refresh failed, cycle discarded", "error", firstErr)
		return
	}

	s.series = results
	s.lastErr = ""
	s.lastUpdated = now
	snap := models.HistorySnapshot{Series: s.seriesCopy(), LastUpdated: now}
	st := HistoryState{Series: snap.Series, LastUpdated: now}
	s.mu.Unlock()

	if err := s.store.Save(ctx, models.CacheHistory, snap); err != nil {
		s.logger.Warn("Failed to persist history cache", "error", err)
	}
	if s.pub != nil {
		s.pub.Publish("history", st)
	}
	s.logger.Debug("Price history updated", "currencies", len(results))
}

func (s *HistorySync) seriesCopy() models.HistorySet {
	if s.series == nil {
		return nil
	}
	out := make(models.HistorySet, len(s.series))
	for code, pts := range s.series {
		out[code] = append([]models.HistoryPoint(nil), pts...)
	}
	return out
}

// bootstrap seeds memory from the cache, then refreshes immediately if
// the cached set is older than the history TTL.
func (s *HistorySync) bootstrap(ctx context.Context) {
	rec, err := s.store.Load(ctx, models.CacheHistory)
	if err == nil {
		var snap models.HistorySnapshot
		if jsonErr := json.Unmarshal(rec.Payload, &snap); jsonErr == nil && snap.Series != nil {
			s.mu.Lock()
			s.series = snap.Series
			s.lastUpdated = rec.Timestamp
			s.mu.Unlock()
			s.logger.Info("Loaded price history from cache", "age", s.now().Sub(rec.Timestamp).String())
		}
	}

	s.mu.Lock()
	stale := cache.IsStale(s.lastUpdated, s.now(), cache.HistoryTTL)
	s.mu.Unlock()
	if stale {
		s.Refresh(ctx)
	}
}

// Run drives the synchronizer until ctx is cancelled.
func (s *HistorySync) Run(ctx context.Context, events <-chan Event) {
	s.bootstrap(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("History synchronizer stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		case ev := <-events:
			s.onVisibility(ctx, ev)
		}
	}
}

// onVisibility refetches on a foreground transition, but only when the
// published set is older than the history TTL. Background transitions
// are ignored.
func (s *HistorySync) onVisibility(ctx context.Context, ev Event) {
	if ev != Foreground {
		return
	}
	s.mu.Lock()
	stale := cache.IsStale(s.lastUpdated, s.now(), cache.HistoryTTL)
	s.mu.Unlock()
	if stale {
		s.Refresh(ctx)
	}
}

// toHistoryPoints maps provider chart pairs to display-ready points.
func toHistoryPoints(points []provider.ChartPoint) []models.HistoryPoint {
	out := make([]models.HistoryPoint, 0, len(points))
	for _, p := range points {
		ts := time.UnixMilli(p.TimestampMS).UTC()
		out = append(out, models.HistoryPoint{
			Timestamp: p.TimestampMS,
			Price:     int64(math.Round(p.Price)),
			Label:     ts.Format("Jan 2"),
		})
	}
	return out
}
