// Package syncer implements the refresh scheduling and caching
// discipline for the three market-data synchronizers. Each synchronizer
// exclusively owns its in-memory state and its cache entry; consumers
// only ever read published state. Provider failures degrade to the last
// known-good payload, cached data, or synthetic fallback data - never
// to an error propagated to the caller.
package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/walletd/marketsync/internal/cache"
	"github.com/walletd/marketsync/internal/models"
	"github.com/walletd/marketsync/internal/provider"
)

const (
	priceInterval = 30 * time.Second
	priceTimeout  = 10 * time.Second
)

// SpotPriceSource is the slice of the provider the price synchronizer needs.
type SpotPriceSource interface {
	FetchSpotPrice(ctx context.Context) (*provider.SpotPrice, error)
}

// PriceState is the published read surface of the price synchronizer.
type PriceState struct {
	// Snapshot is the latest valid payload, nil only before the first
	// completion of any kind.
	Snapshot *models.PriceSnapshot

	// Loading is true only while a fetch is in flight.
	Loading bool

	// Err is the last fetch failure, empty after a success. It may
	// coexist with a (stale) Snapshot.
	Err string

	// LastUpdated is when the snapshot was last replaced from a
	// successful fetch or cache load.
	LastUpdated time.Time
}

// PriceSync maintains the BTC/USD spot price and 24h change.
type PriceSync struct {
	source   SpotPriceSource
	store    cache.Store
	logger   *slog.Logger
	pub      Publisher
	now      func() time.Time
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	inFlight    bool
	loading     bool
	snapshot    *models.PriceSnapshot
	lastErr     string
	lastUpdated time.Time
}

func NewPriceSync(source SpotPriceSource, store cache.Store, logger *slog.Logger, pub Publisher) *PriceSync {
	return &PriceSync{
		source:   source,
		store:    store,
		logger:   logger.With("sync", "price"),
		pub:      pub,
		now:      time.Now,
		interval: priceInterval,
		timeout:  priceTimeout,
	}
}

// State returns a copy of the published state.
func (s *PriceSync) State() PriceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := PriceState{
		Loading:     s.loading,
		Err:         s.lastErr,
		LastUpdated: s.lastUpdated,
	}
	if s.snapshot != nil {
		snap := *s.snapshot
		st.Snapshot = &snap
	}
	return st
}

// Refresh performs one fetch cycle. Safe to call repeatedly; a call
// while a previous fetch is outstanding is a no-op (in-flight guard),
// so completion handlers for this synchronizer never interleave.
func (s *PriceSync) Refresh(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("Refresh skipped, fetch already in flight")
		return
	}
	s.inFlight = true
	s.loading = true
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	spot, err := s.source.FetchSpotPrice(fctx)
	cancel()

	now := s.now()

	s.mu.Lock()
	s.inFlight = false
	s.loading = false

	if err != nil {
		s.lastErr = err.Error()
		if s.snapshot == nil {
			// Consumers always get a well-typed value, never absence.
			s.snapshot = &models.PriceSnapshot{LastUpdated: now}
		}
		s.mu.Unlock()
		s.logger.Warn("Spot price refresh failed, keeping previous value", "error", err)
		return
	}

	snap := &models.PriceSnapshot{
		Price:       spot.USD,
		Change24h:   spot.Change24h,
		LastUpdated: time.UnixMilli(spot.LastUpdatedAt * 1000),
	}
	s.snapshot = snap
	s.lastErr = ""
	s.lastUpdated = now
	st := PriceState{Snapshot: snap, LastUpdated: now}
	s.mu.Unlock()

	if err := s.store.Save(ctx, models.CachePrice, snap); err != nil {
		// Best-effort durability; the in-memory update stands.
		s.logger.Warn("Failed to persist price cache", "error", err)
	}
	if s.pub != nil {
		s.pub.Publish("price", st)
	}
	s.logger.Debug("Spot price updated", "price", snap.Price, "change_24h", snap.Change24h)
}

// bootstrap loads the cached snapshot if one exists; only a cache miss
// triggers a startup network call, the periodic timer enforces
// freshness from then on.
func (s *PriceSync) bootstrap(ctx context.Context) {
	rec, err := s.store.Load(ctx, models.CachePrice)
	if err == nil {
		var snap models.PriceSnapshot
		if jsonErr := json.Unmarshal(rec.Payload, &snap); jsonErr == nil {
			s.mu.Lock()
			s.snapshot = &snap
			s.lastUpdated = rec.Timestamp
			s.mu.Unlock()
			s.logger.Info("Loaded spot price from cache", "age", s.now().Sub(rec.Timestamp).String())
			return
		}
	}
	s.Refresh(ctx)
}

// Run drives the synchronizer until ctx is cancelled: cache bootstrap,
// then an unconditional refresh every interval, plus a staleness-gated
// refresh when the host regains foreground visibility.
func (s *PriceSync) Run(ctx context.Context, events <-chan Event) {
	s.bootstrap(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Price synchronizer stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		case ev := <-events:
			s.onVisibility(ctx, ev)
		}
	}
}

// onVisibility refetches on a foreground transition, but only when the
// published price is older than the foreground TTL. Background
// transitions are ignored.
func (s *PriceSync) onVisibility(ctx context.Context, ev Event) {
	if ev != Foreground {
		return
	}
	s.mu.Lock()
	stale := cache.IsStale(s.lastUpdated, s.now(), cache.PriceForegroundTTL)
	s.mu.Unlock()
	if stale {
		s.Refresh(ctx)
	}
}
