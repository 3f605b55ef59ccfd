package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/walletd/marketsync/internal/cache"
	"github.com/walletd/marketsync/internal/models"
	"github.com/walletd/marketsync/internal/provider"
)

const (
	ratesInterval = 90 * time.Second
	ratesTimeout  = 10 * time.Second
)

// floorCurrencies must all be present in a response for the payload to
// be accepted at all. Their absence means the provider returned
// something structurally successful but semantically broken.
var floorCurrencies = []string{"EUR", "GBP", "JPY"}

// RateSource is the slice of the provider the rate synchronizer needs.
type RateSource interface {
	FetchRates(ctx context.Context) (map[string]any, error)
}

// RateState is the published read surface of the rate synchronizer.
type RateState struct {
	// Rates always holds all seven tracked codes; hardcoded defaults
	// act as a floor until the first successful fetch.
	Rates map[string]float64

	Loading bool
	Err     string

	// LastUpdated is zero until the first fetch completes (success or
	// the default-stamping failure path).
	LastUpdated time.Time
}

// RatesSync maintains the fiat conversion-rate basket. Rates are not
// persisted to the cache store: they are cheap to refetch and the
// hardcoded defaults serve as the floor after a restart.
type RatesSync struct {
	source   RateSource
	logger   *slog.Logger
	pub      Publisher
	now      func() time.Time
	interval time.Duration
	timeout  time.Duration

	active atomic.Bool

	mu          sync.Mutex
	inFlight    bool
	loading     bool
	rates       map[string]float64
	lastErr     string
	fetched     bool
	lastUpdated time.Time
}

func NewRatesSync(source RateSource, logger *slog.Logger, pub Publisher) *RatesSync {
	return &RatesSync{
		source:   source,
		logger:   logger.With("sync", "rates"),
		pub:      pub,
		now:      time.Now,
		interval: ratesInterval,
		timeout:  ratesTimeout,
		rates:    models.DefaultRates(),
	}
}

// SetActive records whether the rate-sensitive view is current. The
// host sets this explicitly; the synchronizer never infers it.
func (s *RatesSync) SetActive(active bool) {
	s.active.Store(active)
}

func (s *RatesSync) Active() bool {
	return s.active.Load()
}

// State returns a copy of the published state.
func (s *RatesSync) State() RateState {
	s.mu.Lock()
	defer s.mu.Unlock()

	rates := make(map[string]float64, len(s.rates))
	for code, v := range s.rates {
		rates[code] = v
	}
	return RateState{
		Rates:       rates,
		Loading:     s.loading,
		Err:         s.lastErr,
		LastUpdated: s.lastUpdated,
	}
}

// Refresh performs one gated fetch cycle: a no-op while the view is
// inactive or the basket is still fresh.
func (s *RatesSync) Refresh(ctx context.Context, active bool) {
	s.refresh(ctx, active, false)
}

// ForceRefresh is the manual trigger. It skips only the freshness gate;
// the active flag and the in-flight guard still apply.
func (s *RatesSync) ForceRefresh(ctx context.Context, active bool) {
	s.refresh(ctx, active, true)
}

func (s *RatesSync) refresh(ctx context.Context, active, force bool) {
	if !active {
		s.logger.Debug("Rate refresh skipped, view inactive")
		return
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("Rate refresh skipped, fetch already in flight")
		return
	}
	if !force && !cache.IsStale(s.lastUpdated, s.now(), cache.RatesTTL) {
		s.mu.Unlock()
		s.logger.Debug("Rate refresh skipped, basket still fresh")
		return
	}
	s.inFlight = true
	s.loading = true
	s.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	raw, err := s.source.FetchRates(fctx)
	cancel()

	if err == nil {
		for _, code := range floorCurrencies {
			if _, ok := raw[code]; !ok {
				err = &provider.ValidationError{Reason: fmt.Sprintf("rate basket missing %s", code)}
				break
			}
		}
	}

	now := s.now()

	s.mu.Lock()
	s.inFlight = false
	s.loading = false

	if err != nil {
		s.lastErr = err.Error()
		if !s.fetched {
			// Stamp the defaults so the gate holds until the next
			// scheduled tick instead of spin-retrying.
			s.lastUpdated = now
		}
		s.mu.Unlock()
		s.logger.Warn("Rate refresh failed, keeping previous basket", "error", err)
		return
	}

	defaults := models.DefaultRates()
	next := make(map[string]float64, len(models.CurrencyCodes))
	for _, code := range models.CurrencyCodes {
		if v, ok := toPositiveFloat(raw[code]); ok {
			next[code] = v
		} else {
			next[code] = defaults[code]
		}
	}
	next["USD"] = 1.0

	s.rates = next
	s.fetched = true
	s.lastErr = ""
	s.lastUpdated = now
	st := RateState{Rates: next, LastUpdated: now}
	s.mu.Unlock()

	if s.pub != nil {
		s.pub.Publish("rates", st)
	}
	s.logger.Debug("Rate basket updated", "currencies", len(next))
}

// Run drives the synchronizer until ctx is cancelled. Every trigger
// goes through the same gated path; there is no separate unconditional
// fetch loop.
func (s *RatesSync) Run(ctx context.Context, events <-chan Event) {
	s.Refresh(ctx, s.active.Load())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rate synchronizer stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx, s.active.Load())
		case ev := <-events:
			if ev == Foreground {
				s.Refresh(ctx, s.active.Load())
			}
		}
	}
}

// toPositiveFloat coerces a raw JSON value to a positive float. Rate
// providers have been seen returning numbers as strings under load.
func toPositiveFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, val > 0
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, f > 0
	default:
		return 0, false
	}
}
