package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/marketsync/internal/cache"
	"github.com/walletd/marketsync/internal/models"
	"github.com/walletd/marketsync/internal/provider"
)

func TestPriceRefreshColdStart(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{
		USD:           65000,
		Change24h:     2.5,
		LastUpdatedAt: 1700000000,
	}}
	store := newFakeStore()
	s := NewPriceSync(source, store, discardLogger(), nil)

	s.Refresh(context.Background())

	st := s.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 65000.0, st.Snapshot.Price)
	assert.Equal(t, 2.5, st.Snapshot.Change24h)
	assert.True(t, st.Snapshot.LastUpdated.Equal(time.UnixMilli(1700000000*1000)))
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
	assert.False(t, st.LastUpdated.IsZero())
	assert.Equal(t, 1, store.saveCount, "successful fetch writes through to the cache")
}

func TestPriceRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 65000, Change24h: 2.5, LastUpdatedAt: 1700000000}}
	s := NewPriceSync(source, newFakeStore(), discardLogger(), nil)

	s.Refresh(context.Background())
	before := s.State()

	source.err = errors.New("connection refused")
	s.Refresh(context.Background())

	after := s.State()
	require.NotNil(t, after.Snapshot)
	assert.Equal(t, *before.Snapshot, *after.Snapshot, "payload must be unchanged after a failed attempt")
	assert.Equal(t, "connection refused", after.Err)
	assert.True(t, after.LastUpdated.Equal(before.LastUpdated))
}

func TestPriceRefreshFirstFailureSynthesizesZeroSnapshot(t *testing.T) {
	source := &fakeSpotSource{err: errors.New("dns failure")}
	s := NewPriceSync(source, newFakeStore(), discardLogger(), nil)

	s.Refresh(context.Background())

	st := s.State()
	require.NotNil(t, st.Snapshot, "consumers always receive a well-typed value")
	assert.Zero(t, st.Snapshot.Price)
	assert.Zero(t, st.Snapshot.Change24h)
	assert.False(t, st.Snapshot.LastUpdated.IsZero())
	assert.Equal(t, "dns failure", st.Err)
	assert.True(t, st.LastUpdated.IsZero(), "a synthesized snapshot does not count as a publish")
}

func TestPriceLastUpdatedNonDecreasing(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 65000, LastUpdatedAt: 1700000000}}
	s := NewPriceSync(source, newFakeStore(), discardLogger(), nil)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		s.Refresh(context.Background())
		stamps = append(stamps, s.State().LastUpdated)
		clock = clock.Add(30 * time.Second)
	}

	for i := 1; i < len(stamps); i++ {
		assert.False(t, stamps[i].Before(stamps[i-1]), "lastUpdated must be non-decreasing")
	}
}

func TestPriceInFlightGuard(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 65000, LastUpdatedAt: 1700000000}}
	s := NewPriceSync(source, newFakeStore(), discardLogger(), nil)

	s.mu.Lock()
	s.inFlight = true
	s.mu.Unlock()

	s.Refresh(context.Background())
	assert.Zero(t, source.calls, "no new fetch while one is outstanding")
}

func TestPriceBootstrapPrefersCache(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 70000, LastUpdatedAt: 1700000000}}
	store := newFakeStore()

	cached := models.PriceSnapshot{Price: 64000, Change24h: -1.2, LastUpdated: time.Unix(1699990000, 0).UTC()}
	require.NoError(t, store.Save(context.Background(), models.CachePrice, cached))
	store.saveCount = 0

	s := NewPriceSync(source, store, discardLogger(), nil)
	s.bootstrap(context.Background())

	st := s.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, cached, *st.Snapshot)
	assert.Zero(t, source.calls, "cache hit must not trigger a network call")
}

func TestPriceBootstrapFetchesOnCacheMiss(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 70000, LastUpdatedAt: 1700000000}}
	s := NewPriceSync(source, newFakeStore(), discardLogger(), nil)

	s.bootstrap(context.Background())

	assert.Equal(t, 1, source.calls)
	require.NotNil(t, s.State().Snapshot)
	assert.Equal(t, 70000.0, s.State().Snapshot.Price)
}

func TestPriceForegroundRefetchesOnlyWhenStale(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		ev        Event
		age       time.Duration
		wantCalls int
	}{
		{name: "foreground within TTL is a no-op", ev: Foreground, age: cache.PriceForegroundTTL - time.Second, wantCalls: 0},
		{name: "foreground past TTL refetches", ev: Foreground, age: cache.PriceForegroundTTL + time.Second, wantCalls: 1},
		{name: "background never refetches", ev: Background, age: time.Hour, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 65000, LastUpdatedAt: 1700000000}}
			s := NewPriceSync(source, newFakeStore(), discardLogger(), nil)
			s.now = func() time.Time { return base }
			s.lastUpdated = base.Add(-tt.age)

			s.onVisibility(context.Background(), tt.ev)

			assert.Equal(t, tt.wantCalls, source.calls)
		})
	}
}

func TestPriceRunForegroundEventTriggersRefetch(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 65000, LastUpdatedAt: 1700000000}}
	store := newFakeStore()

	// Seed a cached snapshot older than the foreground TTL so bootstrap
	// skips its startup fetch and the event is the only trigger.
	cached := models.PriceSnapshot{Price: 64000, LastUpdated: time.Unix(1699990000, 0).UTC()}
	require.NoError(t, store.Save(context.Background(), models.CachePrice, cached))
	store.records[models.CachePrice].Timestamp = time.Now().Add(-10 * time.Minute)

	s := NewPriceSync(source, store, discardLogger(), nil)
	s.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, events)
	}()

	events <- Foreground

	require.Eventually(t, func() bool { return source.callCount() == 1 },
		2*time.Second, 5*time.Millisecond, "foreground event must reach the synchronizer")

	cancel()
	<-done
}

func TestPricePublishesToSubscribers(t *testing.T) {
	source := &fakeSpotSource{resp: &provider.SpotPrice{USD: 65000, LastUpdatedAt: 1700000000}}
	pub := &capturePublisher{}
	s := NewPriceSync(source, newFakeStore(), discardLogger(), pub)

	s.Refresh(context.Background())

	require.Len(t, pub.published, 1)
	assert.Equal(t, "price", pub.published[0].kind)
}
