package syncer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/walletd/marketsync/internal/cache"
	"github.com/walletd/marketsync/internal/models"
	"github.com/walletd/marketsync/internal/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory cache.Store for synchronizer tests.
type fakeStore struct {
	records   map[models.CacheKind]*models.CacheRecord
	saveCount int
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[models.CacheKind]*models.CacheRecord)}
}

func (f *fakeStore) Load(_ context.Context, kind models.CacheKind) (*models.CacheRecord, error) {
	rec, ok := f.records[kind]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return rec, nil
}

func (f *fakeStore) Save(_ context.Context, kind models.CacheKind, payload any) error {
	f.saveCount++
	if f.saveErr != nil {
		return f.saveErr
	}
	rec, err := newFakeRecord(payload)
	if err != nil {
		return err
	}
	f.records[kind] = rec
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newFakeRecord(payload any) (*models.CacheRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &models.CacheRecord{
		Version:   models.CacheSchemaVersion,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// fakeSpotSource counts calls and serves a fixed response or error.
type fakeSpotSource struct {
	mu    sync.Mutex
	calls int
	resp  *provider.SpotPrice
	err   error
}

func (f *fakeSpotSource) FetchSpotPrice(context.Context) (*provider.SpotPrice, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeSpotSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRateSource counts calls and serves a fixed basket or error.
type fakeRateSource struct {
	calls int
	resp  map[string]any
	err   error
}

func (f *fakeRateSource) FetchRates(context.Context) (map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fakeChartSource serves per-currency points, with optional
// per-currency failures. Currencies are keyed lowercase, matching the
// vs_currency parameter the synchronizer passes.
type fakeChartSource struct {
	mu     sync.Mutex
	calls  int
	points map[string][]provider.ChartPoint
	errs   map[string]error
}

func (f *fakeChartSource) FetchMarketChart(_ context.Context, vsCurrency string, _ int) ([]provider.ChartPoint, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err, ok := f.errs[vsCurrency]; ok {
		return nil, err
	}
	return f.points[vsCurrency], nil
}

func (f *fakeChartSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// capturePublisher records Publish calls for assertions.
type capturePublisher struct {
	mu        sync.Mutex
	published []publishedFrame
}

type publishedFrame struct {
	kind    string
	payload any
}

func (p *capturePublisher) Publish(kind string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedFrame{kind: kind, payload: payload})
}
