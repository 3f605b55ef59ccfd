// Package provider implements HTTP clients for the upstream market-data
// providers. Each client owns one http.Client and one rate limiter; the
// per-call deadline is the caller's concern and arrives via context.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// coingeckoRate spaces requests to stay inside the free-tier quota.
	coingeckoRate  = 2 * time.Second
	coingeckoBurst = 8

	clientTimeout = 20 * time.Second
)

// SpotPrice is the parsed spot-price response.
type SpotPrice struct {
	// USD is the current BTC price in USD.
	USD float64

	// Change24h is the 24h change in percent.
	Change24h float64

	// LastUpdatedAt is the provider's quote time in seconds since epoch.
	LastUpdatedAt int64
}

// ChartPoint is one [timestamp, price] pair from a market-chart response.
type ChartPoint struct {
	// TimestampMS is milliseconds since epoch.
	TimestampMS int64

	// Price is the BTC price in the requested currency.
	Price float64
}

// CoinGecko talks to the spot-price and market-chart endpoints.
type CoinGecko struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewCoinGecko(baseURL string, logger *slog.Logger) *CoinGecko {
	return &CoinGecko{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: clientTimeout},
		limiter:    rate.NewLimiter(rate.Every(coingeckoRate), coingeckoBurst),
		logger:     logger.With("provider", "coingecko"),
	}
}

func (c *CoinGecko) get(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchSpotPrice requests the current BTC/USD price, 24h change and
// provider quote time.
func (c *CoinGecko) FetchSpotPrice(ctx context.Context) (*SpotPrice, error) {
	url := fmt.Sprintf(
		"%s/simple/price?ids=bitcoin&vs_currencies=usd&include_24hr_change=true&include_last_updated_at=true",
		c.baseURL,
	)

	var body map[string]struct {
		USD           *float64 `json:"usd"`
		Change24h     float64  `json:"usd_24h_change"`
		LastUpdatedAt int64    `json:"last_updated_at"`
	}
	if err := c.get(ctx, url, &body); err != nil {
		return nil, err
	}

	coin, ok := body["bitcoin"]
	if !ok {
		return nil, &SchemaError{Missing: "bitcoin"}
	}
	if coin.USD == nil {
		return nil, &SchemaError{Missing: "usd"}
	}
	if *coin.USD < 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("negative price %f", *coin.USD)}
	}

	return &SpotPrice{
		USD:           *coin.USD,
		Change24h:     coin.Change24h,
		LastUpdatedAt: coin.LastUpdatedAt,
	}, nil
}

// FetchMarketChart requests days of daily BTC price points denominated
// in vsCurrency. The returned points keep the provider's ordering
// (ascending timestamps).
func (c *CoinGecko) FetchMarketChart(ctx context.Context, vsCurrency string, days int) ([]ChartPoint, error) {
	url := fmt.Sprintf(
		"%s/coins/bitcoin/market_chart?vs_currency=%s&days=%d&interval=daily",
		c.baseURL, vsCurrency, days,
	)

	var body struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := c.get(ctx, url, &body); err != nil {
		return nil, err
	}

	if len(body.Prices) == 0 {
		return nil, &SchemaError{Missing: "prices"}
	}

	points := make([]ChartPoint, 0, len(body.Prices))
	for _, pair := range body.Prices {
		points = append(points, ChartPoint{
			TimestampMS: int64(math.Round(pair[0])),
			Price:       pair[1],
		})
	}
	return points, nil
}
