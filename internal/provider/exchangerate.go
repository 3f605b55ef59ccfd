package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// exchangeRateQuota spaces requests well under the provider's monthly
// metering; the synchronizer's 90s freshness gate does the real limiting.
const exchangeRateQuota = 10 * time.Second

// ExchangeRate talks to the USD-based conversion-rate endpoint.
type ExchangeRate struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewExchangeRate(baseURL, apiKey string, logger *slog.Logger) *ExchangeRate {
	return &ExchangeRate{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: clientTimeout},
		limiter:    rate.NewLimiter(rate.Every(exchangeRateQuota), 2),
		logger:     logger.With("provider", "exchangerate"),
	}
}

// FetchRates requests the latest conversion rates with USD base.
// Values are returned raw (any) so the caller can coerce each tracked
// field individually and fall back per-field on parse failure.
func (c *ExchangeRate) FetchRates(ctx context.Context) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/latest/USD", c.baseURL, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var body struct {
		Result          string         `json:"result"`
		ConversionRates map[string]any `json:"conversion_rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Result == "" {
		return nil, &SchemaError{Missing: "result"}
	}
	if body.Result != "success" {
		return nil, &ValidationError{Reason: "result=" + body.Result}
	}
	if body.ConversionRates == nil {
		return nil, &SchemaError{Missing: "conversion_rates"}
	}

	return body.ConversionRates, nil
}
