/**
 * @description
 * This package provides a client for the gold/silver spot price feed. It
 * encapsulates the HTTP call and keeps a short-lived in-process cache so a
 * scheduler tick over many users does not hammer the feed.
 *
 * @dependencies
 * - net/http, encoding/json: Standard Go libraries.
 * - github.com/shopspring/decimal: Prices are decoded as decimals via string
 *   fields to avoid float precision loss.
 */

package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
)

// Client fetches current gold and silver prices per gram.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	cacheTTL time.Duration
	mu       sync.Mutex
	cached   domain.MetalPrices
	cachedAt time.Time
}

// NewClient creates a new price feed client. cacheTTL <= 0 disables caching.
func NewClient(baseURL, apiKey string, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cacheTTL:   cacheTTL,
	}
}

// spotPriceResponse is the feed's wire format. Prices arrive as strings.
type spotPriceResponse struct {
	GoldPerGram   string `json:"gold_per_gram"`
	SilverPerGram string `json:"silver_per_gram"`
}

// CurrentPrices returns the current gold and silver prices per gram, from
// cache when fresh enough.
func (c *Client) CurrentPrices(ctx context.Context) (domain.MetalPrices, error) {
	c.mu.Lock()
	if c.cacheTTL > 0 && !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.cacheTTL {
		prices := c.cached
		c.mu.Unlock()
		return prices, nil
	}
	c.mu.Unlock()

	prices, err := c.fetch(ctx)
	if err != nil {
		return domain.MetalPrices{}, err
	}

	c.mu.Lock()
	c.cached = prices
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return prices, nil
}

func (c *Client) fetch(ctx context.Context) (domain.MetalPrices, error) {
	if c.baseURL == "" {
		return domain.MetalPrices{}, fmt.Errorf("price feed base url is empty")
	}

	url := fmt.Sprintf("%s/v1/spot/gold-silver", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return domain.MetalPrices{}, fmt.Errorf("failed to create request: %w", err)
	}
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MetalPrices{}, fmt.Errorf("failed to execute request to price feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.MetalPrices{}, fmt.Errorf("price feed returned error status %d", resp.StatusCode)
	}

	var payload spotPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.MetalPrices{}, fmt.Errorf("failed to decode price feed response: %w", err)
	}

	gold, err := decimal.NewFromString(payload.GoldPerGram)
	if err != nil {
		return domain.MetalPrices{}, fmt.Errorf("invalid gold price %q: %w", payload.GoldPerGram, err)
	}
	silver, err := decimal.NewFromString(payload.SilverPerGram)
	if err != nil {
		return domain.MetalPrices{}, fmt.Errorf("invalid silver price %q: %w", payload.SilverPerGram, err)
	}
	if !gold.IsPositive() || !silver.IsPositive() {
		return domain.MetalPrices{}, fmt.Errorf("price feed returned non-positive prices (gold=%s silver=%s)", gold, silver)
	}

	return domain.MetalPrices{GoldPerGram: gold, SilverPerGram: silver}, nil
}
