/**
 * @description
 * This package provides a client for communicating with the asset-management
 * service. The zakat-service only reads assets: it queries the zakat-eligible
 * holdings for a user with their current currency-normalized values.
 */

package assetclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
)

// Client is a client for the asset-management service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new asset service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// assetPayload is the asset service wire format. Values arrive as strings.
type assetPayload struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	SubCategory   string    `json:"sub_category,omitempty"`
	Value         string    `json:"value"`
	ZakatEligible bool      `json:"zakat_eligible"`
}

// ListZakatEligibleAssets returns the user's assets flagged for zakat, with
// current values.
func (c *Client) ListZakatEligibleAssets(ctx context.Context, userID uuid.UUID) ([]domain.AssetRef, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("asset service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/users/%s/assets?zakat_eligible=true", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to asset service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("asset service returned error status %d", resp.StatusCode)
	}

	var payload struct {
		Assets []assetPayload `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode asset service response: %w", err)
	}

	assets := make([]domain.AssetRef, 0, len(payload.Assets))
	for _, a := range payload.Assets {
		value, err := decimal.NewFromString(a.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid asset value %q for asset %s: %w", a.Value, a.ID, err)
		}
		assets = append(assets, domain.AssetRef{
			ID:            a.ID,
			Name:          a.Name,
			Category:      a.Category,
			SubCategory:   a.SubCategory,
			Value:         value,
			ZakatEligible: a.ZakatEligible,
		})
	}
	return assets, nil
}
