package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vasiliy-maslov/storefront-checkout/internal/carrier"
	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
)

// ErrNoIntegration means no live source exists for the shipment. It is a
// normal condition and leads to the fallback path.
var ErrNoIntegration = errors.New("no live carrier integration")

// LiveClient looks a shipment up at its carrier.
type LiveClient interface {
	Track(ctx context.Context, carrierID carrier.ID, trackingNumber string) (*Result, error)
}

// CarrierClient queries a tracking aggregator that fronts the individual
// carrier APIs. Calls are throttled client side.
type CarrierClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ LiveClient = (*CarrierClient)(nil)

func NewCarrierClient(cfg config.TrackingConfig, httpClient *http.Client) *CarrierClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &CarrierClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type trackingResponse struct {
	TrackingNumber string    `json:"tracking_number"`
	CarrierName    string    `json:"carrier_name"`
	Status         string    `json:"status"`
	StatusDetails  string    `json:"status_details"`
	LastUpdate     time.Time `json:"last_update"`
	Events         []Event   `json:"events"`
}

func (c *CarrierClient) Track(ctx context.Context, carrierID carrier.ID, trackingNumber string) (*Result, error) {
	if c.baseURL == "" || carrierID == carrier.Unknown || carrierID == "" {
		return nil, ErrNoIntegration
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("client: tracking rate limiter: %w", err)
	}

	endpoint := c.baseURL + "/v1/trackings/" + url.PathEscape(strings.ToLower(string(carrierID))) + "/" + url.PathEscape(trackingNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("client: failed to build tracking request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: tracking api unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("client: failed to read tracking response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNotImplemented:
		return nil, ErrNoIntegration
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("client: tracking api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded trackingResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("client: failed to decode tracking response: %w", err)
	}

	result := &Result{
		TrackingNumber: trackingNumber,
		Carrier:        carrierID,
		CarrierName:    decoded.CarrierName,
		RawStatus:      decoded.Status,
		LastUpdate:     decoded.LastUpdate,
		Events:         decoded.Events,
		Source:         SourceLive,
	}
	result.setStage(carrier.NormalizeStatus(decoded.Status, decoded.StatusDetails))
	return result, nil
}
