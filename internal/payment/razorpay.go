package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
)

// RazorpayClient creates gateway orders through the REST orders endpoint.
type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

var _ Gateway = (*RazorpayClient)(nil)

func NewRazorpayClient(cfg config.GatewayConfig, httpClient *http.Client) *RazorpayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RazorpayClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		httpClient: httpClient,
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder returns ErrBackendUnavailable when credentials are missing or
// the gateway cannot be reached. Rejections are gateway errors.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	const op = "gateway.create_order"

	if c.baseURL == "" || c.keyID == "" || c.keySecret == "" {
		return "", ErrBackendUnavailable
	}

	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", fmt.Errorf("client: failed to encode gateway order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("client: failed to build gateway order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("receipt", receipt).Msg("client: gateway unreachable")
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperror.Network(op, err)
	}

	if resp.StatusCode >= 300 {
		var decoded errorResponse
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error.Description != "" {
			message = decoded.Error.Description
		}
		return "", apperror.Gateway(op, message, resp.StatusCode, nil)
	}

	var created createOrderResponse
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return "", apperror.Gateway(op, "gateway returned no order id", resp.StatusCode, err)
	}

	return created.ID, nil
}
