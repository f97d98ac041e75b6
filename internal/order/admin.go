package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
)

const adminTokenHeader = "X-Shopify-Access-Token"

var ErrOrderNotFound = errors.New("order not found")

// PlatformError is a non-2xx Admin API response.
type PlatformError struct {
	Status  int
	Message string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("admin api status %d: %s", e.Status, e.Message)
}

// Platform is the commerce platform's Admin API.
type Platform interface {
	CreateOrder(ctx context.Context, payload CreateOrderPayload) (*Summary, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

type AdminClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Platform = (*AdminClient)(nil)

func NewAdminClient(cfg config.PlatformConfig, httpClient *http.Client) *AdminClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	domain := strings.TrimRight(cfg.Domain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return &AdminClient{
		baseURL:    domain + "/admin/api/" + cfg.APIVersion,
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

type orderResource struct {
	ID                int64      `json:"id"`
	OrderNumber       int64      `json:"order_number"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus *string    `json:"fulfillment_status"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	TotalPrice        string     `json:"total_price"`
	Currency          string     `json:"currency"`
	CreatedAt         time.Time  `json:"created_at"`
	Fulfillments      []struct {
		ID              int64     `json:"id"`
		Status          string    `json:"status"`
		ShipmentStatus  *string   `json:"shipment_status"`
		TrackingCompany *string   `json:"tracking_company"`
		TrackingNumber  *string   `json:"tracking_number"`
		UpdatedAt       time.Time `json:"updated_at"`
	} `json:"fulfillments"`
}

type orderEnvelope struct {
	Order orderResource `json:"order"`
}

func (c *AdminClient) CreateOrder(ctx context.Context, payload CreateOrderPayload) (*Summary, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: failed to encode order: %w", err)
	}

	var envelope orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/orders.json", body, &envelope); err != nil {
		return nil, err
	}

	o := envelope.Order
	return &Summary{
		ID:         strconv.FormatInt(o.ID, 10),
		Number:     strconv.FormatInt(o.OrderNumber, 10),
		Name:       o.Name,
		TotalPrice: o.TotalPrice,
		Currency:   o.Currency,
		CreatedAt:  o.CreatedAt,
	}, nil
}

func (c *AdminClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var envelope orderEnvelope
	err := c.do(ctx, http.MethodGet, "/orders/"+orderID+".json", nil, &envelope)
	if err != nil {
		var platformErr *PlatformError
		if errors.As(err, &platformErr) && platformErr.Status == http.StatusNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return envelope.Order.toOrder(), nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, body []byte, dst any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: failed to build admin request: %w", err)
	}
	req.Header.Set(adminTokenHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: admin api unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: failed to read admin response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PlatformError{Status: resp.StatusCode, Message: ParseErrorBody(raw)}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("client: failed to decode admin response: %w", err)
	}
	return nil
}

// ParseErrorBody reads the platform's "errors" field, which is either a
// string or a map of field to messages. Anything else yields the raw text.
func ParseErrorBody(raw []byte) string {
	var body struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Errors) == 0 {
		return strings.TrimSpace(string(raw))
	}

	var message string
	if err := json.Unmarshal(body.Errors, &message); err == nil {
		return message
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body.Errors, &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			var messages []string
			if err := json.Unmarshal(fields[k], &messages); err == nil {
				parts = append(parts, k+": "+strings.Join(messages, ", "))
				continue
			}
			var single string
			if err := json.Unmarshal(fields[k], &single); err == nil {
				parts = append(parts, k+": "+single)
				continue
			}
			parts = append(parts, k+": "+string(fields[k]))
		}
		return strings.Join(parts, "; ")
	}

	return strings.TrimSpace(string(raw))
}

func (o orderResource) toOrder() *Order {
	out := &Order{
		ID:              strconv.FormatInt(o.ID, 10),
		Number:          strconv.FormatInt(o.OrderNumber, 10),
		Name:            o.Name,
		Email:           o.Email,
		FinancialStatus: FinancialStatus(o.FinancialStatus),
		CancelledAt:     o.CancelledAt,
		TotalPrice:      o.TotalPrice,
		Currency:        o.Currency,
		Fulfillments:    make([]Fulfillment, 0, len(o.Fulfillments)),
		CreatedAt:       o.CreatedAt,
	}
	if o.FulfillmentStatus != nil {
		out.FulfillmentStatus = FulfillmentStatus(*o.FulfillmentStatus)
	}
	for _, f := range o.Fulfillments {
		out.Fulfillments = append(out.Fulfillments, Fulfillment{
			ID:              strconv.FormatInt(f.ID, 10),
			Status:          f.Status,
			ShipmentStatus:  deref(f.ShipmentStatus),
			TrackingCompany: deref(f.TrackingCompany),
			TrackingNumber:  deref(f.TrackingNumber),
			UpdatedAt:       f.UpdatedAt,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
