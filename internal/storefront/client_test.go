package storefront_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
	"github.com/vasiliy-maslov/storefront-checkout/internal/storefront"
)

const checkoutJSON = `{
  "id": "gid://shopify/Checkout/abc",
  "webUrl": "https://shop.example/checkouts/abc",
  "email": "buyer@example.com",
  "completedAt": null,
  "subtotalPriceV2": {"amount": "4998.0", "currencyCode": "INR"},
  "totalPriceV2": {"amount": "4998.0", "currencyCode": "INR"},
  "shippingAddress": {"firstName": "Asha", "city": "Pune", "province": "Maharashtra", "provinceCode": "MH", "zip": "411001", "country": "India", "phone": "+919876543210"},
  "lineItems": {"edges": [{"node": {
    "id": "gid://shopify/CheckoutLineItem/1",
    "title": "Walnut Frame",
    "quantity": 2,
    "customAttributes": [{"key": "engraving", "value": "A & R"}],
    "variant": {"id": "gid://shopify/ProductVariant/123456789", "priceV2": {"amount": "2499.0", "currencyCode": "INR"}}
  }}]}
}`

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newServer(t *testing.T, respond func(req capturedRequest) string) (*storefront.Client, *[]capturedRequest) {
	t.Helper()
	captured := make([]capturedRequest, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2024-04/graphql.json", r.URL.Path)
		assert.Equal(t, "storefront-token", r.Header.Get("X-Shopify-Storefront-Access-Token"))

		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		captured = append(captured, req)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(req)))
	}))
	t.Cleanup(srv.Close)

	client := storefront.NewClient(config.PlatformConfig{
		Domain:     srv.URL,
		Token:      "storefront-token",
		APIVersion: "2024-04",
	}, srv.Client())
	return client, &captured
}

func TestClient_FetchSession(t *testing.T) {
	client, _ := newServer(t, func(capturedRequest) string {
		return `{"data": {"node": ` + checkoutJSON + `}}`
	})

	session, err := client.FetchSession(context.Background(), "gid://shopify/Checkout/abc")
	require.NoError(t, err)

	assert.Equal(t, "gid://shopify/Checkout/abc", session.ID)
	assert.False(t, session.Completed())
	assert.Equal(t, "+919876543210", session.Phone)
	assert.Equal(t, "MH", session.ShippingAddress.RegionCode)
	require.Len(t, session.LineItems, 1)

	item := session.LineItems[0]
	assert.Equal(t, "gid://shopify/ProductVariant/123456789", item.VariantID)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.UnitPrice.Amount.Equal(decimal.RequireFromString("2499")))
	assert.Equal(t, []checkout.Attribute{{Key: "engraving", Value: "A & R"}}, item.Attributes)
	assert.Equal(t, 2, session.ItemCount())
}

func TestClient_FetchSession_NotFound(t *testing.T) {
	client, _ := newServer(t, func(capturedRequest) string {
		return `{"data": {"node": null}}`
	})

	_, err := client.FetchSession(context.Background(), "gid://shopify/Checkout/missing")
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestClient_AddLineItems(t *testing.T) {
	client, captured := newServer(t, func(capturedRequest) string {
		return `{"data": {"checkoutLineItemsAdd": {"checkout": ` + checkoutJSON + `, "checkoutUserErrors": []}}}`
	})

	_, err := client.AddLineItems(context.Background(), "gid://shopify/Checkout/abc", []checkout.LineItemInput{{
		VariantID:  "gid://shopify/ProductVariant/123456789",
		Quantity:   2,
		Attributes: []checkout.Attribute{{Key: "engraving", Value: "A & R"}},
	}})
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.True(t, strings.HasPrefix(req.Query, "mutation checkoutLineItemsAdd"))
	assert.Equal(t, "gid://shopify/Checkout/abc", req.Variables["checkoutId"])

	lineItems := req.Variables["lineItems"].([]any)
	first := lineItems[0].(map[string]any)
	assert.Equal(t, float64(2), first["quantity"])
	assert.Equal(t, []any{map[string]any{"key": "engraving", "value": "A & R"}}, first["customAttributes"])
}

func TestClient_UserErrors(t *testing.T) {
	tests := []struct {
		name     string
		errors   string
		wantErr  error
		wantKind apperror.Kind
	}{
		{
			name:    "completed",
			errors:  `[{"code": "ALREADY_COMPLETED", "field": ["checkoutId"], "message": "Checkout is already completed."}]`,
			wantErr: checkout.ErrSessionCompleted,
		},
		{
			name:    "unknown checkout",
			errors:  `[{"code": "INVALID", "field": ["checkoutId"], "message": "Checkout does not exist"}]`,
			wantErr: checkout.ErrSessionNotFound,
		},
		{
			name:    "unknown line item",
			errors:  `[{"code": "LINE_ITEM_NOT_FOUND", "field": ["lineItems", "0", "id"], "message": "Line item not found"}]`,
			wantErr: checkout.ErrLineItemNotFound,
		},
		{
			name:     "other",
			errors:   `[{"code": "NOT_ENOUGH_IN_STOCK", "field": ["lineItems"], "message": "Only 1 left"}]`,
			wantKind: apperror.KindPlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newServer(t, func(capturedRequest) string {
				return `{"data": {"checkoutLineItemsUpdate": {"checkout": null, "checkoutUserErrors": ` + tt.errors + `}}}`
			})

			_, err := client.UpdateLineItemQuantity(context.Background(), "c1", "li-1", 3)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.Equal(t, tt.wantKind, apperror.KindOf(err))
			}
		})
	}
}

func TestClient_HTTPErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	client := storefront.NewClient(config.PlatformConfig{Domain: srv.URL, APIVersion: "2024-04"}, srv.Client())
	_, err := client.CreateSession(context.Background())

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindPlatform, appErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.True(t, appErr.Retryable())
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://shop.example/api/2024-04/graphql.json", storefront.Endpoint("shop.example", "/api/2024-04/graphql.json"))
	assert.Equal(t, "http://127.0.0.1:9/x", storefront.Endpoint("http://127.0.0.1:9/", "/x"))
}
