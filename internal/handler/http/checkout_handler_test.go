package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	checkoutHttp "github.com/vasiliy-maslov/storefront-checkout/internal/handler/http"
)

const owner = "tab-1"

func testSession(quantity int) *checkout.Session {
	price := decimal.RequireFromString("2499")
	total := price.Mul(decimal.NewFromInt(int64(quantity)))
	return &checkout.Session{
		ID: "gid://shopify/Checkout/abc",
		LineItems: []checkout.LineItem{{
			ID:        "gid://shopify/CheckoutLineItem/1",
			VariantID: "gid://shopify/ProductVariant/123456789",
			Title:     "Walnut Frame",
			Quantity:  quantity,
			UnitPrice: checkout.Money{Amount: price, CurrencyCode: "INR"},
		}},
		Email: "asha@example.com",
		Phone: "+919876543210",
		ShippingAddress: &address.Address{
			FirstName:  "Asha",
			LastName:   "Rao",
			Address1:   "12 MG Road",
			City:       "Pune",
			Region:     "Maharashtra",
			PostalCode: "411001",
			Country:    "India",
		},
		Subtotal: checkout.Money{Amount: total, CurrencyCode: "INR"},
		Total:    checkout.Money{Amount: total, CurrencyCode: "INR"},
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(checkoutHttp.ContextHeader, owner)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func newCheckoutRouter(svc *MockCheckoutService, postal *MockPostalLookup) http.Handler {
	return checkoutHttp.NewRouter(checkoutHttp.NewCheckoutHandler(svc, postal))
}

func TestCheckoutHandler_RequiresContext(t *testing.T) {
	svc := new(MockCheckoutService)
	router := newCheckoutRouter(svc, new(MockPostalLookup))

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "GetOrCreateSession", mock.Anything, mock.Anything)
}

func TestCheckoutHandler_GetSession(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("GetOrCreateSession", mock.Anything, owner).Return(testSession(2), nil).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodGet, "/checkout", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "gid://shopify/Checkout/abc", body["id"])
	assert.EqualValues(t, 2, body["item_count"])
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_AddLineItem(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("AddLineItem", mock.Anything, owner, "", checkout.LineItemInput{
		VariantID:  "gid://shopify/ProductVariant/123456789",
		Quantity:   2,
		Attributes: []checkout.Attribute{{Key: "Engraving", Value: "A & R"}},
	}).Return(testSession(2), nil).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodPost, "/checkout/lines", checkoutHttp.AddLineItemRequest{
		VariantID:  "gid://shopify/ProductVariant/123456789",
		Quantity:   2,
		Attributes: []checkoutHttp.AttributeRequest{{Key: "Engraving", Value: "A & R"}},
	})

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_AddLineItem_ValidationFailed(t *testing.T) {
	svc := new(MockCheckoutService)

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodPost, "/checkout/lines", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body checkoutHttp.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "Validation failed", body.Error)
	assert.Contains(t, body.Details, "variant_id")
	assert.Contains(t, body.Details, "quantity")
	svc.AssertNotCalled(t, "AddLineItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutHandler_UnknownFieldRejected(t *testing.T) {
	svc := new(MockCheckoutService)

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodPut, "/checkout/contact", map[string]any{"email": "asha@example.com", "fax": "1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutHandler_UpdateLineItem_NotFound(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("UpdateLineItemQuantity", mock.Anything, owner, "", "line-9", 3).Return(nil, checkout.ErrLineItemNotFound).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodPatch, "/checkout/lines/line-9", checkoutHttp.UpdateLineItemRequest{Quantity: 3})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckoutHandler_RemoveLineItem(t *testing.T) {
	svc := new(MockCheckoutService)
	empty := testSession(1)
	empty.LineItems = nil
	svc.On("RemoveLineItem", mock.Anything, owner, "", "line-1").Return(empty, nil).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodDelete, "/checkout/lines/line-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body checkoutHttp.SessionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, 0, body.ItemCount)
}

func TestCheckoutHandler_UpdateShippingAddress_ServiceValidation(t *testing.T) {
	svc := new(MockCheckoutService)
	addr := testSession(1).ShippingAddress
	addr.PostalCode = "41100"
	svc.On("UpdateShippingAddress", mock.Anything, owner, "", *addr).
		Return(nil, apperror.Validation("address.validate", "postal_code")).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodPut, "/checkout/shipping-address", checkoutHttp.UpdateShippingAddressRequest{Address: *addr})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body checkoutHttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "validation", body.Kind)
	assert.Equal(t, []string{"postal_code"}, body.Fields)
}

func TestCheckoutHandler_UpdateContact(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("UpdateContact", mock.Anything, owner, "", checkout.Contact{Email: "asha@example.com", Phone: "+919876543210"}).
		Return(testSession(1), nil).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodPut, "/checkout/contact", checkoutHttp.UpdateContactRequest{Email: "asha@example.com", Phone: "+919876543210 "})

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_Invalidate(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("Invalidate", mock.Anything, owner, "").Return(nil).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodDelete, "/checkout", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCheckoutHandler_Snapshot_Missing(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("Snapshot", mock.Anything, owner).Return(nil, apperror.NotFound("checkout.snapshot", "no checkout session")).Once()

	rr := doRequest(t, newCheckoutRouter(svc, nil), http.MethodGet, "/checkout/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckoutHandler_LookupPostalCode(t *testing.T) {
	postal := new(MockPostalLookup)
	postal.On("Lookup", mock.Anything, "411001").
		Return(&address.Suggestion{PostalCode: "411001", City: "Pune", Region: "Maharashtra", RegionCode: "MH", Country: "India"}, nil).Once()
	postal.On("Lookup", mock.Anything, "999999").Return(nil, errors.New("client: postal api unreachable")).Once()

	router := newCheckoutRouter(new(MockCheckoutService), postal)

	rr := doRequest(t, router, http.MethodGet, "/postal-codes/411001", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var suggestion address.Suggestion
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&suggestion))
	assert.Equal(t, "MH", suggestion.RegionCode)

	rr = doRequest(t, router, http.MethodGet, "/postal-codes/999999", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	suggestion = address.Suggestion{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&suggestion))
	assert.Equal(t, "999999", suggestion.PostalCode)
	assert.Empty(t, suggestion.City)

	rr = doRequest(t, router, http.MethodGet, "/postal-codes/4110", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	postal.AssertNumberOfCalls(t, "Lookup", 2)
}
