package http_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/carrier"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/order"
	"github.com/vasiliy-maslov/storefront-checkout/internal/tracking"
)

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) session(args mock.Arguments) (*checkout.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Session), args.Error(1)
}

func (m *MockCheckoutService) GetOrCreateSession(ctx context.Context, owner string) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner))
}

func (m *MockCheckoutService) AddLineItem(ctx context.Context, owner, sessionID string, input checkout.LineItemInput) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner, sessionID, input))
}

func (m *MockCheckoutService) UpdateLineItemQuantity(ctx context.Context, owner, sessionID, lineItemID string, quantity int) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner, sessionID, lineItemID, quantity))
}

func (m *MockCheckoutService) RemoveLineItem(ctx context.Context, owner, sessionID, lineItemID string) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner, sessionID, lineItemID))
}

func (m *MockCheckoutService) UpdateContact(ctx context.Context, owner, sessionID string, contact checkout.Contact) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner, sessionID, contact))
}

func (m *MockCheckoutService) UpdateShippingAddress(ctx context.Context, owner, sessionID string, addr address.Address) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner, sessionID, addr))
}

func (m *MockCheckoutService) AssociateCustomer(ctx context.Context, owner, sessionID, accessToken string) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner, sessionID, accessToken))
}

func (m *MockCheckoutService) Invalidate(ctx context.Context, owner, sessionID string) error {
	return m.Called(ctx, owner, sessionID).Error(0)
}

func (m *MockCheckoutService) Snapshot(ctx context.Context, owner string) (*checkout.Session, error) {
	return m.session(m.Called(ctx, owner))
}

type MockPostalLookup struct {
	mock.Mock
}

func (m *MockPostalLookup) Lookup(ctx context.Context, code string) (*address.Suggestion, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*address.Suggestion), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) SubmitOrder(ctx context.Context, req order.SubmitRequest) (*order.Summary, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Summary), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	args := m.Called(ctx, amount, currency, receipt)
	return args.String(0), args.Error(1)
}

type MockTrackingService struct {
	mock.Mock
}

func (m *MockTrackingService) result(args mock.Arguments) (*tracking.Result, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.Result), args.Error(1)
}

func (m *MockTrackingService) GetLiveStatus(ctx context.Context, trackingNumber, carrierHint, fallbackStatus string) (*tracking.Result, error) {
	return m.result(m.Called(ctx, trackingNumber, carrierHint, fallbackStatus))
}

func (m *MockTrackingService) SetManualStatus(ctx context.Context, trackingNumber string, stage carrier.Stage) (*tracking.Result, error) {
	return m.result(m.Called(ctx, trackingNumber, stage))
}

func (m *MockTrackingService) ClearOverride(ctx context.Context, trackingNumber string) error {
	return m.Called(ctx, trackingNumber).Error(0)
}

func (m *MockTrackingService) SetCancelled(ctx context.Context, identifier string) error {
	return m.Called(ctx, identifier).Error(0)
}

func (m *MockTrackingService) RequestCancellation(ctx context.Context, orderID, orderNumber, reason string) (*tracking.CancellationOutcome, error) {
	args := m.Called(ctx, orderID, orderNumber, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.CancellationOutcome), args.Error(1)
}

func (m *MockTrackingService) TrackOrder(ctx context.Context, orderID string) (*tracking.OrderTracking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.OrderTracking), args.Error(1)
}
