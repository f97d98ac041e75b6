package order_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/messaging"
	"github.com/vasiliy-maslov/storefront-checkout/internal/order"
	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) CreateOrder(ctx context.Context, payload order.CreateOrderPayload) (*order.Summary, error) {
	args := m.Called(ctx, payload)
	var s *order.Summary
	if v := args.Get(0); v != nil {
		s = v.(*order.Summary)
	}
	return s, args.Error(1)
}

func (m *MockPlatform) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	var o *order.Order
	if v := args.Get(0); v != nil {
		o = v.(*order.Order)
	}
	return o, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	return m.Called(ctx, event).Error(0)
}

type failingLedger struct{}

func (failingLedger) Get(context.Context, string) (*order.Summary, error) {
	return nil, errors.New("connection refused")
}

func (failingLedger) Record(context.Context, order.Summary) error {
	return errors.New("connection refused")
}

func TestService_SubmitOrder_Success(t *testing.T) {
	ctx := context.Background()
	req := paidRequest(frame(2))

	platform := new(MockPlatform)
	platform.On("CreateOrder", ctx, order.BuildPayload(req)).
		Return(&order.Summary{ID: "5001", Number: "1001", Name: "#1001", TotalPrice: "4998.00", Currency: "INR"}, nil).Once()

	publisher := new(MockPublisher)
	publisher.On("Publish", ctx, mock.MatchedBy(func(e messaging.Event) bool {
		return e.Type == messaging.EventOrderPlaced && e.Key == "5001"
	})).Return(nil).Once()

	ledger := order.NewStoreLedger(store.NewMemory())
	svc := order.NewService(platform, ledger, publisher)

	summary, err := svc.SubmitOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "5001", summary.ID)
	assert.Equal(t, "pay_1", summary.PaymentID)
	assert.Equal(t, "order_1", summary.GatewayOrderID)
	assert.False(t, summary.Replayed)

	recorded, err := ledger.Get(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "5001", recorded.ID)

	platform.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_SubmitOrder_LedgerHitSkipsPlatform(t *testing.T) {
	ctx := context.Background()
	ledger := order.NewStoreLedger(store.NewMemory())
	require.NoError(t, ledger.Record(ctx, order.Summary{ID: "5001", Number: "1001", PaymentID: "pay_1"}))

	platform := new(MockPlatform)
	svc := order.NewService(platform, ledger, nil)

	summary, err := svc.SubmitOrder(ctx, paidRequest(frame(1)))
	require.NoError(t, err)
	assert.Equal(t, "5001", summary.ID)
	assert.True(t, summary.Replayed)
	platform.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestService_SubmitOrder_ValidationBeforeNetwork(t *testing.T) {
	req := paidRequest()
	req.Proof.PaymentID = ""
	req.Contact.Email = ""
	req.Shipping.PostalCode = "41100"

	platform := new(MockPlatform)
	svc := order.NewService(platform, failingLedger{}, nil)

	_, err := svc.SubmitOrder(context.Background(), req)

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Equal(t, []string{"line_items", "payment_id", "email", "shipping_address.postal_code"}, appErr.Fields)
	platform.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestService_SubmitOrder_PlatformErrors(t *testing.T) {
	tests := []struct {
		name          string
		platformErr   error
		wantKind      apperror.Kind
		wantStatus    int
		wantRetryable bool
		wantMessage   string
	}{
		{
			name:        "client correctable",
			platformErr: &order.PlatformError{Status: http.StatusUnprocessableEntity, Message: "line_items: is invalid"},
			wantKind:    apperror.KindPlatform,
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "payment captured, order not recorded: line_items: is invalid",
		},
		{
			name:          "retry worthy",
			platformErr:   &order.PlatformError{Status: http.StatusBadGateway, Message: "bad gateway"},
			wantKind:      apperror.KindPlatform,
			wantStatus:    http.StatusBadGateway,
			wantRetryable: true,
			wantMessage:   "payment captured, order not recorded: bad gateway",
		},
		{
			name:          "transport",
			platformErr:   errors.New("client: admin api unreachable: dial tcp: i/o timeout"),
			wantKind:      apperror.KindNetwork,
			wantRetryable: true,
			wantMessage:   "payment captured, order not recorded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			platform := new(MockPlatform)
			platform.On("CreateOrder", ctx, mock.Anything).Return(nil, tt.platformErr).Once()

			ledger := order.NewStoreLedger(store.NewMemory())
			svc := order.NewService(platform, ledger, nil)

			_, err := svc.SubmitOrder(ctx, paidRequest(frame(2)))

			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantKind, appErr.Kind)
			assert.Equal(t, tt.wantStatus, appErr.Status)
			assert.Equal(t, tt.wantRetryable, appErr.Retryable())
			assert.Equal(t, tt.wantMessage, appErr.Message)
			assert.Equal(t, "pay_1", appErr.PaymentID)
			assert.Equal(t, "4998.00", appErr.Amount)

			_, err = ledger.Get(ctx, "pay_1")
			assert.ErrorIs(t, err, order.ErrNotRecorded)
			platform.AssertNumberOfCalls(t, "CreateOrder", 1)
		})
	}
}

func TestService_SubmitOrder_LedgerUnavailable(t *testing.T) {
	platform := new(MockPlatform)
	svc := order.NewService(platform, failingLedger{}, nil)

	_, err := svc.SubmitOrder(context.Background(), paidRequest(frame(1)))

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "pay_1", appErr.PaymentID)
	platform.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestService_SubmitOrder_PublishFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	platform := new(MockPlatform)
	platform.On("CreateOrder", ctx, mock.Anything).Return(&order.Summary{ID: "5001"}, nil).Once()
	publisher := new(MockPublisher)
	publisher.On("Publish", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	svc := order.NewService(platform, order.NewStoreLedger(store.NewMemory()), publisher)
	summary, err := svc.SubmitOrder(ctx, paidRequest(frame(1)))
	require.NoError(t, err)
	assert.Equal(t, "5001", summary.ID)
}

func TestService_GetOrder(t *testing.T) {
	ctx := context.Background()
	platform := new(MockPlatform)
	platform.On("GetOrder", ctx, "5001").Return(&order.Order{ID: "5001"}, nil).Once()
	platform.On("GetOrder", ctx, "404").Return(nil, order.ErrOrderNotFound).Once()

	svc := order.NewService(platform, failingLedger{}, nil)

	o, err := svc.GetOrder(ctx, "5001")
	require.NoError(t, err)
	assert.Equal(t, "5001", o.ID)

	_, err = svc.GetOrder(ctx, "404")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = svc.GetOrder(ctx, " ")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
