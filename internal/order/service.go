package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/messaging"
	"github.com/vasiliy-maslov/storefront-checkout/internal/metrics"
)

const capturedNotRecorded = "payment captured, order not recorded"

type Service interface {
	SubmitOrder(ctx context.Context, req SubmitRequest) (*Summary, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

type service struct {
	platform  Platform
	ledger    Ledger
	publisher messaging.Publisher
}

func NewService(platform Platform, ledger Ledger, publisher messaging.Publisher) Service {
	if publisher == nil {
		publisher = messaging.NewNoop()
	}
	return &service{
		platform:  platform,
		ledger:    ledger,
		publisher: publisher,
	}
}

// SubmitOrder records a paid checkout on the platform. Validation happens
// before any network call. A payment already in the ledger returns the order
// recorded for it. Once the payment is captured every failure carries the
// payment id and amount for manual reconciliation; nothing is retried here.
func (s *service) SubmitOrder(ctx context.Context, req SubmitRequest) (*Summary, error) {
	const op = "order.submit"

	if err := validateRequest(req); err != nil {
		log.Warn().Err(err).Msg("service: order submission rejected")
		metrics.RecordOperation("submit_order", false)
		return nil, err
	}

	paymentID := req.Proof.PaymentID
	amount := ""
	if req.Amount > 0 {
		amount = FormatMinorUnits(req.Amount)
	}

	existing, err := s.ledger.Get(ctx, paymentID)
	switch {
	case err == nil:
		log.Info().Str("payment_id", paymentID).Str("order_id", existing.ID).Msg("service: payment already has an order, returning recorded order")
		existing.Replayed = true
		return existing, nil
	case errors.Is(err, ErrNotRecorded):
	default:
		log.Error().Err(err).Str("payment_id", paymentID).Msg("service: idempotency ledger unavailable")
		return nil, &apperror.Error{
			Kind:      apperror.KindPlatform,
			Op:        op,
			Message:   capturedNotRecorded + ": idempotency ledger unavailable",
			PaymentID: paymentID,
			Amount:    amount,
			Err:       err,
		}
	}

	summary, err := s.platform.CreateOrder(ctx, BuildPayload(req))
	if err != nil {
		metrics.RecordOperation("submit_order", false)
		appErr := classifyPlatformError(op, err)
		appErr.PaymentID = paymentID
		appErr.Amount = amount
		log.Error().Err(err).Str("payment_id", paymentID).Str("amount", amount).Int("status", appErr.Status).Msg("service: " + capturedNotRecorded)
		return nil, appErr
	}

	summary.PaymentID = paymentID
	summary.GatewayOrderID = req.Proof.OrderID
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	if err := s.ledger.Record(ctx, *summary); err != nil && !errors.Is(err, ErrAlreadyRecorded) {
		log.Error().Err(err).Str("payment_id", paymentID).Str("order_id", summary.ID).Msg("service: failed to record order in ledger")
	}

	s.publishPlaced(ctx, summary)
	metrics.RecordOperation("submit_order", true)
	log.Info().Str("order_id", summary.ID).Str("order_number", summary.Number).Str("payment_id", paymentID).Msg("service: order created successfully")

	return summary, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperror.Validation("order.get", "order_id")
	}

	o, err := s.platform.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("order_id", orderID).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_id", orderID).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return o, nil
}

func (s *service) publishPlaced(ctx context.Context, summary *Summary) {
	id, err := uuid.NewV4()
	if err != nil {
		log.Warn().Err(err).Msg("service: failed to generate event id")
		return
	}

	event := messaging.Event{
		ID:         id.String(),
		Type:       messaging.EventOrderPlaced,
		Key:        summary.ID,
		OccurredAt: time.Now().UTC(),
		Payload:    summary,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("order_id", summary.ID).Msg("service: failed to publish order placed event")
	}
}

func validateRequest(req SubmitRequest) error {
	fields := make([]string, 0)

	if req.Session == nil || len(req.Session.LineItems) == 0 {
		fields = append(fields, "line_items")
	}
	if req.Proof.PaymentID == "" {
		fields = append(fields, "payment_id")
	}
	if strings.TrimSpace(req.Contact.Email) == "" {
		fields = append(fields, "email")
	}
	if err := req.Shipping.Normalized().Validate(); err != nil {
		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			return err
		}
		for _, f := range appErr.Fields {
			fields = append(fields, "shipping_address."+f)
		}
	}
	if req.Amount < 0 {
		fields = append(fields, "amount")
	}

	if len(fields) > 0 {
		return apperror.Validation("order.submit", fields...)
	}
	return nil
}

func classifyPlatformError(op string, err error) *apperror.Error {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return &apperror.Error{
			Kind:    apperror.KindPlatform,
			Op:      op,
			Message: capturedNotRecorded + ": " + platformErr.Message,
			Status:  platformErr.Status,
			Err:     err,
		}
	}
	return &apperror.Error{
		Kind:    apperror.KindNetwork,
		Op:      op,
		Message: capturedNotRecorded,
		Err:     err,
	}
}
