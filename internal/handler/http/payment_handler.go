package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/order"
	"github.com/vasiliy-maslov/storefront-checkout/internal/payment"
)

type PaymentCoordinator interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency, receipt string) (*payment.Intent, error)
	OpenGatewayCheckout(intent *payment.Intent, prefill payment.Prefill) (*payment.CheckoutOptions, error)
	CompleteCheckout(ctx context.Context, intent *payment.Intent, result payment.GatewayResult, handlers payment.Handlers) error
}

type IntentStore interface {
	Save(ctx context.Context, owner string, intent *payment.Intent) error
	Load(ctx context.Context, owner string) (*payment.Intent, error)
	Delete(ctx context.Context, owner string) error
}

type IntentResponse struct {
	Intent  *payment.Intent          `json:"intent"`
	Options *payment.CheckoutOptions `json:"options"`
}

type CompletePaymentRequest struct {
	Status string           `json:"status" validate:"required,oneof=success failed dismissed"`
	Proof  payment.Proof    `json:"proof" validate:"-"`
	Error  *payment.Failure `json:"error,omitempty"`
}

type CompletePaymentResponse struct {
	Status string         `json:"status"`
	Order  *order.Summary `json:"order,omitempty"`
}

type PaymentHandler struct {
	checkout    CheckoutService
	coordinator PaymentCoordinator
	intents     IntentStore
	orders      order.Service
	validate    *validator.Validate
}

func NewPaymentHandler(checkoutSvc CheckoutService, coordinator PaymentCoordinator, intents IntentStore, orders order.Service) *PaymentHandler {
	return &PaymentHandler{
		checkout:    checkoutSvc,
		coordinator: coordinator,
		intents:     intents,
		orders:      orders,
		validate:    newValidator(),
	}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(requireContext)
		r.Post("/payments/intents", h.handleCreateIntent)
		r.Post("/payments/complete", h.handleComplete)
	})
}

func (h *PaymentHandler) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := contextID(r)

	session, err := h.checkout.GetOrCreateSession(ctx, owner)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load checkout")
		return
	}
	if len(session.LineItems) == 0 {
		respondWithServiceError(w, apperror.Validation("payment.create_intent", "line_items"), "Checkout is empty")
		return
	}

	receipt, err := payment.NewReceipt()
	if err != nil {
		respondWithServiceError(w, err, "Failed to create payment")
		return
	}

	intent, err := h.coordinator.CreatePaymentIntent(ctx, session.Total.MinorUnits(), session.Total.CurrencyCode, receipt)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create payment")
		return
	}

	options, err := h.coordinator.OpenGatewayCheckout(intent, prefillFor(session))
	if err != nil {
		respondWithServiceError(w, err, "Failed to open payment")
		return
	}

	intent.Cart = session
	if err := h.intents.Save(ctx, owner, intent); err != nil {
		respondWithServiceError(w, err, "Failed to create payment")
		return
	}

	respondWithJSON(w, http.StatusCreated, IntentResponse{Intent: intent, Options: options})
}

// handleComplete takes the gateway's result. Only a verified success submits
// the order and discards the checkout; failures and dismissals leave the cart
// as it was.
func (h *PaymentHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := contextID(r)

	var requestPayload CompletePaymentRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	intent, err := h.intents.Load(ctx, owner)
	if err != nil {
		respondWithServiceError(w, err, "No payment in progress")
		return
	}

	result := payment.GatewayResult{
		Status: payment.ResultStatus(requestPayload.Status),
		Proof:  requestPayload.Proof,
		Error:  requestPayload.Error,
	}

	var placed *order.Summary
	handlers := payment.Handlers{
		OnSuccess: func(ctx context.Context, intent *payment.Intent) error {
			session, err := h.chargedCart(ctx, owner, intent)
			if err != nil {
				return err
			}

			shipping := address.Address{}
			if session.ShippingAddress != nil {
				shipping = *session.ShippingAddress
			}

			summary, err := h.orders.SubmitOrder(ctx, order.SubmitRequest{
				Session:  session,
				Proof:    *intent.Proof,
				Amount:   intent.Amount,
				Currency: intent.Currency,
				Shipping: shipping,
				Contact:  checkout.Contact{Email: session.Email, Phone: session.Phone},
			})
			if err != nil {
				return err
			}
			placed = summary

			if err := h.checkout.Invalidate(ctx, owner, session.ID); err != nil {
				log.Warn().Err(err).Str("order_id", summary.ID).Msg("handler: order placed but checkout not discarded")
			}
			if err := h.intents.Delete(ctx, owner); err != nil {
				log.Warn().Err(err).Str("order_id", summary.ID).Msg("handler: order placed but payment intent not discarded")
			}
			return nil
		},
	}

	if err := h.coordinator.CompleteCheckout(ctx, intent, result, handlers); err != nil {
		respondWithServiceError(w, withPayment(err, requestPayload.Proof.PaymentID), "Payment could not be completed")
		return
	}

	if placed == nil {
		respondWithJSON(w, http.StatusOK, CompletePaymentResponse{Status: requestPayload.Status})
		return
	}
	respondWithJSON(w, http.StatusCreated, CompletePaymentResponse{Status: string(payment.ResultSuccess), Order: placed})
}

// chargedCart returns the cart the buyer paid for. When the checkout was
// changed after the payment started, nothing is recorded automatically and
// the error carries the payment for manual reconciliation.
func (h *PaymentHandler) chargedCart(ctx context.Context, owner string, intent *payment.Intent) (*checkout.Session, error) {
	current, err := h.checkout.Snapshot(ctx, owner)
	if err != nil {
		if intent.Cart == nil {
			return nil, err
		}
		log.Warn().Err(err).Str("receipt", intent.Receipt).Msg("handler: checkout snapshot unavailable, using the charged cart")
		current = nil
	}

	cart := intent.Cart
	if cart == nil {
		cart = current
	}

	changed := cart.Total.MinorUnits() != intent.Amount
	if current != nil && (current.ID != cart.ID || current.Total.MinorUnits() != intent.Amount) {
		changed = true
	}
	if !changed {
		return cart, nil
	}

	paymentID := ""
	if intent.Proof != nil {
		paymentID = intent.Proof.PaymentID
	}
	log.Error().Str("payment_id", paymentID).Int64("charged", intent.Amount).Str("session_id", cart.ID).Msg("handler: checkout changed after payment started")
	return nil, &apperror.Error{
		Kind:      apperror.KindPlatform,
		Op:        "payment.complete",
		Message:   "payment captured, order not recorded: checkout changed after payment started",
		Status:    http.StatusConflict,
		PaymentID: paymentID,
		Amount:    order.FormatMinorUnits(intent.Amount),
	}
}

// withPayment attaches the payment id to errors raised after the buyer paid.
func withPayment(err error, paymentID string) error {
	if paymentID == "" {
		return err
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.PaymentID == "" {
		copied := *appErr
		copied.PaymentID = paymentID
		return &copied
	}
	return err
}

func prefillFor(session *checkout.Session) payment.Prefill {
	prefill := payment.Prefill{Email: session.Email, Contact: session.Phone}
	if addr := session.ShippingAddress; addr != nil {
		prefill.Name = strings.TrimSpace(addr.FirstName + " " + addr.LastName)
		if prefill.Contact == "" {
			prefill.Contact = addr.Phone
		}
	}
	return prefill
}
