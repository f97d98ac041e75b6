package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
	"github.com/vasiliy-maslov/storefront-checkout/internal/metrics"
)

const liveKeyPrefix = "rzp_live_"

// ErrBackendUnavailable means no gateway backend is configured or reachable.
var ErrBackendUnavailable = errors.New("payment backend unavailable")

type Gateway interface {
	// CreateOrder returns the gateway-side order id for amount minor units.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
}

// Handlers receive the outcome of a gateway checkout. Nil handlers are skipped.
type Handlers struct {
	OnSuccess func(ctx context.Context, intent *Intent) error
	OnFailure func(ctx context.Context, intent *Intent, reason string)
	OnDismiss func(ctx context.Context, intent *Intent)
}

type Coordinator struct {
	gateway      Gateway
	keyID        string
	secret       string
	merchantName string
}

func NewCoordinator(gateway Gateway, cfg config.GatewayConfig) *Coordinator {
	return &Coordinator{
		gateway:      gateway,
		keyID:        cfg.KeyID,
		secret:       cfg.KeySecret,
		merchantName: cfg.MerchantName,
	}
}

// IsLiveKey reports whether the gateway key belongs to production. The key,
// not the environment name, decides whether a sandbox fallback is allowed.
func IsLiveKey(keyID string) bool {
	return strings.HasPrefix(strings.TrimSpace(keyID), liveKeyPrefix)
}

// NewReceipt returns a receipt token unique per payment attempt.
func NewReceipt() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("service: failed to generate receipt: %w", err)
	}
	return "rcpt_" + strings.ReplaceAll(id.String(), "-", ""), nil
}

// CreatePaymentIntent asks the gateway backend for an order. When no backend
// is available it falls back to a sandbox intent without a gateway id, unless
// the configured key is a live key.
func (c *Coordinator) CreatePaymentIntent(ctx context.Context, amount int64, currency, receipt string) (*Intent, error) {
	const op = "payment.create_intent"

	fields := make([]string, 0)
	if amount <= 0 {
		fields = append(fields, "amount")
	}
	if currency == "" {
		fields = append(fields, "currency")
	}
	if receipt == "" {
		fields = append(fields, "receipt")
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(op, fields...)
	}

	intent := &Intent{Amount: amount, Currency: strings.ToUpper(currency), Receipt: receipt}

	orderID, err := c.gateway.CreateOrder(ctx, amount, intent.Currency, receipt)
	switch {
	case err == nil:
		intent.GatewayOrderID = orderID
		log.Info().Str("gateway_order_id", orderID).Str("receipt", receipt).Int64("amount", amount).Msg("service: payment intent created")
		metrics.RecordOperation("create_payment_intent", true)
		return intent, nil
	case errors.Is(err, ErrBackendUnavailable):
		if IsLiveKey(c.keyID) {
			log.Error().Err(err).Str("receipt", receipt).Msg("service: payment backend unavailable with a live key")
			metrics.RecordOperation("create_payment_intent", false)
			return nil, &apperror.Error{
				Kind:    apperror.KindConfig,
				Op:      op,
				Message: "payment backend unavailable and the gateway key is live; sandbox fallback refused",
				Err:     err,
			}
		}
		intent.Sandbox = true
		log.Warn().Err(err).Str("receipt", receipt).Str("mode", "sandbox").Msg("service: payment backend unavailable, using sandbox intent")
		metrics.RecordOperation("create_payment_intent", true)
		return intent, nil
	default:
		metrics.RecordOperation("create_payment_intent", false)
		if apperror.KindOf(err) != apperror.KindUnknown {
			return nil, err
		}
		return nil, apperror.Gateway(op, "failed to create gateway order", 0, err)
	}
}

// OpenGatewayCheckout builds the options the client-side checkout is opened
// with. Configuration problems surface here, before the buyer sees the modal.
func (c *Coordinator) OpenGatewayCheckout(intent *Intent, prefill Prefill) (*CheckoutOptions, error) {
	const op = "payment.open_checkout"

	if c.keyID == "" {
		return nil, apperror.Config(op, "gateway key id is not configured")
	}
	if intent.Sandbox && IsLiveKey(c.keyID) {
		return nil, apperror.Config(op, "sandbox intent cannot be used with a live gateway key")
	}

	return &CheckoutOptions{
		Key:         c.keyID,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Name:        c.merchantName,
		Description: "Order " + intent.Receipt,
		OrderID:     intent.GatewayOrderID,
		Prefill:     prefill,
		Notes:       map[string]string{"receipt": intent.Receipt},
		Sandbox:     intent.Sandbox,
	}, nil
}

// CompleteCheckout dispatches the gateway result. A success is only handed to
// OnSuccess once the signature did not mismatch. Failures and dismissals have
// no side effects beyond their handlers.
func (c *Coordinator) CompleteCheckout(ctx context.Context, intent *Intent, result GatewayResult, handlers Handlers) error {
	const op = "payment.complete_checkout"

	switch result.Status {
	case ResultSuccess:
		proof := result.Proof
		if proof.PaymentID == "" {
			return apperror.Validation(op, "razorpay_payment_id")
		}
		if proof.OrderID == "" {
			proof.OrderID = intent.GatewayOrderID
		}
		if intent.GatewayOrderID != "" && proof.OrderID != intent.GatewayOrderID {
			log.Warn().Str("payment_id", proof.PaymentID).Str("order_id", proof.OrderID).Str("gateway_order_id", intent.GatewayOrderID).Msg("service: payment proof references another order")
			return apperror.Signature(op, proof.PaymentID)
		}

		if verification := c.VerifySignature(proof.OrderID, proof.PaymentID, proof.Signature); !verification.Passed() {
			return apperror.Signature(op, proof.PaymentID)
		}

		intent.Proof = &proof
		if handlers.OnSuccess != nil {
			return handlers.OnSuccess(ctx, intent)
		}
		return nil

	case ResultFailed:
		reason := describeFailure(result.Error)
		log.Warn().Str("receipt", intent.Receipt).Str("reason", reason).Msg("service: payment failed at gateway")
		metrics.RecordOperation("payment", false)
		if handlers.OnFailure != nil {
			handlers.OnFailure(ctx, intent, reason)
		}
		return apperror.Gateway(op, reason, 0, nil)

	case ResultDismissed:
		log.Info().Str("receipt", intent.Receipt).Msg("service: gateway checkout dismissed")
		if handlers.OnDismiss != nil {
			handlers.OnDismiss(ctx, intent)
		}
		return nil

	default:
		return apperror.Validation(op, "status")
	}
}

// VerifySignature checks the proof with the configured secret and records the
// outcome. Skipped verifications are logged on every occurrence.
func (c *Coordinator) VerifySignature(orderID, paymentID, signature string) Verification {
	result := VerifySignature(orderID, paymentID, signature, c.secret)
	metrics.RecordSignature(string(result))

	switch result {
	case Skipped:
		log.Warn().
			Str("payment_id", paymentID).
			Str("order_id", orderID).
			Str("verification", string(Skipped)).
			Bool("secret_configured", c.secret != "").
			Msg("service: payment signature not verified")
	case Mismatch:
		log.Error().Str("payment_id", paymentID).Str("order_id", orderID).Msg("service: payment signature mismatch")
	default:
		log.Info().Str("payment_id", paymentID).Str("order_id", orderID).Msg("service: payment signature verified")
	}
	return result
}

// ComputeSignature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func ComputeSignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time. Without a secret or a signature
// the check is skipped rather than failed.
func VerifySignature(orderID, paymentID, signature, secret string) Verification {
	if secret == "" || signature == "" {
		return Skipped
	}
	expected := ComputeSignature(orderID, paymentID, secret)
	if hmac.Equal([]byte(expected), []byte(signature)) {
		return Verified
	}
	return Mismatch
}

func describeFailure(f *Failure) string {
	if f == nil {
		return "payment failed"
	}
	parts := make([]string, 0, 2)
	if f.Description != "" {
		parts = append(parts, f.Description)
	}
	if f.Reason != "" && f.Reason != f.Description {
		parts = append(parts, "("+strings.ReplaceAll(f.Reason, "_", " ")+")")
	}
	if len(parts) == 0 {
		if f.Code != "" {
			return "payment failed: " + f.Code
		}
		return "payment failed"
	}
	return strings.Join(parts, " ")
}
