// Package apperror defines the error taxonomy shared by checkout, payment, order and tracking.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a missing or malformed field. It never reaches the network.
	KindValidation
	// KindSignature means the payment proof failed verification. The order must not be submitted.
	KindSignature
	// KindGateway is a declined payment or an unreachable gateway. The cart is preserved.
	KindGateway
	// KindPlatform is a rejection by the commerce platform.
	KindPlatform
	// KindNetwork is a transient I/O failure.
	KindNetwork
	KindConfig
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSignature:
		return "signature"
	case KindGateway:
		return "gateway"
	case KindPlatform:
		return "platform"
	case KindNetwork:
		return "network"
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error carries enough context for a human to reconcile a failed operation
// against the gateway or platform dashboards.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Status    int    // upstream HTTP status, 0 when no call was made
	PaymentID string // set whenever a payment was already captured
	Amount    string
	Fields    []string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.PaymentID != "" {
		fmt.Fprintf(&b, " [payment %s]", e.PaymentID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a single immediate retry at the call site is worthwhile.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || (e.Kind == KindPlatform && e.Status >= 500)
}

func Validation(op string, fields ...string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      op,
		Message: "missing or invalid fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func Signature(op, paymentID string) *Error {
	return &Error{
		Kind:      KindSignature,
		Op:        op,
		Message:   "payment signature mismatch",
		PaymentID: paymentID,
	}
}

func Gateway(op, message string, status int, err error) *Error {
	return &Error{Kind: KindGateway, Op: op, Message: message, Status: status, Err: err}
}

func Platform(op, message string, status int) *Error {
	return &Error{Kind: KindPlatform, Op: op, Message: message, Status: status}
}

func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Message: "network failure", Err: err}
}

func Config(op, message string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: message}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

func Conflict(op, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
