package payment

import "github.com/vasiliy-maslov/storefront-checkout/internal/checkout"

// Intent is one payment attempt. GatewayOrderID is empty for sandbox intents
// created without a backend. Cart is the confirmed session Amount was
// computed from.
type Intent struct {
	GatewayOrderID string            `json:"gateway_order_id,omitempty"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	Sandbox        bool              `json:"sandbox"`
	Proof          *Proof            `json:"proof,omitempty"`
	Cart           *checkout.Session `json:"cart,omitempty"`
}

// Proof is returned by the gateway when a payment succeeds.
type Proof struct {
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// CheckoutOptions configure the gateway's client-side checkout.
type CheckoutOptions struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	OrderID     string            `json:"order_id,omitempty"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	Sandbox     bool              `json:"sandbox"`
}

type ResultStatus string

const (
	ResultSuccess   ResultStatus = "success"
	ResultFailed    ResultStatus = "failed"
	ResultDismissed ResultStatus = "dismissed"
)

// GatewayResult is what the client-side checkout hands back.
type GatewayResult struct {
	Status ResultStatus `json:"status" validate:"required,oneof=success failed dismissed"`
	Proof  Proof        `json:"proof"`
	Error  *Failure     `json:"error,omitempty"`
}

type Failure struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
	Step        string `json:"step"`
}

type Verification string

const (
	Verified Verification = "verified"
	Mismatch Verification = "mismatch"
	// Skipped means no secret or no signature was available. It is not a
	// failure.
	Skipped Verification = "skipped"
)

func (v Verification) Passed() bool {
	return v != Mismatch
}
