package order

import (
	"time"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/payment"
)

type FinancialStatus string

const (
	FinancialPaid     FinancialStatus = "paid"
	FinancialPending  FinancialStatus = "pending"
	FinancialRefunded FinancialStatus = "refunded"
	FinancialVoided   FinancialStatus = "voided"
)

type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = ""
	FulfillmentPartial     FulfillmentStatus = "partial"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
	FulfillmentCancelled   FulfillmentStatus = "cancelled"
	FulfillmentRestocked   FulfillmentStatus = "restocked"
)

func (fs FulfillmentStatus) String() string {
	if fs == FulfillmentUnfulfilled {
		return "unfulfilled"
	}
	return string(fs)
}

// SubmitRequest is everything needed to record a paid checkout as an order.
// Amount is in minor units; zero means no amount was provided.
type SubmitRequest struct {
	Session  *checkout.Session
	Proof    payment.Proof
	Amount   int64
	Currency string
	Shipping address.Address
	Contact  checkout.Contact
}

// Summary is what the platform returns for a created order.
type Summary struct {
	ID             string    `json:"id"`
	Number         string    `json:"number"`
	Name           string    `json:"name"`
	TotalPrice     string    `json:"total_price"`
	Currency       string    `json:"currency"`
	PaymentID      string    `json:"payment_id"`
	GatewayOrderID string    `json:"gateway_order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	// Replayed is set when the summary came from the idempotency ledger.
	Replayed bool `json:"replayed,omitempty"`
}

// Fulfillment is one shipment of an order as the platform reports it.
type Fulfillment struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	ShipmentStatus  string    `json:"shipment_status"`
	TrackingCompany string    `json:"tracking_company"`
	TrackingNumber  string    `json:"tracking_number"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Order is the platform's authoritative view of a placed order.
type Order struct {
	ID                string            `json:"id"`
	Number            string            `json:"number"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	FinancialStatus   FinancialStatus   `json:"financial_status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	TotalPrice        string            `json:"total_price"`
	Currency          string            `json:"currency"`
	Fulfillments      []Fulfillment     `json:"fulfillments"`
	CreatedAt         time.Time         `json:"created_at"`
}
