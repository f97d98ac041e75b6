package tracking

import (
	"time"

	"github.com/vasiliy-maslov/storefront-checkout/internal/carrier"
)

// Source says where a tracking result came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceManual    Source = "manual"
	SourceCancelled Source = "cancelled"
	SourceFallback  Source = "fallback"
)

type Event struct {
	Status   string    `json:"status"`
	Location string    `json:"location,omitempty"`
	Time     time.Time `json:"time"`
}

// Result is the normalized state of one shipment.
type Result struct {
	TrackingNumber string        `json:"tracking_number"`
	Carrier        carrier.ID    `json:"carrier"`
	CarrierName    string        `json:"carrier_name,omitempty"`
	Stage          carrier.Stage `json:"stage"`
	StageLabel     string        `json:"stage_label"`
	StageRank      int           `json:"stage_rank"`
	RawStatus      string        `json:"raw_status,omitempty"`
	LastUpdate     time.Time     `json:"last_update"`
	Events         []Event       `json:"events,omitempty"`
	Source         Source        `json:"source"`
	// IsFallback marks a stage inferred from the platform's own status
	// rather than confirmed by the carrier.
	IsFallback bool `json:"is_fallback"`
}

func (r *Result) setStage(stage carrier.Stage) {
	r.Stage = stage
	r.StageLabel = stage.Label()
	r.StageRank = stage.Rank()
}

type CancellationStatus string

const CancellationPending CancellationStatus = "pending"

type CancellationRequest struct {
	ID           string             `json:"id"`
	OrderID      string             `json:"order_id"`
	OrderNumber  string             `json:"order_number"`
	ContactEmail string             `json:"contact_email,omitempty"`
	Reason       string             `json:"reason"`
	RequestedAt  time.Time          `json:"requested_at"`
	Status       CancellationStatus `json:"status"`
}

// CancellationOutcome reports a cancellation request. The request is recorded
// even when the seller could not be notified; MailtoLink is then the manual
// fallback.
type CancellationOutcome struct {
	Request          CancellationRequest `json:"request"`
	AlreadyRequested bool                `json:"already_requested"`
	Notified         bool                `json:"notified"`
	MailtoLink       string              `json:"mailto_link,omitempty"`
}

// OrderTracking is the tracking view of one order.
type OrderTracking struct {
	OrderID           string               `json:"order_id"`
	OrderNumber       string               `json:"order_number"`
	Name              string               `json:"name"`
	FinancialStatus   string               `json:"financial_status"`
	FulfillmentStatus string               `json:"fulfillment_status"`
	Stage             carrier.Stage        `json:"stage"`
	StageLabel        string               `json:"stage_label"`
	StageRank         int                  `json:"stage_rank"`
	Shipments         []Result             `json:"shipments"`
	Cancellation      *CancellationRequest `json:"cancellation,omitempty"`
	PollAfterSeconds  int                  `json:"poll_after_seconds,omitempty"`
}
