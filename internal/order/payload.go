package order

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
)

const gatewayName = "razorpay"

type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type LineItemPayload struct {
	Title            string     `json:"title"`
	Quantity         int        `json:"quantity"`
	Price            string     `json:"price"`
	RequiresShipping bool       `json:"requires_shipping"`
	Taxable          bool       `json:"taxable"`
	VariantID        *int64     `json:"variant_id,omitempty"`
	Properties       []Property `json:"properties,omitempty"`
}

type AddressPayload struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2,omitempty"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type TransactionPayload struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Amount  string `json:"amount"`
	Gateway string `json:"gateway"`
}

type OrderPayload struct {
	LineItems       []LineItemPayload    `json:"line_items"`
	Email           string               `json:"email"`
	Phone           string               `json:"phone,omitempty"`
	Currency        string               `json:"currency,omitempty"`
	ShippingAddress AddressPayload       `json:"shipping_address"`
	BillingAddress  AddressPayload       `json:"billing_address"`
	FinancialStatus FinancialStatus      `json:"financial_status"`
	Transactions    []TransactionPayload `json:"transactions,omitempty"`
	NoteAttributes  []Property           `json:"note_attributes"`
	Note            string               `json:"note"`
}

// CreateOrderPayload is the body of the Admin API order creation call.
type CreateOrderPayload struct {
	Order OrderPayload `json:"order"`
}

// BuildPayload maps a paid checkout to the platform's order payload. Billing
// is a copy of shipping. The sale transaction is left out when no amount was
// given so that no zero-amount transaction is created.
func BuildPayload(req SubmitRequest) CreateOrderPayload {
	shipping := mapAddress(req.Shipping)
	currency := req.Currency
	if currency == "" && req.Session != nil {
		currency = req.Session.Total.CurrencyCode
	}

	payload := OrderPayload{
		LineItems:       make([]LineItemPayload, 0, len(req.Session.LineItems)),
		Email:           req.Contact.Email,
		Phone:           req.Contact.Phone,
		Currency:        currency,
		ShippingAddress: shipping,
		BillingAddress:  shipping,
		FinancialStatus: FinancialPaid,
		NoteAttributes: []Property{
			{Name: "razorpay_payment_id", Value: req.Proof.PaymentID},
			{Name: "razorpay_order_id", Value: req.Proof.OrderID},
			{Name: "razorpay_signature", Value: req.Proof.Signature},
		},
		Note: buildNote(req),
	}

	for _, li := range req.Session.LineItems {
		payload.LineItems = append(payload.LineItems, mapLineItem(li))
	}

	if req.Amount > 0 {
		payload.Transactions = []TransactionPayload{{
			Kind:    "sale",
			Status:  "success",
			Amount:  FormatMinorUnits(req.Amount),
			Gateway: gatewayName,
		}}
	}

	return CreateOrderPayload{Order: payload}
}

func mapLineItem(li checkout.LineItem) LineItemPayload {
	item := LineItemPayload{
		Title:            li.Title,
		Quantity:         li.Quantity,
		Price:            li.UnitPrice.Amount.StringFixed(2),
		RequiresShipping: true,
		Taxable:          true,
		VariantID:        NumericID(li.VariantID),
	}
	for _, attr := range li.Attributes {
		item.Properties = append(item.Properties, Property{Name: attr.Key, Value: attr.Value})
	}
	return item
}

func mapAddress(a address.Address) AddressPayload {
	a = a.Normalized()
	return AddressPayload{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Address1:     a.Address1,
		Address2:     a.Address2,
		City:         a.City,
		Province:     a.Region,
		ProvinceCode: a.RegionCode,
		Zip:          a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
	}
}

func buildNote(req SubmitRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Paid via %s.\nPayment ID: %s", gatewayName, req.Proof.PaymentID)
	if req.Proof.OrderID != "" {
		fmt.Fprintf(&b, "\nGateway order ID: %s", req.Proof.OrderID)
	}
	if req.Amount > 0 {
		fmt.Fprintf(&b, "\nAmount: %s", FormatMinorUnits(req.Amount))
	}
	return b.String()
}

// NumericID extracts the numeric id after the last '/' of a global id such as
// gid://shopify/ProductVariant/123. It returns nil when there is none.
func NumericID(globalID string) *int64 {
	if globalID == "" {
		return nil
	}
	tail := globalID[strings.LastIndex(globalID, "/")+1:]
	if tail == "" {
		return nil
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return nil
		}
	}
	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// FormatMinorUnits renders minor units with two decimals, e.g. 499800 -> "4998.00".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
