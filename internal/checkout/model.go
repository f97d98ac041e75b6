package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
)

type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

// MinorUnits converts the amount to the smallest currency unit (paise, cents).
func (m Money) MinorUnits() int64 {
	return m.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Attribute is a buyer customization such as engraving text. Order matters.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type LineItem struct {
	ID         string      `json:"id"`
	VariantID  string      `json:"variant_id"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  Money       `json:"unit_price"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Amount.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// LineItemInput is what a buyer asks to add to the cart.
type LineItemInput struct {
	VariantID  string
	Quantity   int
	Attributes []Attribute
}

// Session is the platform-confirmed state of a checkout. Once CompletedAt is
// set the session is terminal and is replaced, never reused.
type Session struct {
	ID              string           `json:"id"`
	LineItems       []LineItem       `json:"line_items"`
	Email           string           `json:"email,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	ShippingAddress *address.Address `json:"shipping_address,omitempty"`
	Subtotal        Money            `json:"subtotal"`
	Total           Money            `json:"total"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	WebURL          string           `json:"web_url,omitempty"`
}

func (s *Session) Completed() bool {
	return s.CompletedAt != nil
}

func (s *Session) ItemCount() int {
	count := 0
	for _, li := range s.LineItems {
		count += li.Quantity
	}
	return count
}

// Contact is buyer contact data kept next to the session.
type Contact struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}
