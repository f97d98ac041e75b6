package checkout

import (
	"context"
	"errors"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
)

var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionCompleted = errors.New("checkout session already completed")
	ErrLineItemNotFound = errors.New("line item not found")
)

// Platform is the commerce platform's checkout API. Implementations return
// ErrSessionNotFound or ErrSessionCompleted when the session can no longer be
// mutated.
type Platform interface {
	CreateSession(ctx context.Context) (*Session, error)
	FetchSession(ctx context.Context, sessionID string) (*Session, error)
	AddLineItems(ctx context.Context, sessionID string, items []LineItemInput) (*Session, error)
	UpdateLineItemQuantity(ctx context.Context, sessionID, lineItemID string, quantity int) (*Session, error)
	RemoveLineItem(ctx context.Context, sessionID, lineItemID string) (*Session, error)
	UpdateEmail(ctx context.Context, sessionID, email string) (*Session, error)
	UpdateShippingAddress(ctx context.Context, sessionID string, addr address.Address) (*Session, error)
	AssociateCustomer(ctx context.Context, sessionID, customerAccessToken string) (*Session, error)
}
