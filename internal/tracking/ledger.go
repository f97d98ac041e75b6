package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

var ErrNoCancellation = errors.New("no cancellation request for order")

// CancellationLedger records cancellation requests by order id. The record is
// the source of truth for a request; notifications about it are advisory.
type CancellationLedger struct {
	store store.Store
}

func NewCancellationLedger(st store.Store) *CancellationLedger {
	return &CancellationLedger{store: st}
}

func cancellationKey(orderID string) string { return store.Key("cancellation", orderID) }

func (l *CancellationLedger) Get(ctx context.Context, orderID string) (*CancellationRequest, error) {
	var req CancellationRequest
	if err := store.GetJSON(ctx, l.store, cancellationKey(orderID), &req); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoCancellation
		}
		return nil, fmt.Errorf("repository: failed to read cancellation for order %s: %w", orderID, err)
	}
	return &req, nil
}

func (l *CancellationLedger) Record(ctx context.Context, req CancellationRequest) error {
	if err := store.SetJSON(ctx, l.store, cancellationKey(req.OrderID), req); err != nil {
		return fmt.Errorf("repository: failed to record cancellation for order %s: %w", req.OrderID, err)
	}
	return nil
}
