package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

// IntentStore keeps the open payment intent of each browsing context so the
// gateway result can be matched against the amount that was actually asked
// for.
type IntentStore struct {
	store store.Store
}

func NewIntentStore(st store.Store) *IntentStore {
	return &IntentStore{store: st}
}

func intentKey(owner string) string { return store.Key("checkout", owner, "intent") }

func (s *IntentStore) Save(ctx context.Context, owner string, intent *Intent) error {
	if err := store.SetJSON(ctx, s.store, intentKey(owner), intent); err != nil {
		return fmt.Errorf("repository: failed to save payment intent: %w", err)
	}
	return nil
}

func (s *IntentStore) Load(ctx context.Context, owner string) (*Intent, error) {
	var intent Intent
	if err := store.GetJSON(ctx, s.store, intentKey(owner), &intent); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("payment.load_intent", "no open payment intent")
		}
		return nil, fmt.Errorf("repository: failed to load payment intent: %w", err)
	}
	return &intent, nil
}

func (s *IntentStore) Delete(ctx context.Context, owner string) error {
	if err := s.store.Delete(ctx, intentKey(owner)); err != nil {
		return fmt.Errorf("repository: failed to delete payment intent: %w", err)
	}
	return nil
}
