// Package store provides the persisted key/value state shared by every open
// browsing context: checkout session ids, the tracking cache, the cancellation
// ledger and customer tokens. There is no locking; writers race and the last
// one wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("key not found")

// Store is a string key/value store. Values are opaque strings until parsed
// by their owner.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Key joins key parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("store: failed to decode value for %s: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: failed to encode value for %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}
