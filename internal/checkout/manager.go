package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/store"
)

// AttributeLimits bounds customization values. PerKey overrides Default for
// attributes such as engraving text.
type AttributeLimits struct {
	Default int
	PerKey  map[string]int
}

func (l AttributeLimits) maxFor(key string) int {
	if limit, ok := l.PerKey[strings.ToLower(key)]; ok && limit > 0 {
		return limit
	}
	return l.Default
}

// Manager owns the single open checkout session of every browsing context.
// The session id lives in the shared store; concurrent contexts race on it
// and the last writer wins.
type Manager struct {
	platform Platform
	store    store.Store
	limits   AttributeLimits
	validate *validator.Validate
}

func NewManager(platform Platform, st store.Store, limits AttributeLimits) *Manager {
	return &Manager{
		platform: platform,
		store:    st,
		limits:   limits,
		validate: validator.New(),
	}
}

func sessionKey(owner string) string  { return store.Key("checkout", owner, "session") }
func snapshotKey(owner string) string { return store.Key("checkout", owner, "snapshot") }
func contactKey(owner string) string  { return store.Key("checkout", owner, "contact") }

// TokenKey is where the customer access token of a browsing context is kept.
func TokenKey(owner string) string { return store.Key("auth", owner, "token") }

// GetOrCreateSession resumes the stored session when the platform still
// reports it open. A failed fetch or a completed session discards the stored
// id and starts a new session.
func (m *Manager) GetOrCreateSession(ctx context.Context, owner string) (*Session, error) {
	if owner == "" {
		return nil, apperror.Validation("checkout.get_or_create_session", "context")
	}

	sessionID, err := m.store.Get(ctx, sessionKey(owner))
	switch {
	case err == nil:
		session, fetchErr := m.platform.FetchSession(ctx, sessionID)
		if fetchErr == nil && !session.Completed() {
			return m.remember(ctx, owner, session)
		}
		if fetchErr != nil {
			log.Warn().Err(fetchErr).Str("session_id", sessionID).Msg("service: stored checkout session unavailable, creating a new one")
		} else {
			log.Info().Str("session_id", sessionID).Msg("service: stored checkout session completed, creating a new one")
		}
		if err := m.forget(ctx, owner); err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("service: failed to read checkout session id: %w", err)
	}

	return m.create(ctx, owner)
}

func (m *Manager) AddLineItem(ctx context.Context, owner, sessionID string, input LineItemInput) (*Session, error) {
	if err := m.validateLineItem(input); err != nil {
		return nil, err
	}

	return m.mutate(ctx, owner, sessionID, "add line item", true, func(id string) (*Session, error) {
		return m.platform.AddLineItems(ctx, id, []LineItemInput{input})
	})
}

// UpdateLineItemQuantity rejects quantities below one instead of flooring
// them. On a recreated session the line item no longer exists, so the fresh
// session is returned as is.
func (m *Manager) UpdateLineItemQuantity(ctx context.Context, owner, sessionID, lineItemID string, quantity int) (*Session, error) {
	fields := make([]string, 0)
	if lineItemID == "" {
		fields = append(fields, "line_item_id")
	}
	if quantity < 1 {
		fields = append(fields, "quantity")
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("checkout.update_line_item", fields...)
	}

	return m.mutate(ctx, owner, sessionID, "update line item", false, func(id string) (*Session, error) {
		return m.platform.UpdateLineItemQuantity(ctx, id, lineItemID, quantity)
	})
}

func (m *Manager) RemoveLineItem(ctx context.Context, owner, sessionID, lineItemID string) (*Session, error) {
	if lineItemID == "" {
		return nil, apperror.Validation("checkout.remove_line_item", "line_item_id")
	}

	return m.mutate(ctx, owner, sessionID, "remove line item", false, func(id string) (*Session, error) {
		return m.platform.RemoveLineItem(ctx, id, lineItemID)
	})
}

// UpdateContact sends the email to the platform. The phone has no checkout
// field on the platform and is kept next to the session.
func (m *Manager) UpdateContact(ctx context.Context, owner, sessionID string, contact Contact) (*Session, error) {
	contact.Email = strings.TrimSpace(contact.Email)
	contact.Phone = strings.TrimSpace(contact.Phone)
	if err := m.validate.Struct(contact); err != nil {
		return nil, apperror.Validation("checkout.update_contact", "email")
	}

	if err := store.SetJSON(ctx, m.store, contactKey(owner), contact); err != nil {
		return nil, fmt.Errorf("service: failed to persist contact: %w", err)
	}

	return m.mutate(ctx, owner, sessionID, "update contact", true, func(id string) (*Session, error) {
		return m.platform.UpdateEmail(ctx, id, contact.Email)
	})
}

func (m *Manager) UpdateShippingAddress(ctx context.Context, owner, sessionID string, addr address.Address) (*Session, error) {
	addr = addr.Normalized()
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	return m.mutate(ctx, owner, sessionID, "update shipping address", true, func(id string) (*Session, error) {
		return m.platform.UpdateShippingAddress(ctx, id, addr)
	})
}

// AssociateCustomer links the session to a signed-in customer. The access
// token is opaque and is persisted for the browsing context.
func (m *Manager) AssociateCustomer(ctx context.Context, owner, sessionID, accessToken string) (*Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, apperror.Validation("checkout.associate_customer", "access_token")
	}

	if err := m.store.Set(ctx, TokenKey(owner), accessToken); err != nil {
		return nil, fmt.Errorf("service: failed to persist customer token: %w", err)
	}

	return m.mutate(ctx, owner, sessionID, "associate customer", true, func(id string) (*Session, error) {
		return m.platform.AssociateCustomer(ctx, id, accessToken)
	})
}

// Invalidate drops the stored session. When sessionID is given and another
// context already replaced the stored id, the newer session is left alone.
func (m *Manager) Invalidate(ctx context.Context, owner, sessionID string) error {
	stored, err := m.store.Get(ctx, sessionKey(owner))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("service: failed to read checkout session id: %w", err)
	}

	if sessionID != "" && stored != sessionID {
		log.Info().Str("session_id", sessionID).Str("current_session_id", stored).Msg("service: session already replaced, nothing to invalidate")
		return nil
	}

	if err := m.forget(ctx, owner); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, contactKey(owner)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("service: failed to delete contact: %w", err)
	}

	log.Info().Str("session_id", stored).Msg("service: checkout session invalidated")
	return nil
}

// Snapshot returns the last platform-confirmed session without a network call.
func (m *Manager) Snapshot(ctx context.Context, owner string) (*Session, error) {
	var session Session
	if err := store.GetJSON(ctx, m.store, snapshotKey(owner), &session); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("checkout.snapshot", "no checkout session")
		}
		return nil, fmt.Errorf("service: failed to read session snapshot: %w", err)
	}
	return &session, nil
}

// mutate runs call against the session. When the platform reports the session
// completed or gone, a new session is created and call is retried once on it,
// or the fresh session is returned when replay is false.
func (m *Manager) mutate(ctx context.Context, owner, sessionID, op string, replay bool, call func(id string) (*Session, error)) (*Session, error) {
	if owner == "" {
		return nil, apperror.Validation("checkout."+strings.ReplaceAll(op, " ", "_"), "context")
	}

	if sessionID == "" {
		current, err := m.GetOrCreateSession(ctx, owner)
		if err != nil {
			return nil, err
		}
		sessionID = current.ID
	}

	session, err := call(sessionID)
	if err == nil {
		return m.remember(ctx, owner, session)
	}
	if !errors.Is(err, ErrSessionCompleted) && !errors.Is(err, ErrSessionNotFound) {
		log.Error().Err(err).Str("session_id", sessionID).Msgf("service: failed to %s", op)
		return nil, fmt.Errorf("service: failed to %s: %w", op, err)
	}

	log.Warn().Err(err).Str("session_id", sessionID).Msgf("service: session unusable for %s, recreating", op)
	if err := m.forget(ctx, owner); err != nil {
		return nil, err
	}
	fresh, err := m.create(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !replay {
		return fresh, nil
	}

	session, err = call(fresh.ID)
	if err != nil {
		log.Error().Err(err).Str("session_id", fresh.ID).Msgf("service: retry failed to %s", op)
		return nil, fmt.Errorf("service: failed to %s: %w", op, err)
	}
	return m.remember(ctx, owner, session)
}

func (m *Manager) create(ctx context.Context, owner string) (*Session, error) {
	session, err := m.platform.CreateSession(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to create checkout session")
		return nil, fmt.Errorf("service: failed to create checkout session: %w", err)
	}

	if err := m.store.Set(ctx, sessionKey(owner), session.ID); err != nil {
		return nil, fmt.Errorf("service: failed to persist checkout session id: %w", err)
	}

	log.Info().Str("session_id", session.ID).Msg("service: checkout session created")
	return m.remember(ctx, owner, session)
}

// remember overwrites the snapshot so derived totals always come from the
// latest platform-confirmed state.
func (m *Manager) remember(ctx context.Context, owner string, session *Session) (*Session, error) {
	if session.Phone == "" {
		var contact Contact
		if err := store.GetJSON(ctx, m.store, contactKey(owner), &contact); err == nil {
			session.Phone = contact.Phone
		}
	}

	if err := store.SetJSON(ctx, m.store, snapshotKey(owner), session); err != nil {
		return nil, fmt.Errorf("service: failed to write session snapshot: %w", err)
	}
	return session, nil
}

func (m *Manager) forget(ctx context.Context, owner string) error {
	for _, key := range []string{sessionKey(owner), snapshotKey(owner)} {
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("service: failed to delete %s: %w", key, err)
		}
	}
	return nil
}

func (m *Manager) validateLineItem(input LineItemInput) error {
	fields := make([]string, 0)
	if strings.TrimSpace(input.VariantID) == "" {
		fields = append(fields, "variant_id")
	}
	if input.Quantity < 1 {
		fields = append(fields, "quantity")
	}
	for _, attr := range input.Attributes {
		if strings.TrimSpace(attr.Key) == "" {
			fields = append(fields, "attributes.key")
			continue
		}
		if limit := m.limits.maxFor(attr.Key); limit > 0 && utf8.RuneCountInString(attr.Value) > limit {
			fields = append(fields, "attributes."+attr.Key)
		}
	}
	if len(fields) > 0 {
		return apperror.Validation("checkout.add_line_item", fields...)
	}
	return nil
}
