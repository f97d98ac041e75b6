package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
)

// CheckoutService is the session manager as the handlers use it.
type CheckoutService interface {
	GetOrCreateSession(ctx context.Context, owner string) (*checkout.Session, error)
	AddLineItem(ctx context.Context, owner, sessionID string, input checkout.LineItemInput) (*checkout.Session, error)
	UpdateLineItemQuantity(ctx context.Context, owner, sessionID, lineItemID string, quantity int) (*checkout.Session, error)
	RemoveLineItem(ctx context.Context, owner, sessionID, lineItemID string) (*checkout.Session, error)
	UpdateContact(ctx context.Context, owner, sessionID string, contact checkout.Contact) (*checkout.Session, error)
	UpdateShippingAddress(ctx context.Context, owner, sessionID string, addr address.Address) (*checkout.Session, error)
	AssociateCustomer(ctx context.Context, owner, sessionID, accessToken string) (*checkout.Session, error)
	Invalidate(ctx context.Context, owner, sessionID string) error
	Snapshot(ctx context.Context, owner string) (*checkout.Session, error)
}

type PostalLookup interface {
	Lookup(ctx context.Context, code string) (*address.Suggestion, error)
}

type AttributeRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type AddLineItemRequest struct {
	VariantID  string             `json:"variant_id" validate:"required"`
	Quantity   int                `json:"quantity" validate:"required,min=1"`
	Attributes []AttributeRequest `json:"attributes" validate:"dive"`
}

type UpdateLineItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type UpdateContactRequest struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

type UpdateShippingAddressRequest struct {
	Address address.Address `json:"address"`
}

type AssociateCustomerRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// SessionResponse is a session with its derived item count.
type SessionResponse struct {
	*checkout.Session
	ItemCount int `json:"item_count"`
}

func newSessionResponse(s *checkout.Session) SessionResponse {
	return SessionResponse{Session: s, ItemCount: s.ItemCount()}
}

type CheckoutHandler struct {
	service  CheckoutService
	postal   PostalLookup
	validate *validator.Validate
}

func NewCheckoutHandler(service CheckoutService, postal PostalLookup) *CheckoutHandler {
	return &CheckoutHandler{
		service:  service,
		postal:   postal,
		validate: newValidator(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(requireContext)
		r.Get("/checkout", h.handleGetSession)
		r.Delete("/checkout", h.handleInvalidate)
		r.Get("/checkout/snapshot", h.handleSnapshot)
		r.Post("/checkout/lines", h.handleAddLineItem)
		r.Patch("/checkout/lines/{lineID}", h.handleUpdateLineItem)
		r.Delete("/checkout/lines/{lineID}", h.handleRemoveLineItem)
		r.Put("/checkout/contact", h.handleUpdateContact)
		r.Put("/checkout/shipping-address", h.handleUpdateShippingAddress)
		r.Put("/checkout/customer", h.handleAssociateCustomer)
	})
	router.Get("/postal-codes/{code}", h.handleLookupPostalCode)
}

func (h *CheckoutHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetOrCreateSession(r.Context(), contextID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to load checkout")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Snapshot(r.Context(), contextID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to load checkout snapshot")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context(), contextID(r), ""); err != nil {
		respondWithServiceError(w, err, "Failed to discard checkout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) handleAddLineItem(w http.ResponseWriter, r *http.Request) {
	var requestPayload AddLineItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	input := checkout.LineItemInput{
		VariantID:  requestPayload.VariantID,
		Quantity:   requestPayload.Quantity,
		Attributes: make([]checkout.Attribute, 0, len(requestPayload.Attributes)),
	}
	for _, a := range requestPayload.Attributes {
		input.Attributes = append(input.Attributes, checkout.Attribute{Key: a.Key, Value: a.Value})
	}

	session, err := h.service.AddLineItem(r.Context(), contextID(r), "", input)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add line item")
		return
	}
	respondWithJSON(w, http.StatusCreated, newSessionResponse(session))
}

func (h *CheckoutHandler) handleUpdateLineItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")

	var requestPayload UpdateLineItemRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	session, err := h.service.UpdateLineItemQuantity(r.Context(), contextID(r), "", lineID, requestPayload.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update line item")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleRemoveLineItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")

	session, err := h.service.RemoveLineItem(r.Context(), contextID(r), "", lineID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to remove line item")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpdateContactRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	contact := checkout.Contact{
		Email: strings.TrimSpace(requestPayload.Email),
		Phone: strings.TrimSpace(requestPayload.Phone),
	}
	session, err := h.service.UpdateContact(r.Context(), contextID(r), "", contact)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update contact")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleUpdateShippingAddress(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpdateShippingAddressRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	session, err := h.service.UpdateShippingAddress(r.Context(), contextID(r), "", requestPayload.Address)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update shipping address")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleAssociateCustomer(w http.ResponseWriter, r *http.Request) {
	var requestPayload AssociateCustomerRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	session, err := h.service.AssociateCustomer(r.Context(), contextID(r), "", requestPayload.AccessToken)
	if err != nil {
		respondWithServiceError(w, err, "Failed to associate customer")
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

func (h *CheckoutHandler) handleLookupPostalCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if !address.ValidIndiaPostalCode(code) {
		respondWithError(w, http.StatusBadRequest, "Postal code must be exactly 6 digits")
		return
	}

	suggestion, err := h.postal.Lookup(r.Context(), code)
	if err != nil {
		log.Warn().Err(err).Str("postal_code", code).Msg("handler: postal lookup failed")
	}
	if suggestion == nil {
		suggestion = &address.Suggestion{PostalCode: code}
	}
	respondWithJSON(w, http.StatusOK, suggestion)
}
