package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/storefront-checkout/internal/carrier"
	"github.com/vasiliy-maslov/storefront-checkout/internal/tracking"
)

type CancellationRequest struct {
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason" validate:"required"`
}

type OverrideRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type TrackingHandler struct {
	service  tracking.Service
	validate *validator.Validate
}

func NewTrackingHandler(service tracking.Service) *TrackingHandler {
	return &TrackingHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *TrackingHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders/{orderID}/tracking", h.handleTrackOrder)
	router.Post("/orders/{orderID}/cancellation", h.handleRequestCancellation)
	router.Get("/tracking/{trackingNumber}", h.handleGetLiveStatus)
	router.Put("/tracking/{trackingNumber}/override", h.handleSetOverride)
	router.Delete("/tracking/{trackingNumber}/override", h.handleClearOverride)
	router.Put("/tracking/{trackingNumber}/cancelled", h.handleSetCancelled)
}

func (h *TrackingHandler) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.TrackOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithServiceError(w, err, "Failed to track order")
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *TrackingHandler) handleRequestCancellation(w http.ResponseWriter, r *http.Request) {
	var requestPayload CancellationRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	outcome, err := h.service.RequestCancellation(r.Context(), chi.URLParam(r, "orderID"), requestPayload.OrderNumber, requestPayload.Reason)
	if err != nil {
		respondWithServiceError(w, err, "Failed to request cancellation")
		return
	}

	code := http.StatusCreated
	if outcome.AlreadyRequested {
		code = http.StatusOK
	}
	respondWithJSON(w, code, outcome)
}

// handleGetLiveStatus resolves one tracking number. The carrier query
// parameter is a name hint; status is the platform status used when the
// carrier cannot be reached.
func (h *TrackingHandler) handleGetLiveStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.service.GetLiveStatus(r.Context(), chi.URLParam(r, "trackingNumber"), query.Get("carrier"), query.Get("status"))
	if err != nil {
		respondWithServiceError(w, err, "Failed to resolve tracking status")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *TrackingHandler) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var requestPayload OverrideRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	stage := carrier.Stage(strings.ToUpper(strings.TrimSpace(requestPayload.Stage)))
	result, err := h.service.SetManualStatus(r.Context(), chi.URLParam(r, "trackingNumber"), stage)
	if err != nil {
		respondWithServiceError(w, err, "Failed to set tracking status")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *TrackingHandler) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearOverride(r.Context(), chi.URLParam(r, "trackingNumber")); err != nil {
		respondWithServiceError(w, err, "Failed to clear tracking status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrackingHandler) handleSetCancelled(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SetCancelled(r.Context(), chi.URLParam(r, "trackingNumber")); err != nil {
		respondWithServiceError(w, err, "Failed to mark shipment cancelled")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
