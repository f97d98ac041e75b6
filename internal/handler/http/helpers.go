package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/order"
)

// ContextHeader identifies the browsing context a checkout belongs to.
const ContextHeader = "X-Checkout-Context"

type ErrorResponse struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	PaymentID string   `json:"payment_id,omitempty"`
	Amount    string   `json:"amount,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}

// respondWithServiceError reports a service failure. Payment identifiers are
// always passed through so a captured payment can be reconciled by hand.
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	code := mapErrorToStatusCode(err)
	response := ErrorResponse{Error: fallback}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		response.Kind = appErr.Kind.String()
		response.Fields = appErr.Fields
		response.PaymentID = appErr.PaymentID
		response.Amount = appErr.Amount
		response.Retryable = appErr.Retryable()
		if appErr.Message != "" && appErr.Kind != apperror.KindUnknown {
			response.Error = appErr.Message
		}
	} else if code != http.StatusInternalServerError {
		response.Error = err.Error()
	}

	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("handler: request failed")
	} else {
		log.Warn().Err(err).Int("status", code).Msg("handler: request rejected")
	}

	respondWithJSON(w, code, response)
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, checkout.ErrLineItemNotFound),
		errors.Is(err, checkout.ErrSessionNotFound):
		return http.StatusNotFound
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindSignature:
		return http.StatusUnprocessableEntity
	case apperror.KindGateway:
		return http.StatusPaymentRequired
	case apperror.KindPlatform:
		if appErr.Status >= http.StatusInternalServerError || appErr.Status == 0 {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case apperror.KindNetwork:
		return http.StatusBadGateway
	case apperror.KindConfig:
		return http.StatusServiceUnavailable
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate decodes a JSON body into dst and runs its validate tags.
// It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("handler: failed to decode request body")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
			return false
		}
		log.Error().Err(err).Type("validation_error_type", err).Msg("handler: unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return false
	}

	return true
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email address"
		case "min", "gte":
			details[field] = "must be at least " + fe.Param()
		case "max", "lte":
			details[field] = "must be at most " + fe.Param()
		case "oneof":
			details[field] = "must be one of: " + fe.Param()
		default:
			details[field] = "failed on " + fe.Tag()
		}
	}
	return details
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// requireContext resolves the browsing context of a checkout request.
func requireContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get(ContextHeader)) == "" {
			respondWithError(w, http.StatusBadRequest, ContextHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func contextID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ContextHeader))
}
