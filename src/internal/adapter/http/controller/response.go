package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps a service error to the HTTP status returned to callers.
func statusFor(err error) int {
	var validationErr *domain.ValidationError
	var gatewayErr *domain.GatewayError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnsupportedProvider), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case domain.IsMismatch(err), errors.Is(err, domain.ErrReferenceMismatch), errors.Is(err, domain.ErrUnknownTier):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
