package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

// requestFields are attached to every line logged for r.
func requestFields(r *http.Request) logger.Fields {
	fields := logger.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"remoteAddr": r.RemoteAddr,
	}
	if r.URL.RawQuery != "" {
		fields["query"] = r.URL.RawQuery
	}
	if provider := r.PathValue("provider"); provider != "" {
		fields["provider"] = provider
	}
	return fields
}

func logRequest(r *http.Request, payload any) {
	fields := requestFields(r)
	if payload != nil {
		fields["payload"] = logger.SanitizePayload(payload)
	}
	logger.Info("http request", fields)
}

func logResponse(r *http.Request, status int, payload any, start time.Time) {
	fields := requestFields(r)
	fields["status"] = status
	fields["durationMs"] = time.Since(start).Milliseconds()
	fields["response"] = logger.SanitizePayload(payload)
	logger.Info("http response", fields)
}

// logError picks the level from the error: tampering and bad signatures are
// security events, client mistakes are warnings, everything else is an error.
func logError(r *http.Request, err error, extra logger.Fields) {
	fields := requestFields(r)
	for k, v := range extra {
		fields[k] = v
	}

	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrInvalidSignature), domain.IsMismatch(err), errors.Is(err, domain.ErrReferenceMismatch):
		fields["error"] = err.Error()
		logger.Security("http request rejected", fields)
	case errors.As(err, &validationErr), errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrUnsupportedProvider):
		fields["error"] = err.Error()
		logger.Warn("http request failed", fields)
	default:
		logger.Error("http handler error", err, fields)
	}
}
