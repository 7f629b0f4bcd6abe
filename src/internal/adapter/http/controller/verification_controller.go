package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

type VerificationService interface {
	VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (commons.Response[models.VerificationResponse], error)
}

type VerificationController struct {
	service VerificationService
}

func NewVerificationController(service VerificationService) *VerificationController {
	return &VerificationController{service: service}
}

func (c *VerificationController) RegisterRoutes(mux *http.ServeMux, _ func(http.Handler) http.Handler) {
	mux.HandleFunc("/payments/verify", c.verify)
}

func (c *VerificationController) verify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodGet {
		response := commons.ErrorResponse[models.VerificationResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	query := r.URL.Query()
	// Paystack redirects with reference/trxref, Flutterwave with tx_ref.
	req := models.VerifyPaymentRequest{
		Reference:     firstQueryValue(query.Get("reference"), query.Get("tx_ref"), query.Get("trxref")),
		TransactionID: query.Get("transaction_id"),
		SessionID:     query.Get("session_id"),
	}

	response, err := c.service.VerifyPayment(r.Context(), req)
	if err != nil {
		logError(r, err, logger.Fields{"message": response.Message})
		status := statusFor(err)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}

func firstQueryValue(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
