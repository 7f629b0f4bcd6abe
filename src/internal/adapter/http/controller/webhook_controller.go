package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

const maxWebhookBytes = 1 << 20

type WebhookService interface {
	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (commons.Response[models.VerificationResponse], error)
}

type WebhookController struct {
	service WebhookService
}

func NewWebhookController(service WebhookService) *WebhookController {
	return &WebhookController{service: service}
}

func (c *WebhookController) RegisterRoutes(mux *http.ServeMux, _ func(http.Handler) http.Handler) {
	mux.HandleFunc("/payments/{provider}/webhook", c.receive)
}

func (c *WebhookController) receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	provider := r.PathValue("provider")
	logRequest(r, nil)

	if r.Method != http.MethodPost {
		response := commons.ErrorResponse[models.VerificationResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
	if err == nil && len(body) > maxWebhookBytes {
		err = fmt.Errorf("webhook body exceeds %d bytes", maxWebhookBytes)
	}
	if err != nil {
		logError(r, err, nil)
		response := commons.ErrorResponse[models.VerificationResponse]("invalid request body", err.Error())
		writeJSON(w, http.StatusBadRequest, response)
		logResponse(r, http.StatusBadRequest, response, start)
		return
	}

	response, err := c.service.HandleWebhook(r.Context(), provider, r.Header, body)
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
