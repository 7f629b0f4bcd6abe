package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

const multipartOverhead = 1 << 20

type IntentService interface {
	CreateIntent(ctx context.Context, req models.CreateIntentRequest) (commons.Response[models.CreateIntentResponse], error)
}

type IntentController struct {
	service         IntentService
	maxReceiptBytes int64
}

func NewIntentController(service IntentService, maxReceiptBytes int64) *IntentController {
	if maxReceiptBytes <= 0 {
		maxReceiptBytes = 5 << 20
	}
	return &IntentController{service: service, maxReceiptBytes: maxReceiptBytes}
}

func (c *IntentController) RegisterRoutes(mux *http.ServeMux, _ func(http.Handler) http.Handler) {
	mux.HandleFunc("/memberships/intents", c.createIntent)
}

func (c *IntentController) createIntent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	if r.Method != http.MethodPost {
		response := commons.ErrorResponse[models.CreateIntentResponse]("method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, response)
		logResponse(r, http.StatusMethodNotAllowed, response, start)
		return
	}

	req, err := c.decode(w, r)
	if err != nil {
		logError(r, err, nil)
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		response := commons.ErrorResponse[models.CreateIntentResponse]("invalid request body", err.Error())
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}
	logRequest(r, req)

	response, err := c.service.CreateIntent(r.Context(), req)
	if err != nil {
		logError(r, err, logger.Fields{"message": response.Message})
		status := statusFor(err)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusCreated, response)
	logResponse(r, http.StatusCreated, response, start)
}

func (c *IntentController) decode(w http.ResponseWriter, r *http.Request) (models.CreateIntentRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxReceiptBytes+multipartOverhead)
	if err := r.ParseMultipartForm(c.maxReceiptBytes + multipartOverhead); err != nil {
		return models.CreateIntentRequest{}, fmt.Errorf("parse multipart form: %w", err)
	}

	req := models.CreateIntentRequest{
		Fullname:   r.FormValue("fullname"),
		Email:      r.FormValue("email"),
		Phone:      r.FormValue("phone"),
		Membership: r.FormValue("membership"),
		Amount:     r.FormValue("amount"),
		Provider:   r.FormValue("provider"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return models.CreateIntentRequest{}, fmt.Errorf("read receipt image: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, c.maxReceiptBytes+1))
	if err != nil {
		return models.CreateIntentRequest{}, fmt.Errorf("read receipt image: %w", err)
	}
	req.Receipt = &models.ReceiptFile{
		Content:     content,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}
	return req, nil
}
