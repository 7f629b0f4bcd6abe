package models

import (
	"strings"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

type VerifyPaymentRequest struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
}

func (r VerifyPaymentRequest) Validate() error {
	var errs []string

	reference := strings.TrimSpace(r.Reference)
	if reference == "" {
		errs = append(errs, "reference is required")
	}
	if len(reference) > 64 {
		errs = append(errs, "reference must not exceed 64 characters")
	}
	if strings.TrimSpace(r.TransactionID) != "" && strings.TrimSpace(r.SessionID) != "" {
		errs = append(errs, "transactionId and sessionId cannot both be supplied")
	}

	if len(errs) > 0 {
		return domain.NewValidationError(errs...)
	}
	return nil
}

type VerificationResponse struct {
	Reference      string `json:"reference"`
	Provider       string `json:"provider"`
	Status         string `json:"status"`
	ProviderStatus string `json:"providerStatus,omitempty"`
	Tier           string `json:"tier"`
	TierName       string `json:"tierName"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	MembershipID   string `json:"membershipId,omitempty"`
	Idempotent     bool   `json:"idempotent"`
	NeedsReview    bool   `json:"needsReview,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
}
