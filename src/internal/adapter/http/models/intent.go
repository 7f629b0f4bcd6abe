package models

import (
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

type ReceiptFile struct {
	Content     []byte
	ContentType string
	Filename    string
}

type CreateIntentRequest struct {
	Fullname   string       `json:"fullname"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone"`
	Membership string       `json:"membership"`
	Amount     string       `json:"amount,omitempty"`
	Provider   string       `json:"provider,omitempty"`
	Receipt    *ReceiptFile `json:"-"`
}

func (r CreateIntentRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.Fullname) == "" {
		errs = append(errs, "fullname is required")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		errs = append(errs, "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, "email is not a valid address")
	}
	if strings.TrimSpace(r.Phone) == "" {
		errs = append(errs, "phone is required")
	}
	if strings.TrimSpace(r.Membership) == "" {
		errs = append(errs, "membership is required")
	}
	if amount := strings.TrimSpace(r.Amount); amount != "" {
		if _, err := decimal.NewFromString(amount); err != nil {
			errs = append(errs, "amount must be numeric when supplied")
		}
	}
	if r.Receipt == nil || len(r.Receipt.Content) == 0 {
		errs = append(errs, "receipt image is required")
	}

	if len(errs) > 0 {
		return domain.NewValidationError(errs...)
	}
	return nil
}

type CreateIntentResponse struct {
	Reference   string `json:"reference"`
	Provider    string `json:"provider"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Tier        string `json:"tier"`
	TierName    string `json:"tierName"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	ReceiptURL  string `json:"receiptUrl,omitempty"`
	Status      string `json:"status"`
}
