package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

const MaxMembersPageSize = 500

type ListMembersRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (r ListMembersRequest) Validate() error {
	var errs []string

	if r.Limit < 0 || r.Limit > MaxMembersPageSize {
		errs = append(errs, "limit must be between 0 and 500")
	}
	if r.Offset < 0 {
		errs = append(errs, "offset must not be negative")
	}

	if len(errs) > 0 {
		return domain.NewValidationError(errs...)
	}
	return nil
}

type LookupMemberRequest struct {
	Email string `json:"email"`
}

func (r LookupMemberRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return domain.NewValidationError("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.NewValidationError("email is not a valid address")
	}
	return nil
}

type MemberResponse struct {
	ID               string    `json:"id"`
	Fullname         string    `json:"fullname"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Tier             string    `json:"tier"`
	TierName         string    `json:"tierName"`
	AmountPaid       string    `json:"amountPaid"`
	Currency         string    `json:"currency"`
	ReceiptURL       string    `json:"receiptUrl"`
	PaymentReference string    `json:"paymentReference"`
	Provider         string    `json:"provider"`
	VerifiedAt       time.Time `json:"verifiedAt"`
}

func NewMemberResponse(record domain.MembershipRecord) MemberResponse {
	return MemberResponse{
		ID:               record.ID,
		Fullname:         record.Fullname,
		Email:            record.Email,
		Phone:            record.Phone,
		Tier:             record.Tier,
		TierName:         record.TierName,
		AmountPaid:       record.AmountPaid.StringFixed(2),
		Currency:         record.Currency,
		ReceiptURL:       record.ReceiptURL,
		PaymentReference: record.PaymentReference,
		Provider:         string(record.Provider),
		VerifiedAt:       record.VerifiedAt,
	}
}
