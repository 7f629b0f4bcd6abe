package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MembershipRecord struct {
	ID               string
	Fullname         string
	Email            string
	Phone            string
	Tier             string
	TierName         string
	AmountPaid       decimal.Decimal
	Currency         string
	ReceiptURL       string
	PaymentReference string
	Provider         Provider
	ProviderTxID     string
	VerifiedAt       time.Time
}
