package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "PENDING"
	IntentStatusVerified  IntentStatus = "VERIFIED"
	IntentStatusFailed    IntentStatus = "FAILED"
	IntentStatusCancelled IntentStatus = "CANCELLED"
)

func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusVerified || s == IntentStatusFailed || s == IntentStatusCancelled
}

type Provider string

const (
	ProviderPaystack    Provider = "paystack"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderStripe      Provider = "stripe"
)

type Customer struct {
	Name  string
	Email string
	Phone string
}

type PaymentIntent struct {
	ID                  string
	Reference           string
	Provider            Provider
	Tier                string
	TierName            string
	CatalogVersion      string
	AuthoritativeAmount decimal.Decimal
	Currency            string
	ClientAmount        *string
	Customer            Customer
	ReceiptToken        *string
	ReceiptURL          *string
	Status              IntentStatus
	FailureReason       *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ResolvedAt          *time.Time
}
