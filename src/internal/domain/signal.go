package domain

import "github.com/shopspring/decimal"

type ProviderStatus string

const (
	ProviderStatusSuccessful ProviderStatus = "SUCCESSFUL"
	ProviderStatusFailed     ProviderStatus = "FAILED"
	ProviderStatusPending    ProviderStatus = "PENDING"
	ProviderStatusCancelled  ProviderStatus = "CANCELLED"
	ProviderStatusUnknown    ProviderStatus = "UNKNOWN"
)

// VerificationSignal is the canonical projection of a provider verification
// payload. ReportedAmount is already in major units.
type VerificationSignal struct {
	Provider              Provider
	ProviderReference     string
	ProviderTransactionID string
	ReportedAmount        decimal.Decimal
	ReportedCurrency      string
	ProviderStatus        ProviderStatus
	RawStatus             string
	CustomerEmail         string
	CustomerPhone         string
	Metadata              map[string]any
}

// VerificationLookup carries whatever identifiers the redirect supplied.
type VerificationLookup struct {
	Reference             string
	ProviderTransactionID string
}
