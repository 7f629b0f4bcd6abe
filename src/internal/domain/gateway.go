package domain

import "context"

type Initiation struct {
	RedirectURL string
	ProviderRef string
}

// PaymentGateway is implemented once per provider wire protocol.
type PaymentGateway interface {
	Provider() Provider
	Initiate(ctx context.Context, intent PaymentIntent) (Initiation, error)
	FetchVerification(ctx context.Context, lookup VerificationLookup) ([]byte, error)
	NormalizeVerification(raw []byte) (VerificationSignal, error)
}
