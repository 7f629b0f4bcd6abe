package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aspoi/membership-payments/src/internal/adapter/gateway"
	"github.com/aspoi/membership-payments/src/internal/adapter/repository/memory"
	"github.com/aspoi/membership-payments/src/internal/config"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/usecase/services"
)

type stubAdapter struct {
	provider     domain.Provider
	initiateFn   func(ctx context.Context, intent domain.PaymentIntent) (domain.Initiation, error)
	fetchFn      func(ctx context.Context, lookup domain.VerificationLookup) ([]byte, error)
	normalizeFn  func(raw []byte) (domain.VerificationSignal, error)
	extractRefFn func(raw []byte) (string, error)
	authFn       func(header http.Header, body []byte) error
}

func (s *stubAdapter) Provider() domain.Provider {
	return s.provider
}

func (s *stubAdapter) Initiate(ctx context.Context, intent domain.PaymentIntent) (domain.Initiation, error) {
	if s.initiateFn == nil {
		return domain.Initiation{RedirectURL: "https://pay.example.com/" + intent.Reference, ProviderRef: intent.Reference}, nil
	}
	return s.initiateFn(ctx, intent)
}

func (s *stubAdapter) FetchVerification(ctx context.Context, lookup domain.VerificationLookup) ([]byte, error) {
	return s.fetchFn(ctx, lookup)
}

func (s *stubAdapter) NormalizeVerification(raw []byte) (domain.VerificationSignal, error) {
	if s.normalizeFn == nil {
		return decodeTestSignal(s.provider, raw)
	}
	return s.normalizeFn(raw)
}

func (s *stubAdapter) ExtractReference(raw []byte) (string, error) {
	if s.extractRefFn == nil {
		signal, err := decodeTestSignal(s.provider, raw)
		return signal.ProviderReference, err
	}
	return s.extractRefFn(raw)
}

func (s *stubAdapter) AuthenticateWebhook(header http.Header, body []byte) error {
	if s.authFn == nil {
		return nil
	}
	return s.authFn(header, body)
}

type testPayload struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	TxID      string `json:"txId"`
}

func payload(t *testing.T, reference string, amount string, currency string, status domain.ProviderStatus) []byte {
	t.Helper()
	raw, err := json.Marshal(testPayload{
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
		Status:    string(status),
		TxID:      "tx-" + reference,
	})
	require.NoError(t, err)
	return raw
}

func decodeTestSignal(provider domain.Provider, raw []byte) (domain.VerificationSignal, error) {
	var p testPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.VerificationSignal{}, err
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return domain.VerificationSignal{}, err
	}
	return domain.VerificationSignal{
		Provider:              provider,
		ProviderReference:     p.Reference,
		ProviderTransactionID: p.TxID,
		ReportedAmount:        amount,
		ReportedCurrency:      p.Currency,
		ProviderStatus:        domain.ProviderStatus(p.Status),
		RawStatus:             p.Status,
		CustomerEmail:         "provider@example.com",
	}, nil
}

type stubObjectStore struct {
	mu    sync.Mutex
	keys  []string
	putFn func(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

func (s *stubObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	if s.putFn == nil {
		return s.URL(key), nil
	}
	return s.putFn(ctx, key, body, contentType)
}

func (s *stubObjectStore) URL(key string) string {
	return "https://cdn.example.com/" + key
}

func (s *stubObjectStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

type fixture struct {
	intents        *memory.IntentRepository
	memberships    *memory.MembershipRepository
	pricing        *services.PricingService
	store          *stubObjectStore
	adapter        *stubAdapter
	intentSvc      *services.IntentService
	reconciliation *services.ReconciliationService
}

func newFixture(t *testing.T, catalog domain.Catalog) *fixture {
	t.Helper()

	memberships := memory.NewMembershipRepository()
	intents := memory.NewIntentRepository(memberships)
	pricing := services.NewPricingService(catalog, nil)
	store := &stubObjectStore{}
	adapter := &stubAdapter{provider: domain.ProviderPaystack}
	registry := gateway.NewRegistry(adapter)

	return &fixture{
		intents:        intents,
		memberships:    memberships,
		pricing:        pricing,
		store:          store,
		adapter:        adapter,
		intentSvc:      services.NewIntentService(intents, pricing, services.NewReceiptService(store, 0, nil), registry, domain.ProviderPaystack, "ASPOI", nil),
		reconciliation: services.NewReconciliationService(intents, memberships, pricing, registry, nil),
	}
}

func defaultFixture(t *testing.T) *fixture {
	return newFixture(t, config.DefaultCatalog())
}

// seedIntent stores a pending intent directly so reconciliation tests do not
// depend on the creation path.
func (f *fixture) seedIntent(t *testing.T, reference string, tier string) domain.PaymentIntent {
	t.Helper()
	resolved, err := f.pricing.PriceOf(tier)
	require.NoError(t, err)

	receiptURL := "https://cdn.example.com/receipts/2025-01/1_receipt.png"
	intent, err := f.intents.Create(context.Background(), domain.PaymentIntent{
		ID:                  "id-" + reference,
		Reference:           reference,
		Provider:            domain.ProviderPaystack,
		Tier:                resolved.ID,
		TierName:            resolved.Name,
		CatalogVersion:      f.pricing.Version(),
		AuthoritativeAmount: resolved.Price,
		Currency:            f.pricing.Currency(),
		Customer:            domain.Customer{Name: "Ada Obi", Email: "ada@example.com", Phone: "08010000000"},
		ReceiptURL:          &receiptURL,
		Status:              domain.IntentStatusPending,
	})
	require.NoError(t, err)
	return intent
}

func (f *fixture) membershipCount(t *testing.T) int {
	t.Helper()
	records, err := f.memberships.List(context.Background(), 500, 0)
	require.NoError(t, err)
	return len(records)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

var errProviderDown = errors.New("provider down")

var fixedUpload = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
