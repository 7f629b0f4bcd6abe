package services_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/domain"
)

func createRequest(membership string, amount string) models.CreateIntentRequest {
	return models.CreateIntentRequest{
		Fullname:   "Ada Obi",
		Email:      "ada@example.com",
		Phone:      "08010000000",
		Membership: membership,
		Amount:     amount,
		Receipt: &models.ReceiptFile{
			Content:     pngHeader,
			ContentType: "image/png",
			Filename:    "transfer.png",
		},
	}
}

func TestIntentServiceCreateIntentUsesCatalogPrice(t *testing.T) {
	f := defaultFixture(t)

	var initiated domain.PaymentIntent
	f.adapter.initiateFn = func(_ context.Context, intent domain.PaymentIntent) (domain.Initiation, error) {
		initiated = intent
		return domain.Initiation{RedirectURL: "https://checkout.example.com/abc", ProviderRef: "abc"}, nil
	}

	resp, err := f.intentSvc.CreateIntent(context.Background(), createRequest("Corporate", "1"))
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)

	assert.Regexp(t, regexp.MustCompile(`^ASPOI-\d+-[A-Z0-9]{9}$`), resp.Data.Reference)
	assert.Equal(t, "https://checkout.example.com/abc", resp.Data.RedirectURL)
	assert.Equal(t, "750000.00", resp.Data.Amount)
	assert.Equal(t, "NGN", resp.Data.Currency)
	assert.Equal(t, "corporate", resp.Data.Tier)

	assert.True(t, initiated.AuthoritativeAmount.Equal(decimal.NewFromInt(750000)))
	require.NotNil(t, initiated.ClientAmount)
	assert.Equal(t, "1", *initiated.ClientAmount)

	stored, err := f.intents.GetByReference(context.Background(), resp.Data.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPending, stored.Status)
	assert.True(t, stored.AuthoritativeAmount.Equal(decimal.NewFromInt(750000)))
	require.NotNil(t, stored.ReceiptToken)
	assert.Contains(t, *stored.ReceiptToken, "receipts/")
	assert.Equal(t, "2025-01", stored.CatalogVersion)
}

func TestIntentServiceRejectsUnknownTierBeforeSideEffects(t *testing.T) {
	f := defaultFixture(t)
	f.adapter.initiateFn = func(context.Context, domain.PaymentIntent) (domain.Initiation, error) {
		t.Fatal("gateway must not be called for an unknown tier")
		return domain.Initiation{}, nil
	}

	resp, err := f.intentSvc.CreateIntent(context.Background(), createRequest("Platinum", ""))
	require.Error(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "validation failed", resp.Message)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
	assert.Equal(t, 0, f.store.calls())
}

func TestIntentServiceRejectsMissingReceipt(t *testing.T) {
	f := defaultFixture(t)
	req := createRequest("corporate", "")
	req.Receipt = nil

	_, err := f.intentSvc.CreateIntent(context.Background(), req)
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Problems, "receipt image is required")
	assert.Equal(t, 0, f.store.calls())
}

func TestIntentServiceRejectsUnsupportedProvider(t *testing.T) {
	f := defaultFixture(t)
	req := createRequest("corporate", "")
	req.Provider = "monnify"

	_, err := f.intentSvc.CreateIntent(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)
	assert.Equal(t, 0, f.store.calls())
}

func TestIntentServiceGatewayFailureLeavesIntentPending(t *testing.T) {
	f := defaultFixture(t)
	f.adapter.initiateFn = func(context.Context, domain.PaymentIntent) (domain.Initiation, error) {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderPaystack, Op: "initiate", Err: errProviderDown}
	}

	resp, err := f.intentSvc.CreateIntent(context.Background(), createRequest("field operational", ""))
	var gatewayErr *domain.GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Data)

	stored, err := f.intents.GetByReference(context.Background(), resp.Data.Reference)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPending, stored.Status)
	assert.Equal(t, 1, f.store.calls())
}
