package services_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspoi/membership-payments/src/internal/adapter/gateway"
	"github.com/aspoi/membership-payments/src/internal/adapter/repository/memory"
	"github.com/aspoi/membership-payments/src/internal/config"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/usecase/services"
)

const paystackTestSecret = "sk_test_paystack"

func signPaystack(body []byte) string {
	mac := hmac.New(sha512.New, []byte(paystackTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackAbandonedThenPaidRecordsMembershipOnce(t *testing.T) {
	ctx := context.Background()
	memberships := memory.NewMembershipRepository()
	intents := memory.NewIntentRepository(memberships)
	pricing := services.NewPricingService(config.DefaultCatalog(), nil)
	paystack := gateway.NewPaystack(gateway.PaystackConfig{SecretKey: paystackTestSecret, Timeout: time.Second}, nil)
	reconciliation := services.NewReconciliationService(intents, memberships, pricing, gateway.NewRegistry(paystack), nil)

	corporate, err := pricing.PriceOf("corporate")
	require.NoError(t, err)
	_, err = intents.Create(ctx, domain.PaymentIntent{
		ID:                  "id-R1",
		Reference:           "R1",
		Provider:            domain.ProviderPaystack,
		Tier:                corporate.ID,
		TierName:            corporate.Name,
		AuthoritativeAmount: corporate.Price,
		Currency:            pricing.Currency(),
		Customer:            domain.Customer{Name: "Ada Obi", Email: "ada@example.com"},
		Status:              domain.IntentStatusPending,
	})
	require.NoError(t, err)

	// Customer returns to the verify page before completing checkout.
	abandoned := []byte(`{"status":true,"data":{"id":1,"status":"abandoned","reference":"R1","amount":75000000,"currency":"NGN"}}`)
	early, err := reconciliation.Reconcile(ctx, "R1", abandoned)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPending, early.Intent.Status)
	assert.Equal(t, domain.ProviderStatusPending, early.ProviderStatus)
	assert.Nil(t, early.Membership)

	paid := []byte(`{"event":"charge.success","data":{"id":1,"status":"success","reference":"R1","amount":75000000,"currency":"NGN","customer":{"email":"ada@example.com"}}}`)
	header := http.Header{}
	header.Set("X-Paystack-Signature", signPaystack(paid))

	response, err := reconciliation.HandleWebhook(ctx, "paystack", header, paid)
	require.NoError(t, err)
	require.NotNil(t, response.Data)
	assert.Equal(t, string(domain.IntentStatusVerified), response.Data.Status)
	assert.False(t, response.Data.Idempotent)

	records, err := memberships.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "R1", records[0].PaymentReference)
	assert.True(t, records[0].AmountPaid.Equal(corporate.Price))
}
