package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlutterwaveInitiateSendsMajorUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/payments", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"amount":750000`)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "ASPOI-1700000000000-abc123xyz", body["tx_ref"])
		assert.Equal(t, "https://www.aspoi.com/confirmation", body["redirect_url"])
		meta := body["meta"].(map[string]any)
		assert.Equal(t, "receipts/2025-01/1_receipt.png", meta["storagePath"])
		assert.Equal(t, "750000", meta["validatedAmount"])

		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/v3/hosted/pay/abc"}}`))
	}))
	defer server.Close()

	f := NewFlutterwave(FlutterwaveConfig{
		BaseURL:     server.URL,
		SecretKey:   "FLWSECK_TEST",
		RedirectURL: "https://www.aspoi.com/confirmation",
		Timeout:     time.Second,
	}, nil)

	initiation, err := f.Initiate(context.Background(), testIntent(750000))
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/abc", initiation.RedirectURL)
	assert.Equal(t, "ASPOI-1700000000000-abc123xyz", initiation.ProviderRef)
}

func TestFlutterwaveFetchVerificationRoutes(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		_, _ = w.Write([]byte(`{"status":"success","data":{}}`))
	}))
	defer server.Close()

	f := NewFlutterwave(FlutterwaveConfig{BaseURL: server.URL, SecretKey: "k", Timeout: time.Second}, nil)

	_, err := f.FetchVerification(context.Background(), domain.VerificationLookup{Reference: "ASPOI-1", ProviderTransactionID: "288200108"})
	require.NoError(t, err)
	_, err = f.FetchVerification(context.Background(), domain.VerificationLookup{Reference: "ASPOI-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/v3/transactions/288200108/verify",
		"/v3/transactions/verify_by_reference?tx_ref=ASPOI-1",
	}, paths)
}

func TestFlutterwaveNormalizeVerification(t *testing.T) {
	f := NewFlutterwave(FlutterwaveConfig{SecretKey: "k"}, nil)

	raw := []byte(`{"status":"success","message":"Transaction fetched successfully","data":{"id":288200108,"tx_ref":"ASPOI-1","flw_ref":"FLW-1","amount":750000,"currency":"NGN","status":"successful","meta":{"email":"meta@example.com","phone":"0803"},"customer":{"email":"customer@example.com","phone_number":"0804"}}}`)

	signal, err := f.NormalizeVerification(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusSuccessful, signal.ProviderStatus)
	assert.True(t, signal.ReportedAmount.Equal(decimal.NewFromInt(750000)))
	assert.Equal(t, "ASPOI-1", signal.ProviderReference)
	assert.Equal(t, "288200108", signal.ProviderTransactionID)
	assert.Equal(t, "meta@example.com", signal.CustomerEmail)
	assert.Equal(t, "0803", signal.CustomerPhone)
}

func TestFlutterwaveNormalizeFallsBackToCustomerEmail(t *testing.T) {
	f := NewFlutterwave(FlutterwaveConfig{SecretKey: "k"}, nil)

	raw := []byte(`{"event":"charge.completed","data":{"id":1,"tx_ref":"ASPOI-2","amount":"37500.00","currency":"NGN","status":"failed","customer":{"email":"customer@example.com"}}}`)

	signal, err := f.NormalizeVerification(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusFailed, signal.ProviderStatus)
	assert.Equal(t, "customer@example.com", signal.CustomerEmail)
	assert.True(t, signal.ReportedAmount.Equal(decimal.NewFromInt(37500)))
}

func TestFlutterwaveNormalizeRejectsErrorEnvelope(t *testing.T) {
	f := NewFlutterwave(FlutterwaveConfig{SecretKey: "k"}, nil)

	_, err := f.NormalizeVerification([]byte(`{"status":"error","message":"No transaction was found for this id","data":null}`))
	assert.Error(t, err)
}

func TestFlutterwaveStatusVocabulary(t *testing.T) {
	cases := map[string]domain.ProviderStatus{
		"successful": domain.ProviderStatusSuccessful,
		"SUCCESSFUL": domain.ProviderStatusSuccessful,
		"success":    domain.ProviderStatusUnknown,
		"failed":     domain.ProviderStatusFailed,
		"cancelled":  domain.ProviderStatusCancelled,
		"pending":    domain.ProviderStatusPending,
		"reversed":   domain.ProviderStatusUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, flutterwaveStatus(raw), raw)
	}
}

func TestFlutterwaveAuthenticateWebhook(t *testing.T) {
	f := NewFlutterwave(FlutterwaveConfig{SecretKey: "k", WebhookHash: "my-hash"}, nil)

	header := http.Header{}
	header.Set("verif-hash", "my-hash")
	require.NoError(t, f.AuthenticateWebhook(header, nil))

	header.Set("verif-hash", "other")
	assert.ErrorIs(t, f.AuthenticateWebhook(header, nil), domain.ErrInvalidSignature)

	unconfigured := NewFlutterwave(FlutterwaveConfig{SecretKey: "k"}, nil)
	header.Set("verif-hash", "")
	assert.ErrorIs(t, unconfigured.AuthenticateWebhook(header, nil), domain.ErrInvalidSignature)
}
