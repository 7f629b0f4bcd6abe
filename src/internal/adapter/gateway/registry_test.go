package gateway

import (
	"testing"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesProviders(t *testing.T) {
	registry := NewRegistry(
		NewPaystack(PaystackConfig{SecretKey: "a"}, nil),
		NewFlutterwave(FlutterwaveConfig{SecretKey: "b"}, nil),
	)

	adapter, err := registry.Get(" Paystack ")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderPaystack, adapter.Provider())

	_, err = registry.Get(domain.ProviderStripe)
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)

	assert.Equal(t, []domain.Provider{domain.ProviderFlutterwave, domain.ProviderPaystack}, registry.Providers())
}
