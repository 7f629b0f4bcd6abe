package gateway

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

// Adapter is a PaymentGateway that can also authenticate and route its own
// webhook deliveries.
type Adapter interface {
	domain.PaymentGateway
	ExtractReference(raw []byte) (string, error)
	AuthenticateWebhook(header http.Header, body []byte) error
}

type Registry struct {
	adapters map[domain.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Provider]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter != nil {
			r.adapters[adapter.Provider()] = adapter
		}
	}
	return r
}

func (r *Registry) Get(provider domain.Provider) (Adapter, error) {
	adapter, ok := r.adapters[domain.Provider(strings.ToLower(strings.TrimSpace(string(provider))))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, provider)
	}
	return adapter, nil
}

func (r *Registry) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.adapters))
	for provider := range r.adapters {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
