package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
)

// PricingService is the only place a tier becomes an amount.
type PricingService struct {
	catalog  domain.Catalog
	observer *metrics.Observer
}

func NewPricingService(catalog domain.Catalog, observer *metrics.Observer) *PricingService {
	return &PricingService{catalog: catalog, observer: observer}
}

func (s *PricingService) PriceOf(tier string) (domain.Tier, error) {
	resolved, ok := s.catalog.Lookup(tier)
	if !ok {
		return domain.Tier{}, fmt.Errorf("%w: %q", domain.ErrUnknownTier, strings.TrimSpace(tier))
	}
	return resolved, nil
}

func (s *PricingService) Currency() string {
	return s.catalog.Currency
}

func (s *PricingService) Version() string {
	return s.catalog.Version
}

// CheckClientAmount logs a security event when the advisory client amount
// disagrees with the catalog price. The client amount is never used.
func (s *PricingService) CheckClientAmount(tier domain.Tier, clientAmount string) bool {
	raw := strings.TrimSpace(clientAmount)
	if raw == "" {
		return false
	}

	amount, err := decimal.NewFromString(raw)
	if err == nil && amount.Equal(tier.Price) {
		return false
	}

	logger.Security("client amount differs from catalog price", logger.Fields{
		"tier":           tier.ID,
		"catalogPrice":   tier.Price.String(),
		"clientAmount":   raw,
		"catalogVersion": s.catalog.Version,
	})
	s.observer.RecordPriceDiscrepancy(tier.ID)
	s.observer.RecordSecurityEvent("price_discrepancy")
	return true
}
