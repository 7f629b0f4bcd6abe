package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Version  string        `yaml:"version"`
	Currency string        `yaml:"currency"`
	Tiers    []catalogTier `yaml:"tiers"`
}

type catalogTier struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Price   string   `yaml:"price"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() domain.Catalog {
	return domain.Catalog{
		Version:  "2025-01",
		Currency: "NGN",
		Tiers: []domain.Tier{
			{
				ID:      "field-operational",
				Name:    "Field Operational Membership",
				Aliases: []string{"Field Operational"},
				Price:   decimal.NewFromInt(37500),
			},
			{
				ID:      "philanthropic",
				Name:    "Philanthropic Membership",
				Aliases: []string{"Philanthropic", "Philantropic Membership"},
				Price:   decimal.NewFromInt(225000),
			},
			{
				ID:      "professional-individual",
				Name:    "Professional Membership Individual",
				Aliases: []string{"Professional Individual"},
				Price:   decimal.NewFromInt(180000),
			},
			{
				ID:      "corporate",
				Name:    "Corporate Membership",
				Aliases: []string{"Corporate"},
				Price:   decimal.NewFromInt(750000),
			},
		},
	}
}

func LoadCatalog(path string) (domain.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read pricing catalog %q: %w", path, err)
	}

	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse pricing catalog: %w", err)
	}

	catalog := domain.Catalog{
		Version:  strings.TrimSpace(file.Version),
		Currency: strings.ToUpper(strings.TrimSpace(file.Currency)),
		Tiers:    make([]domain.Tier, 0, len(file.Tiers)),
	}

	var errs []string
	if catalog.Version == "" {
		errs = append(errs, "version is required")
	}
	if len(catalog.Currency) != 3 {
		errs = append(errs, "currency must be 3 characters")
	}
	if len(file.Tiers) == 0 {
		errs = append(errs, "at least one tier is required")
	}

	seen := map[string]string{}
	claim := func(key string, owner string) {
		normalized := strings.ToLower(strings.Join(strings.Fields(key), " "))
		if normalized == "" {
			return
		}
		if previous, ok := seen[normalized]; ok && previous != owner {
			errs = append(errs, fmt.Sprintf("tier key %q is used by both %s and %s", key, previous, owner))
			return
		}
		seen[normalized] = owner
	}

	for i, t := range file.Tiers {
		id := strings.TrimSpace(t.ID)
		name := strings.TrimSpace(t.Name)
		if id == "" {
			errs = append(errs, fmt.Sprintf("tiers[%d].id is required", i))
			continue
		}
		if name == "" {
			name = id
		}

		price, err := decimal.NewFromString(strings.TrimSpace(t.Price))
		if err != nil {
			errs = append(errs, fmt.Sprintf("tiers[%d].price must be numeric", i))
			continue
		}
		if price.LessThanOrEqual(decimal.Zero) {
			errs = append(errs, fmt.Sprintf("tiers[%d].price must be greater than zero", i))
			continue
		}

		claim(id, id)
		claim(name, id)
		aliases := make([]string, 0, len(t.Aliases))
		for _, alias := range t.Aliases {
			if a := strings.TrimSpace(alias); a != "" {
				claim(a, id)
				aliases = append(aliases, a)
			}
		}

		catalog.Tiers = append(catalog.Tiers, domain.Tier{
			ID:      id,
			Name:    name,
			Aliases: aliases,
			Price:   price,
		})
	}

	if len(errs) > 0 {
		return domain.Catalog{}, errors.New("invalid pricing catalog: " + strings.Join(errs, "; "))
	}

	return catalog, nil
}
