package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thanhpk/randstr"

	"github.com/aspoi/membership-payments/src/internal/adapter/gateway"
	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
)

const (
	defaultReferencePrefix  = "ASPOI"
	referenceSuffixLength   = 9
	maxReferenceGenerations = 3
)

// GatewayRegistry resolves a provider name to its adapter.
type GatewayRegistry interface {
	Get(provider domain.Provider) (gateway.Adapter, error)
}

type IntentService struct {
	intents         domain.IntentRepository
	pricing         *PricingService
	receipts        *ReceiptService
	gateways        GatewayRegistry
	defaultProvider domain.Provider
	referencePrefix string
	observer        *metrics.Observer
	now             func() time.Time
	newReference    func() string
}

func NewIntentService(
	intents domain.IntentRepository,
	pricing *PricingService,
	receipts *ReceiptService,
	gateways GatewayRegistry,
	defaultProvider domain.Provider,
	referencePrefix string,
	observer *metrics.Observer,
) *IntentService {
	prefix := strings.TrimSpace(referencePrefix)
	if prefix == "" {
		prefix = defaultReferencePrefix
	}

	s := &IntentService{
		intents:         intents,
		pricing:         pricing,
		receipts:        receipts,
		gateways:        gateways,
		defaultProvider: defaultProvider,
		referencePrefix: prefix,
		observer:        observer,
		now:             func() time.Time { return time.Now().UTC() },
	}
	s.newReference = s.generateReference
	return s
}

func (s *IntentService) CreateIntent(ctx context.Context, req models.CreateIntentRequest) (commons.Response[models.CreateIntentResponse], error) {
	logger.Info("intent service create intent request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.CreateIntentResponse]("validation failed", err.Error()), err
	}

	provider := s.defaultProvider
	if requested := strings.TrimSpace(req.Provider); requested != "" {
		provider = domain.Provider(strings.ToLower(requested))
	}
	adapter, err := s.gateways.Get(provider)
	if err != nil {
		verr := domain.NewValidationError(fmt.Sprintf("provider %q is not supported", provider))
		return commons.ErrorResponse[models.CreateIntentResponse]("validation failed", verr.Error()), errors.Join(verr, err)
	}

	tier, err := s.pricing.PriceOf(req.Membership)
	if err != nil {
		verr := domain.NewValidationError(fmt.Sprintf("membership %q is not a known tier", strings.TrimSpace(req.Membership)))
		return commons.ErrorResponse[models.CreateIntentResponse]("validation failed", verr.Error()), errors.Join(verr, err)
	}
	s.pricing.CheckClientAmount(tier, req.Amount)

	receipt, err := s.receipts.Store(ctx, domain.ReceiptUpload{
		Content:          req.Receipt.Content,
		ContentType:      req.Receipt.ContentType,
		OriginalFilename: req.Receipt.Filename,
		UploadedAt:       s.now(),
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return commons.ErrorResponse[models.CreateIntentResponse]("validation failed", verr.Error()), err
		}
		return commons.ErrorResponse[models.CreateIntentResponse]("failed to store receipt", "Unable to store receipt right now"), err
	}

	intent := domain.PaymentIntent{
		Provider:            provider,
		Tier:                tier.ID,
		TierName:            tier.Name,
		CatalogVersion:      s.pricing.Version(),
		AuthoritativeAmount: tier.Price,
		Currency:            s.pricing.Currency(),
		ClientAmount:        optionalString(req.Amount),
		Customer: domain.Customer{
			Name:  strings.TrimSpace(req.Fullname),
			Email: strings.TrimSpace(req.Email),
			Phone: strings.TrimSpace(req.Phone),
		},
		ReceiptToken: optionalString(receipt.Token),
		ReceiptURL:   optionalString(receipt.URL),
		Status:       domain.IntentStatusPending,
	}

	intent, err = s.persist(ctx, intent)
	if err != nil {
		return commons.ErrorResponse[models.CreateIntentResponse]("failed to create payment intent", "Unable to create payment intent right now"), err
	}
	s.observer.RecordIntentCreated(string(provider), tier.ID)

	initiation, err := adapter.Initiate(ctx, intent)
	if err != nil {
		logger.Error("intent service gateway initiation failed", err, logger.Fields{
			"reference": intent.Reference,
			"provider":  provider,
		})
		return commons.ErrorResponseWithData("failed to initiate payment", toCreateIntentResponse(intent, ""), "Payment provider is unavailable, try again"), err
	}

	logger.Info("intent service create intent success", logger.Fields{
		"reference":   intent.Reference,
		"provider":    provider,
		"tier":        tier.ID,
		"providerRef": initiation.ProviderRef,
	})
	return commons.SuccessResponse("payment intent created", toCreateIntentResponse(intent, initiation.RedirectURL)), nil
}

// persist writes the intent under a fresh reference, regenerating it on the
// rare unique-key collision.
func (s *IntentService) persist(ctx context.Context, intent domain.PaymentIntent) (domain.PaymentIntent, error) {
	var lastErr error
	for attempt := 0; attempt < maxReferenceGenerations; attempt++ {
		intent.ID = uuid.NewString()
		intent.Reference = s.newReference()

		created, err := s.intents.Create(ctx, intent)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, domain.ErrDuplicateRecord) {
			return domain.PaymentIntent{}, err
		}
		logger.Warn("intent reference collision", logger.Fields{
			"reference": intent.Reference,
			"attempt":   attempt + 1,
		})
		lastErr = err
	}
	return domain.PaymentIntent{}, fmt.Errorf("generate unique reference: %w", lastErr)
}

func (s *IntentService) generateReference() string {
	return s.referencePrefix + "-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + strings.ToUpper(randstr.String(referenceSuffixLength))
}

func toCreateIntentResponse(intent domain.PaymentIntent, redirectURL string) models.CreateIntentResponse {
	resp := models.CreateIntentResponse{
		Reference:   intent.Reference,
		Provider:    string(intent.Provider),
		RedirectURL: redirectURL,
		Tier:        intent.Tier,
		TierName:    intent.TierName,
		Amount:      intent.AuthoritativeAmount.StringFixed(2),
		Currency:    intent.Currency,
		Status:      string(intent.Status),
	}
	if intent.ReceiptURL != nil {
		resp.ReceiptURL = *intent.ReceiptURL
	}
	return resp
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
