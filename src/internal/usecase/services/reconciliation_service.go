package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aspoi/membership-payments/src/internal/adapter/http/models"
	"github.com/aspoi/membership-payments/src/internal/commons"
	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
)

type ReconciliationService struct {
	intents     domain.IntentRepository
	memberships domain.MembershipRepository
	pricing     *PricingService
	gateways    GatewayRegistry
	observer    *metrics.Observer
	inflight    singleflight.Group
	now         func() time.Time
}

func NewReconciliationService(
	intents domain.IntentRepository,
	memberships domain.MembershipRepository,
	pricing *PricingService,
	gateways GatewayRegistry,
	observer *metrics.Observer,
) *ReconciliationService {
	return &ReconciliationService{
		intents:     intents,
		memberships: memberships,
		pricing:     pricing,
		gateways:    gateways,
		observer:    observer,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile matches a raw provider payload to the intent stored under
// reference and commits at most one terminal outcome. Calling it again for a
// settled intent returns the recorded outcome without side effects.
func (s *ReconciliationService) Reconcile(ctx context.Context, reference string, raw []byte) (domain.ReconciliationOutcome, error) {
	return s.reconcile(ctx, reference, raw, "")
}

func (s *ReconciliationService) reconcile(ctx context.Context, reference string, raw []byte, via domain.Provider) (domain.ReconciliationOutcome, error) {
	intent, err := s.intents.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			logger.Security("verification signal for unknown reference", logger.Fields{
				"reference": reference,
				"provider":  via,
			})
			s.observer.RecordSecurityEvent("unknown_reference")
		}
		return domain.ReconciliationOutcome{}, err
	}

	if intent.Status != domain.IntentStatusPending {
		return s.settled(ctx, intent)
	}

	if via != "" && via != intent.Provider {
		logger.Security("verification signal from a different provider", logger.Fields{
			"reference":      reference,
			"intentProvider": intent.Provider,
			"signalProvider": via,
		})
		s.observer.RecordSecurityEvent("provider_mismatch")
		return domain.ReconciliationOutcome{}, fmt.Errorf("%w: intent %s belongs to %s", domain.ErrReferenceMismatch, reference, intent.Provider)
	}

	adapter, err := s.gateways.Get(intent.Provider)
	if err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	signal, err := adapter.NormalizeVerification(raw)
	if err != nil {
		logger.Error("reconciliation normalize failed", err, logger.Fields{
			"reference": reference,
			"provider":  intent.Provider,
		})
		return domain.ReconciliationOutcome{}, &domain.GatewayError{Provider: intent.Provider, Op: "normalize verification", Err: err}
	}

	if signal.ProviderReference != "" && signal.ProviderReference != intent.Reference {
		logger.Security("verification signal names a different reference", logger.Fields{
			"reference":         reference,
			"providerReference": signal.ProviderReference,
			"provider":          intent.Provider,
		})
		s.observer.RecordSecurityEvent("reference_mismatch")
		return domain.ReconciliationOutcome{}, fmt.Errorf("%w: expected %s, provider reported %s", domain.ErrReferenceMismatch, intent.Reference, signal.ProviderReference)
	}

	if err := s.checkAmount(intent, signal); err != nil {
		return s.fail(ctx, intent, signal, err)
	}

	switch signal.ProviderStatus {
	case domain.ProviderStatusSuccessful:
		return s.verify(ctx, intent, signal)
	case domain.ProviderStatusFailed:
		return s.resolve(ctx, intent, signal, domain.IntentStatusFailed)
	case domain.ProviderStatusCancelled:
		return s.resolve(ctx, intent, signal, domain.IntentStatusCancelled)
	case domain.ProviderStatusUnknown:
		logger.Security("provider status needs manual review", logger.Fields{
			"reference": reference,
			"provider":  intent.Provider,
			"rawStatus": signal.RawStatus,
		})
		s.observer.RecordSecurityEvent("unknown_status")
		s.observer.RecordReconciliation(string(intent.Provider), string(domain.IntentStatusPending), false)
		return domain.ReconciliationOutcome{Intent: intent, ProviderStatus: signal.ProviderStatus, NeedsReview: true}, nil
	default:
		logger.Info("reconciliation provider still pending", logger.Fields{
			"reference": reference,
			"provider":  intent.Provider,
			"rawStatus": signal.RawStatus,
		})
		s.observer.RecordReconciliation(string(intent.Provider), string(domain.IntentStatusPending), false)
		return domain.ReconciliationOutcome{Intent: intent, ProviderStatus: signal.ProviderStatus}, nil
	}
}

// checkAmount re-derives the price from the catalog. The reported amount has
// to match both the current price and the amount the intent was created with.
func (s *ReconciliationService) checkAmount(intent domain.PaymentIntent, signal domain.VerificationSignal) error {
	tier, err := s.pricing.PriceOf(intent.Tier)
	if err != nil {
		return err
	}
	if !signal.ReportedAmount.Equal(tier.Price) || !signal.ReportedAmount.Equal(intent.AuthoritativeAmount) {
		return fmt.Errorf("%w: expected %s, provider reported %s", domain.ErrAmountMismatch, tier.Price.String(), signal.ReportedAmount.String())
	}
	if !strings.EqualFold(strings.TrimSpace(signal.ReportedCurrency), intent.Currency) {
		return fmt.Errorf("%w: expected %s, provider reported %q", domain.ErrCurrencyMismatch, intent.Currency, signal.ReportedCurrency)
	}
	return nil
}

func (s *ReconciliationService) fail(ctx context.Context, intent domain.PaymentIntent, signal domain.VerificationSignal, cause error) (domain.ReconciliationOutcome, error) {
	logger.Security("verification rejected", logger.Fields{
		"reference":        intent.Reference,
		"provider":         intent.Provider,
		"tier":             intent.Tier,
		"expectedAmount":   intent.AuthoritativeAmount.String(),
		"reportedAmount":   signal.ReportedAmount.String(),
		"expectedCurrency": intent.Currency,
		"reportedCurrency": signal.ReportedCurrency,
		"reason":           cause.Error(),
	})
	kind := "amount_mismatch"
	if errors.Is(cause, domain.ErrCurrencyMismatch) {
		kind = "currency_mismatch"
	} else if errors.Is(cause, domain.ErrUnknownTier) {
		kind = "unpriced_tier"
	}
	s.observer.RecordSecurityEvent(kind)

	if err := s.intents.Transition(ctx, intent.Reference, domain.IntentStatusPending, domain.IntentStatusFailed, cause.Error()); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.reread(ctx, intent.Reference)
		}
		return domain.ReconciliationOutcome{}, err
	}

	s.observer.RecordReconciliation(string(intent.Provider), string(domain.IntentStatusFailed), false)
	failed, err := s.intents.GetByReference(ctx, intent.Reference)
	if err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	return domain.ReconciliationOutcome{Intent: failed, ProviderStatus: signal.ProviderStatus}, cause
}

func (s *ReconciliationService) verify(ctx context.Context, intent domain.PaymentIntent, signal domain.VerificationSignal) (domain.ReconciliationOutcome, error) {
	record := domain.MembershipRecord{
		Fullname:         intent.Customer.Name,
		Email:            firstNonEmpty(intent.Customer.Email, signal.CustomerEmail),
		Phone:            firstNonEmpty(intent.Customer.Phone, signal.CustomerPhone),
		Tier:             intent.Tier,
		TierName:         intent.TierName,
		AmountPaid:       intent.AuthoritativeAmount,
		Currency:         intent.Currency,
		PaymentReference: intent.Reference,
		Provider:         intent.Provider,
		ProviderTxID:     signal.ProviderTransactionID,
		VerifiedAt:       s.now(),
	}
	if intent.ReceiptURL != nil {
		record.ReceiptURL = *intent.ReceiptURL
	}

	created, err := s.intents.CompleteVerification(ctx, intent.Reference, record)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.reread(ctx, intent.Reference)
		}
		logger.Error("reconciliation complete verification failed", err, logger.Fields{
			"reference": intent.Reference,
		})
		return domain.ReconciliationOutcome{}, err
	}

	s.observer.RecordReconciliation(string(intent.Provider), string(domain.IntentStatusVerified), false)
	logger.Info("membership recorded", logger.Fields{
		"reference":    intent.Reference,
		"membershipId": created.ID,
		"tier":         intent.Tier,
		"provider":     intent.Provider,
	})

	intent.Status = domain.IntentStatusVerified
	verifiedAt := created.VerifiedAt
	intent.ResolvedAt = &verifiedAt
	return domain.ReconciliationOutcome{Intent: intent, Membership: &created, ProviderStatus: signal.ProviderStatus}, nil
}

func (s *ReconciliationService) resolve(ctx context.Context, intent domain.PaymentIntent, signal domain.VerificationSignal, to domain.IntentStatus) (domain.ReconciliationOutcome, error) {
	reason := "provider reported " + firstNonEmpty(signal.RawStatus, strings.ToLower(string(signal.ProviderStatus)))
	if err := s.intents.Transition(ctx, intent.Reference, domain.IntentStatusPending, to, reason); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.reread(ctx, intent.Reference)
		}
		return domain.ReconciliationOutcome{}, err
	}

	s.observer.RecordReconciliation(string(intent.Provider), string(to), false)
	logger.Info("payment intent resolved", logger.Fields{
		"reference": intent.Reference,
		"status":    to,
		"provider":  intent.Provider,
	})

	resolved, err := s.intents.GetByReference(ctx, intent.Reference)
	if err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	return domain.ReconciliationOutcome{Intent: resolved, ProviderStatus: signal.ProviderStatus}, nil
}

// reread is taken after losing a transition race.
func (s *ReconciliationService) reread(ctx context.Context, reference string) (domain.ReconciliationOutcome, error) {
	intent, err := s.intents.GetByReference(ctx, reference)
	if err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	return s.settled(ctx, intent)
}

func (s *ReconciliationService) settled(ctx context.Context, intent domain.PaymentIntent) (domain.ReconciliationOutcome, error) {
	outcome := domain.ReconciliationOutcome{Intent: intent, Idempotent: true}
	if intent.Status == domain.IntentStatusVerified {
		record, err := s.memberships.GetByPaymentReference(ctx, intent.Reference)
		switch {
		case err == nil:
			outcome.Membership = &record
		case !errors.Is(err, domain.ErrRecordNotFound):
			return domain.ReconciliationOutcome{}, err
		}
	}

	s.observer.RecordReconciliation(string(intent.Provider), string(intent.Status), true)
	logger.Info("reconciliation already settled", logger.Fields{
		"reference": intent.Reference,
		"status":    intent.Status,
	})
	return outcome, nil
}

// VerifyPayment serves the redirect path: it asks the provider for the
// current state of the payment and reconciles it. Concurrent calls for one
// reference share a single provider round trip.
func (s *ReconciliationService) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (commons.Response[models.VerificationResponse], error) {
	logger.Info("reconciliation service verify payment request", logger.Fields{
		"payload": logger.SanitizePayload(req),
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.VerificationResponse]("validation failed", err.Error()), err
	}

	reference := strings.TrimSpace(req.Reference)
	lookup := domain.VerificationLookup{
		Reference:             reference,
		ProviderTransactionID: firstNonEmpty(strings.TrimSpace(req.TransactionID), strings.TrimSpace(req.SessionID)),
	}

	// The shared call must outlive whichever caller started it.
	shared := context.WithoutCancel(ctx)
	result, err, joined := s.inflight.Do(reference, func() (any, error) {
		return s.fetchAndReconcile(shared, lookup)
	})
	if joined {
		logger.Info("verification shared with concurrent caller", logger.Fields{"reference": reference})
	}
	outcome, _ := result.(domain.ReconciliationOutcome)
	return verificationResponse(outcome, err)
}

func (s *ReconciliationService) fetchAndReconcile(ctx context.Context, lookup domain.VerificationLookup) (domain.ReconciliationOutcome, error) {
	intent, err := s.intents.GetByReference(ctx, lookup.Reference)
	if err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	if intent.Status != domain.IntentStatusPending {
		return s.settled(ctx, intent)
	}

	adapter, err := s.gateways.Get(intent.Provider)
	if err != nil {
		return domain.ReconciliationOutcome{}, err
	}
	raw, err := adapter.FetchVerification(ctx, lookup)
	if errors.Is(err, domain.ErrNoProviderTransaction) {
		logger.Info("reconciliation nothing to fetch yet", logger.Fields{
			"reference": lookup.Reference,
			"provider":  intent.Provider,
		})
		return domain.ReconciliationOutcome{Intent: intent, ProviderStatus: domain.ProviderStatusPending}, nil
	}
	if err != nil {
		logger.Error("reconciliation fetch verification failed", err, logger.Fields{
			"reference": lookup.Reference,
			"provider":  intent.Provider,
		})
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) {
			err = &domain.GatewayError{Provider: intent.Provider, Op: "fetch verification", Err: err}
		}
		return domain.ReconciliationOutcome{Intent: intent}, err
	}
	return s.Reconcile(ctx, lookup.Reference, raw)
}

// HandleWebhook authenticates a provider delivery and reconciles it.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (commons.Response[models.VerificationResponse], error) {
	logger.Info("reconciliation service webhook received", logger.Fields{
		"provider":  provider,
		"sizeBytes": len(body),
	})

	name := domain.Provider(strings.ToLower(strings.TrimSpace(provider)))
	adapter, err := s.gateways.Get(name)
	if err != nil {
		return commons.ErrorResponse[models.VerificationResponse]("unsupported provider", err.Error()), err
	}

	if err := adapter.AuthenticateWebhook(header, body); err != nil {
		logger.Security("webhook signature rejected", logger.Fields{"provider": name})
		s.observer.RecordSecurityEvent("invalid_signature")
		return commons.ErrorResponse[models.VerificationResponse]("invalid signature"), err
	}

	reference, err := adapter.ExtractReference(body)
	if err != nil {
		verr := domain.NewValidationError(err.Error())
		return commons.ErrorResponse[models.VerificationResponse]("validation failed", verr.Error()), verr
	}

	outcome, err := s.reconcile(ctx, reference, body, name)
	return verificationResponse(outcome, err)
}

func verificationResponse(outcome domain.ReconciliationOutcome, err error) (commons.Response[models.VerificationResponse], error) {
	data := toVerificationResponse(outcome)

	if err != nil {
		var verr *domain.ValidationError
		var gerr *domain.GatewayError
		switch {
		case errors.As(err, &verr):
			return commons.ErrorResponse[models.VerificationResponse]("validation failed", verr.Error()), err
		case errors.Is(err, domain.ErrRecordNotFound):
			return commons.ErrorResponse[models.VerificationResponse]("Payment intent not found"), err
		case domain.IsMismatch(err), errors.Is(err, domain.ErrUnknownTier):
			return commons.ErrorResponseWithData("payment verification failed", data, err.Error()), err
		case errors.Is(err, domain.ErrReferenceMismatch):
			return commons.ErrorResponse[models.VerificationResponse]("payment reference mismatch"), err
		case errors.As(err, &gerr):
			return commons.ErrorResponseWithData("payment provider unavailable", data, "Unable to verify payment right now"), err
		default:
			return commons.ErrorResponse[models.VerificationResponse]("failed to verify payment", "Unable to verify payment right now"), err
		}
	}

	message := "payment verification pending"
	switch outcome.Intent.Status {
	case domain.IntentStatusVerified:
		message = "payment verified"
	case domain.IntentStatusFailed:
		message = "payment failed"
	case domain.IntentStatusCancelled:
		message = "payment cancelled"
	}
	if outcome.NeedsReview {
		message = "payment status needs review"
	}
	return commons.SuccessResponse(message, data), nil
}

func toVerificationResponse(outcome domain.ReconciliationOutcome) models.VerificationResponse {
	intent := outcome.Intent
	resp := models.VerificationResponse{
		Reference:      intent.Reference,
		Provider:       string(intent.Provider),
		Status:         string(intent.Status),
		ProviderStatus: string(outcome.ProviderStatus),
		Tier:           intent.Tier,
		TierName:       intent.TierName,
		Amount:         intent.AuthoritativeAmount.StringFixed(2),
		Currency:       intent.Currency,
		Idempotent:     outcome.Idempotent,
		NeedsReview:    outcome.NeedsReview,
	}
	if outcome.Membership != nil {
		resp.MembershipID = outcome.Membership.ID
	}
	if intent.FailureReason != nil {
		resp.FailureReason = *intent.FailureReason
	}
	return resp
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
