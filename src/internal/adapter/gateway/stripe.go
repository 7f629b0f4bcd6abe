package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/aspoi/membership-payments/src/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

const stripeSignatureHeader = "Stripe-Signature"

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// ReturnURL receives reference, session_id and status query parameters.
	ReturnURL string
	Timeout   time.Duration
}

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Stripe drives a Checkout Session per intent. Amounts are minor units on the wire.
type Stripe struct {
	sessions      checkoutSessions
	webhookSecret string
	returnURL     string
	observer      *metrics.Observer
}

func NewStripe(cfg StripeConfig, observer *metrics.Observer) *Stripe {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	})

	return newStripeWithSessions(sc.CheckoutSessions, cfg, observer)
}

func newStripeWithSessions(sessions checkoutSessions, cfg StripeConfig, observer *metrics.Observer) *Stripe {
	return &Stripe{
		sessions:      sessions,
		webhookSecret: cfg.WebhookSecret,
		returnURL:     cfg.ReturnURL,
		observer:      observer,
	}
}

func (s *Stripe) Provider() domain.Provider {
	return domain.ProviderStripe
}

func (s *Stripe) Initiate(ctx context.Context, intent domain.PaymentIntent) (domain.Initiation, error) {
	amount, err := toMinorUnits(intent.AuthoritativeAmount)
	if err != nil {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderStripe, Op: "initialize", Err: err}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		ClientReferenceID:  stripe.String(intent.Reference),
		CustomerEmail:      stripe.String(intent.Customer.Email),
		SuccessURL:         stripe.String(s.returnLink(intent.Reference, "") + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(s.returnLink(intent.Reference, "cancelled")),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(intent.Currency)),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(intent.TierName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("reference", intent.Reference)
	params.AddMetadata("tier", intent.Tier)
	params.AddMetadata("fullname", intent.Customer.Name)
	params.AddMetadata("phone", intent.Customer.Phone)

	start := time.Now()
	session, err := s.sessions.New(params)
	s.observer.RecordGatewayCall(string(domain.ProviderStripe), "initialize", time.Since(start), err)
	if err != nil {
		logger.Error("stripe create checkout session failed", err, logger.Fields{
			"reference": intent.Reference,
		})
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderStripe, Op: "initialize", Err: err}
	}
	if session.URL == "" {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderStripe, Op: "initialize", Err: fmt.Errorf("checkout session %s has no url", session.ID)}
	}

	return domain.Initiation{
		RedirectURL: session.URL,
		ProviderRef: session.ID,
	}, nil
}

func (s *Stripe) FetchVerification(ctx context.Context, lookup domain.VerificationLookup) ([]byte, error) {
	sessionID := strings.TrimSpace(lookup.ProviderTransactionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrNoProviderTransaction)
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	start := time.Now()
	session, err := s.sessions.Get(sessionID, params)
	s.observer.RecordGatewayCall(string(domain.ProviderStripe), "verify", time.Since(start), err)
	if err != nil {
		return nil, &domain.GatewayError{Provider: domain.ProviderStripe, Op: "verify", Err: err}
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return nil, &domain.GatewayError{Provider: domain.ProviderStripe, Op: "verify", Err: fmt.Errorf("encode session: %w", err)}
	}
	return raw, nil
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	ClientReferenceID string            `json:"client_reference_id"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	CustomerEmail     string            `json:"customer_email"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer_details"`
}

type stripeEvent struct {
	Object string `json:"object"`
	Type   string `json:"type"`
	Data   struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (s *Stripe) NormalizeVerification(raw []byte) (domain.VerificationSignal, error) {
	session, eventType, err := decodeStripe(raw)
	if err != nil {
		return domain.VerificationSignal{}, err
	}

	email := strings.TrimSpace(session.CustomerEmail)
	phone := ""
	if session.CustomerDetails != nil {
		if email == "" {
			email = strings.TrimSpace(session.CustomerDetails.Email)
		}
		phone = strings.TrimSpace(session.CustomerDetails.Phone)
	}

	meta := make(map[string]any, len(session.Metadata))
	for k, v := range session.Metadata {
		meta[k] = v
	}

	return domain.VerificationSignal{
		Provider:              domain.ProviderStripe,
		ProviderReference:     strings.TrimSpace(session.ClientReferenceID),
		ProviderTransactionID: session.ID,
		ReportedAmount:        fromMinorUnits(decimal.NewFromInt(session.AmountTotal)),
		ReportedCurrency:      strings.ToUpper(strings.TrimSpace(session.Currency)),
		ProviderStatus:        stripeStatus(eventType, session.Status, session.PaymentStatus),
		RawStatus:             strings.Trim(session.Status+"/"+session.PaymentStatus, "/"),
		CustomerEmail:         email,
		CustomerPhone:         phone,
		Metadata:              meta,
	}, nil
}

func (s *Stripe) ExtractReference(raw []byte) (string, error) {
	session, _, err := decodeStripe(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(session.ClientReferenceID) == "" {
		return "", fmt.Errorf("stripe session %s has no client_reference_id", session.ID)
	}
	return strings.TrimSpace(session.ClientReferenceID), nil
}

func (s *Stripe) AuthenticateWebhook(header http.Header, body []byte) error {
	signature := header.Get(stripeSignatureHeader)
	if signature == "" || s.webhookSecret == "" {
		return domain.ErrInvalidSignature
	}
	if err := webhook.ValidatePayload(body, signature, s.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return nil
}

func (s *Stripe) returnLink(reference string, status string) string {
	query := url.Values{}
	query.Set("provider", string(domain.ProviderStripe))
	query.Set("reference", reference)
	if status != "" {
		query.Set("status", status)
	}

	separator := "?"
	if strings.Contains(s.returnURL, "?") {
		separator = "&"
	}
	return s.returnURL + separator + query.Encode()
}

// decodeStripe accepts either a bare checkout session or a checkout.session.*
// event wrapping one.
func decodeStripe(raw []byte) (stripeCheckoutSession, string, error) {
	var event stripeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return stripeCheckoutSession{}, "", fmt.Errorf("decode stripe payload: %w", err)
	}

	body := raw
	if event.Object == "event" {
		if !strings.HasPrefix(event.Type, "checkout.session.") {
			return stripeCheckoutSession{}, "", fmt.Errorf("stripe event %q is not a checkout session event", event.Type)
		}
		body = event.Data.Object
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return stripeCheckoutSession{}, "", fmt.Errorf("decode stripe checkout session: %w", err)
	}
	if session.ID == "" {
		return stripeCheckoutSession{}, "", fmt.Errorf("stripe payload has no checkout session")
	}

	return session, event.Type, nil
}

func stripeStatus(eventType string, status string, paymentStatus string) domain.ProviderStatus {
	if eventType == "checkout.session.async_payment_failed" {
		return domain.ProviderStatusFailed
	}

	switch strings.ToLower(status) {
	case "expired":
		return domain.ProviderStatusCancelled
	case "complete", "open", "":
	default:
		return domain.ProviderStatusUnknown
	}

	switch strings.ToLower(paymentStatus) {
	case "paid":
		return domain.ProviderStatusSuccessful
	case "unpaid":
		return domain.ProviderStatusPending
	default:
		return domain.ProviderStatusUnknown
	}
}
