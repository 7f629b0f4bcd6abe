package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/metrics"
	"github.com/shopspring/decimal"
)

const paystackSignatureHeader = "X-Paystack-Signature"

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// Paystack speaks minor units (kobo) on the wire.
type Paystack struct {
	client      restClient
	secretKey   string
	callbackURL string
}

func NewPaystack(cfg PaystackConfig, observer *metrics.Observer) *Paystack {
	return &Paystack{
		client:      newRESTClient(domain.ProviderPaystack, cfg.BaseURL, cfg.SecretKey, cfg.Timeout, observer),
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
	}
}

func (p *Paystack) Provider() domain.Provider {
	return domain.ProviderPaystack
}

type paystackInitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata"`
}

type paystackInitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (p *Paystack) Initiate(ctx context.Context, intent domain.PaymentIntent) (domain.Initiation, error) {
	amount, err := toMinorUnits(intent.AuthoritativeAmount)
	if err != nil {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderPaystack, Op: "initialize", Err: err}
	}

	metadata := map[string]any{
		"fullname":   intent.Customer.Name,
		"phone":      intent.Customer.Phone,
		"membership": intent.TierName,
		"tier":       intent.Tier,
		"reference":  intent.Reference,
	}
	if intent.ReceiptURL != nil {
		metadata["imageUrl"] = *intent.ReceiptURL
	}

	body, err := p.client.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", paystackInitializeRequest{
		Email:       intent.Customer.Email,
		Amount:      amount,
		Currency:    intent.Currency,
		Reference:   intent.Reference,
		CallbackURL: p.callbackURL,
		Metadata:    metadata,
	})
	if err != nil {
		return domain.Initiation{}, err
	}

	var resp paystackInitializeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderPaystack, Op: "initialize", Err: fmt.Errorf("decode response: %w", err)}
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderPaystack, Op: "initialize", Err: fmt.Errorf("initialize rejected: %s", resp.Message)}
	}

	return domain.Initiation{
		RedirectURL: resp.Data.AuthorizationURL,
		ProviderRef: resp.Data.AccessCode,
	}, nil
}

func (p *Paystack) FetchVerification(ctx context.Context, lookup domain.VerificationLookup) ([]byte, error) {
	reference := strings.TrimSpace(lookup.Reference)
	if reference == "" {
		return nil, domain.NewValidationError("reference is required")
	}

	return p.client.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
}

// paystackEnvelope covers both the verify response ({status, data}) and the
// webhook event ({event, data}).
type paystackEnvelope struct {
	Event string               `json:"event"`
	Data  *paystackTransaction `json:"data"`
}

type paystackTransaction struct {
	ID        json.Number     `json:"id"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    json.Number     `json:"amount"`
	Currency  string          `json:"currency"`
	Metadata  json.RawMessage `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
}

func (p *Paystack) NormalizeVerification(raw []byte) (domain.VerificationSignal, error) {
	tx, err := decodePaystack(raw)
	if err != nil {
		return domain.VerificationSignal{}, err
	}

	minor, err := decimal.NewFromString(tx.Amount.String())
	if err != nil {
		return domain.VerificationSignal{}, fmt.Errorf("paystack amount %q is not numeric: %w", tx.Amount, err)
	}

	meta := metadataMap(tx.Metadata)
	phone := metadataString(meta, "phone")
	if phone == "" {
		phone = strings.TrimSpace(tx.Customer.Phone)
	}

	return domain.VerificationSignal{
		Provider:              domain.ProviderPaystack,
		ProviderReference:     strings.TrimSpace(tx.Reference),
		ProviderTransactionID: tx.ID.String(),
		ReportedAmount:        fromMinorUnits(minor),
		ReportedCurrency:      strings.ToUpper(strings.TrimSpace(tx.Currency)),
		ProviderStatus:        paystackStatus(tx.Status),
		RawStatus:             tx.Status,
		CustomerEmail:         strings.TrimSpace(tx.Customer.Email),
		CustomerPhone:         phone,
		Metadata:              meta,
	}, nil
}

func (p *Paystack) ExtractReference(raw []byte) (string, error) {
	tx, err := decodePaystack(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tx.Reference) == "" {
		return "", fmt.Errorf("paystack payload has no reference")
	}
	return strings.TrimSpace(tx.Reference), nil
}

// AuthenticateWebhook checks the HMAC-SHA512 of the body keyed by the secret key.
func (p *Paystack) AuthenticateWebhook(header http.Header, body []byte) error {
	signature := strings.TrimSpace(header.Get(paystackSignatureHeader))
	if signature == "" || p.secretKey == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func decodePaystack(raw []byte) (paystackTransaction, error) {
	var envelope paystackEnvelope
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return paystackTransaction{}, fmt.Errorf("decode paystack payload: %w", err)
	}
	if envelope.Data == nil {
		return paystackTransaction{}, fmt.Errorf("paystack payload has no data")
	}
	if envelope.Event != "" && !strings.HasPrefix(envelope.Event, "charge.") {
		return paystackTransaction{}, fmt.Errorf("paystack event %q is not a charge event", envelope.Event)
	}
	return *envelope.Data, nil
}

func paystackStatus(status string) domain.ProviderStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return domain.ProviderStatusSuccessful
	case "failed", "reversed":
		return domain.ProviderStatusFailed
	// abandoned means checkout was opened but not paid; the customer can still pay.
	case "abandoned", "ongoing", "pending", "processing", "queued":
		return domain.ProviderStatusPending
	default:
		return domain.ProviderStatusUnknown
	}
}
