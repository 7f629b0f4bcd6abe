package gateway

import (
	"context"
	"crypto/subtle"
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

const flutterwaveSignatureHeader = "verif-hash"

type FlutterwaveConfig struct {
	BaseURL        string
	SecretKey      string
	WebhookHash    string
	RedirectURL    string
	LogoURL        string
	PaymentOptions string
	Title          string
	Timeout        time.Duration
}

// Flutterwave speaks major units on the wire.
type Flutterwave struct {
	client restClient
	cfg    FlutterwaveConfig
}

func NewFlutterwave(cfg FlutterwaveConfig, observer *metrics.Observer) *Flutterwave {
	if cfg.PaymentOptions == "" {
		cfg.PaymentOptions = "card,banktransfer,ussd,account"
	}
	if cfg.Title == "" {
		cfg.Title = "ASPOI Membership Payment"
	}
	return &Flutterwave{
		client: newRESTClient(domain.ProviderFlutterwave, cfg.BaseURL, cfg.SecretKey, cfg.Timeout, observer),
		cfg:    cfg,
	}
}

func (f *Flutterwave) Provider() domain.Provider {
	return domain.ProviderFlutterwave
}

type flutterwavePaymentRequest struct {
	TxRef          string                    `json:"tx_ref"`
	Amount         json.Number               `json:"amount"`
	Currency       string                    `json:"currency"`
	RedirectURL    string                    `json:"redirect_url"`
	PaymentOptions string                    `json:"payment_options"`
	Customer       flutterwaveCustomer       `json:"customer"`
	Customizations flutterwaveCustomizations `json:"customizations"`
	Meta           map[string]any            `json:"meta"`
}

type flutterwaveCustomer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber"`
	Name        string `json:"name"`
}

type flutterwaveCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

type flutterwavePaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (f *Flutterwave) Initiate(ctx context.Context, intent domain.PaymentIntent) (domain.Initiation, error) {
	meta := map[string]any{
		"fullname":        intent.Customer.Name,
		"email":           intent.Customer.Email,
		"phone":           intent.Customer.Phone,
		"membership":      intent.TierName,
		"tier":            intent.Tier,
		"validatedAmount": intent.AuthoritativeAmount.String(),
	}
	if intent.ReceiptURL != nil {
		meta["imageUrl"] = *intent.ReceiptURL
	}
	if intent.ReceiptToken != nil {
		meta["storagePath"] = *intent.ReceiptToken
	}

	body, err := f.client.do(ctx, "initialize", http.MethodPost, "/v3/payments", flutterwavePaymentRequest{
		TxRef:          intent.Reference,
		Amount:         json.Number(intent.AuthoritativeAmount.String()),
		Currency:       intent.Currency,
		RedirectURL:    f.cfg.RedirectURL,
		PaymentOptions: f.cfg.PaymentOptions,
		Customer: flutterwaveCustomer{
			Email:       intent.Customer.Email,
			PhoneNumber: intent.Customer.Phone,
			Name:        intent.Customer.Name,
		},
		Customizations: flutterwaveCustomizations{
			Title:       f.cfg.Title,
			Description: intent.TierName,
			Logo:        f.cfg.LogoURL,
		},
		Meta: meta,
	})
	if err != nil {
		return domain.Initiation{}, err
	}

	var resp flutterwavePaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderFlutterwave, Op: "initialize", Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Status != "success" || resp.Data.Link == "" {
		return domain.Initiation{}, &domain.GatewayError{Provider: domain.ProviderFlutterwave, Op: "initialize", Err: fmt.Errorf("payment link rejected: %s", resp.Message)}
	}

	return domain.Initiation{
		RedirectURL: resp.Data.Link,
		ProviderRef: intent.Reference,
	}, nil
}

// FetchVerification prefers the transaction id from the redirect and falls
// back to a lookup by tx_ref.
func (f *Flutterwave) FetchVerification(ctx context.Context, lookup domain.VerificationLookup) ([]byte, error) {
	if id := strings.TrimSpace(lookup.ProviderTransactionID); id != "" {
		return f.client.do(ctx, "verify", http.MethodGet, "/v3/transactions/"+url.PathEscape(id)+"/verify", nil)
	}

	reference := strings.TrimSpace(lookup.Reference)
	if reference == "" {
		return nil, domain.NewValidationError("reference or transaction_id is required")
	}

	return f.client.do(ctx, "verify", http.MethodGet, "/v3/transactions/verify_by_reference?tx_ref="+url.QueryEscape(reference), nil)
}

type flutterwaveEnvelope struct {
	Status string                  `json:"status"`
	Event  string                  `json:"event"`
	Data   *flutterwaveTransaction `json:"data"`
}

type flutterwaveTransaction struct {
	ID       json.Number     `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Amount   json.Number     `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Meta     json.RawMessage `json:"meta"`
	Customer struct {
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer"`
}

func (f *Flutterwave) NormalizeVerification(raw []byte) (domain.VerificationSignal, error) {
	tx, err := decodeFlutterwave(raw)
	if err != nil {
		return domain.VerificationSignal{}, err
	}

	amount, err := decimal.NewFromString(tx.Amount.String())
	if err != nil {
		return domain.VerificationSignal{}, fmt.Errorf("flutterwave amount %q is not numeric: %w", tx.Amount, err)
	}

	meta := metadataMap(tx.Meta)
	email := metadataString(meta, "email")
	if email == "" {
		email = strings.TrimSpace(tx.Customer.Email)
	}
	phone := metadataString(meta, "phone")
	if phone == "" {
		phone = strings.TrimSpace(tx.Customer.PhoneNumber)
	}

	return domain.VerificationSignal{
		Provider:              domain.ProviderFlutterwave,
		ProviderReference:     strings.TrimSpace(tx.TxRef),
		ProviderTransactionID: tx.ID.String(),
		ReportedAmount:        amount,
		ReportedCurrency:      strings.ToUpper(strings.TrimSpace(tx.Currency)),
		ProviderStatus:        flutterwaveStatus(tx.Status),
		RawStatus:             tx.Status,
		CustomerEmail:         email,
		CustomerPhone:         phone,
		Metadata:              meta,
	}, nil
}

func (f *Flutterwave) ExtractReference(raw []byte) (string, error) {
	tx, err := decodeFlutterwave(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tx.TxRef) == "" {
		return "", fmt.Errorf("flutterwave payload has no tx_ref")
	}
	return strings.TrimSpace(tx.TxRef), nil
}

// AuthenticateWebhook compares the verif-hash header with the configured secret hash.
func (f *Flutterwave) AuthenticateWebhook(header http.Header, _ []byte) error {
	hash := strings.TrimSpace(header.Get(flutterwaveSignatureHeader))
	if hash == "" || f.cfg.WebhookHash == "" {
		return domain.ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(f.cfg.WebhookHash)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

func decodeFlutterwave(raw []byte) (flutterwaveTransaction, error) {
	var envelope flutterwaveEnvelope
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return flutterwaveTransaction{}, fmt.Errorf("decode flutterwave payload: %w", err)
	}
	if envelope.Status == "error" {
		return flutterwaveTransaction{}, fmt.Errorf("flutterwave reported an error response")
	}
	if envelope.Data == nil {
		return flutterwaveTransaction{}, fmt.Errorf("flutterwave payload has no data")
	}
	if envelope.Event != "" && envelope.Event != "charge.completed" {
		return flutterwaveTransaction{}, fmt.Errorf("flutterwave event %q is not a charge event", envelope.Event)
	}
	return *envelope.Data, nil
}

func flutterwaveStatus(status string) domain.ProviderStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful":
		return domain.ProviderStatusSuccessful
	case "failed":
		return domain.ProviderStatusFailed
	case "cancelled":
		return domain.ProviderStatusCancelled
	case "pending":
		return domain.ProviderStatusPending
	default:
		return domain.ProviderStatusUnknown
	}
}
