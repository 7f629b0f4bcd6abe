package dynamo

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

type intentItem struct {
	Reference           string     `dynamodbav:"reference"`
	ID                  string     `dynamodbav:"id"`
	Provider            string     `dynamodbav:"provider"`
	Tier                string     `dynamodbav:"tier"`
	TierName            string     `dynamodbav:"tier_name"`
	CatalogVersion      string     `dynamodbav:"catalog_version"`
	AuthoritativeAmount string     `dynamodbav:"authoritative_amount"`
	Currency            string     `dynamodbav:"currency"`
	ClientAmount        *string    `dynamodbav:"client_amount,omitempty"`
	CustomerName        string     `dynamodbav:"customer_name"`
	CustomerEmail       string     `dynamodbav:"customer_email"`
	CustomerPhone       string     `dynamodbav:"customer_phone"`
	ReceiptToken        *string    `dynamodbav:"receipt_token,omitempty"`
	ReceiptURL          *string    `dynamodbav:"receipt_url,omitempty"`
	Status              string     `dynamodbav:"status"`
	FailureReason       *string    `dynamodbav:"failure_reason,omitempty"`
	CreatedAt           time.Time  `dynamodbav:"created_at"`
	UpdatedAt           time.Time  `dynamodbav:"updated_at"`
	ResolvedAt          *time.Time `dynamodbav:"resolved_at,omitempty"`
}

func toIntentItem(intent domain.PaymentIntent) intentItem {
	return intentItem{
		Reference:           intent.Reference,
		ID:                  intent.ID,
		Provider:            string(intent.Provider),
		Tier:                intent.Tier,
		TierName:            intent.TierName,
		CatalogVersion:      intent.CatalogVersion,
		AuthoritativeAmount: intent.AuthoritativeAmount.String(),
		Currency:            intent.Currency,
		ClientAmount:        intent.ClientAmount,
		CustomerName:        intent.Customer.Name,
		CustomerEmail:       intent.Customer.Email,
		CustomerPhone:       intent.Customer.Phone,
		ReceiptToken:        intent.ReceiptToken,
		ReceiptURL:          intent.ReceiptURL,
		Status:              string(intent.Status),
		FailureReason:       intent.FailureReason,
		CreatedAt:           intent.CreatedAt,
		UpdatedAt:           intent.UpdatedAt,
		ResolvedAt:          intent.ResolvedAt,
	}
}

func (i intentItem) toDomain() (domain.PaymentIntent, error) {
	amount, err := decimal.NewFromString(i.AuthoritativeAmount)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	return domain.PaymentIntent{
		ID:                  i.ID,
		Reference:           i.Reference,
		Provider:            domain.Provider(i.Provider),
		Tier:                i.Tier,
		TierName:            i.TierName,
		CatalogVersion:      i.CatalogVersion,
		AuthoritativeAmount: amount,
		Currency:            i.Currency,
		ClientAmount:        i.ClientAmount,
		Customer: domain.Customer{
			Name:  i.CustomerName,
			Email: i.CustomerEmail,
			Phone: i.CustomerPhone,
		},
		ReceiptToken:  i.ReceiptToken,
		ReceiptURL:    i.ReceiptURL,
		Status:        domain.IntentStatus(i.Status),
		FailureReason: i.FailureReason,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
		ResolvedAt:    i.ResolvedAt,
	}, nil
}

type membershipItem struct {
	PaymentReference string    `dynamodbav:"payment_reference"`
	ID               string    `dynamodbav:"id"`
	Fullname         string    `dynamodbav:"fullname"`
	Email            string    `dynamodbav:"email"`
	EmailKey         string    `dynamodbav:"email_key"`
	Phone            string    `dynamodbav:"phone"`
	Tier             string    `dynamodbav:"tier"`
	TierName         string    `dynamodbav:"tier_name"`
	AmountPaid       string    `dynamodbav:"amount_paid"`
	Currency         string    `dynamodbav:"currency"`
	ReceiptURL       string    `dynamodbav:"receipt_url"`
	Provider         string    `dynamodbav:"provider"`
	ProviderTxID     string    `dynamodbav:"provider_tx_id"`
	VerifiedAt       time.Time `dynamodbav:"verified_at"`
}

func toMembershipItem(record domain.MembershipRecord) membershipItem {
	return membershipItem{
		PaymentReference: record.PaymentReference,
		ID:               record.ID,
		Fullname:         record.Fullname,
		Email:            record.Email,
		EmailKey:         strings.ToLower(strings.TrimSpace(record.Email)),
		Phone:            record.Phone,
		Tier:             record.Tier,
		TierName:         record.TierName,
		AmountPaid:       record.AmountPaid.String(),
		Currency:         record.Currency,
		ReceiptURL:       record.ReceiptURL,
		Provider:         string(record.Provider),
		ProviderTxID:     record.ProviderTxID,
		VerifiedAt:       record.VerifiedAt,
	}
}

func (m membershipItem) toDomain() (domain.MembershipRecord, error) {
	amount, err := decimal.NewFromString(m.AmountPaid)
	if err != nil {
		return domain.MembershipRecord{}, err
	}
	return domain.MembershipRecord{
		ID:               m.ID,
		Fullname:         m.Fullname,
		Email:            m.Email,
		Phone:            m.Phone,
		Tier:             m.Tier,
		TierName:         m.TierName,
		AmountPaid:       amount,
		Currency:         m.Currency,
		ReceiptURL:       m.ReceiptURL,
		PaymentReference: m.PaymentReference,
		Provider:         domain.Provider(m.Provider),
		ProviderTxID:     m.ProviderTxID,
		VerifiedAt:       m.VerifiedAt,
	}, nil
}
