package implementations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

type IntentRepository struct {
	db *sql.DB
}

func NewIntentRepository(db *sql.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

const intentColumns = `
       id,
       reference,
       provider,
       tier,
       tier_name,
       catalog_version,
       authoritative_amount,
       currency,
       client_amount,
       customer_name,
       customer_email,
       customer_phone,
       receipt_token,
       receipt_url,
       status,
       failure_reason,
       created_at,
       updated_at,
       resolved_at`

func (r *IntentRepository) Create(ctx context.Context, intent domain.PaymentIntent) (domain.PaymentIntent, error) {
	logger.Info("intent repository create", logger.Fields{
		"reference": intent.Reference,
		"provider":  intent.Provider,
		"tier":      intent.Tier,
		"amount":    intent.AuthoritativeAmount,
	})

	const query = `
INSERT INTO payment_intents (
	id,
	reference,
	provider,
	tier,
	tier_name,
	catalog_version,
	authoritative_amount,
	currency,
	client_amount,
	customer_name,
	customer_email,
	customer_phone,
	receipt_token,
	receipt_url,
	status
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)
RETURNING created_at, updated_at`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		intent.ID,
		intent.Reference,
		intent.Provider,
		intent.Tier,
		intent.TierName,
		intent.CatalogVersion,
		intent.AuthoritativeAmount,
		intent.Currency,
		intent.ClientAmount,
		intent.Customer.Name,
		intent.Customer.Email,
		intent.Customer.Phone,
		intent.ReceiptToken,
		intent.ReceiptURL,
		intent.Status,
	).Scan(&intent.CreatedAt, &intent.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.PaymentIntent{}, fmt.Errorf("create intent %s: %w", intent.Reference, domain.ErrDuplicateRecord)
		}
		logger.Error("intent repository create failed", err, logger.Fields{
			"reference": intent.Reference,
		})
		return domain.PaymentIntent{}, storageError("create intent", err)
	}

	return intent, nil
}

func (r *IntentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentIntent, error) {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return domain.PaymentIntent{}, domain.NewValidationError("reference is required")
	}

	intent, err := scanIntent(r.db.QueryRowContext(ctx, `SELECT`+intentColumns+`
FROM payment_intents
WHERE reference = $1`, trimmed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("intent repository record not found", logger.Fields{
				"reference": trimmed,
			})
			return domain.PaymentIntent{}, domain.ErrRecordNotFound
		}
		logger.Error("intent repository get failed", err, logger.Fields{
			"reference": trimmed,
		})
		return domain.PaymentIntent{}, storageError("get intent", err)
	}

	return intent, nil
}

func (r *IntentRepository) Transition(ctx context.Context, reference string, from domain.IntentStatus, to domain.IntentStatus, reason string) error {
	logger.Info("intent repository transition", logger.Fields{
		"reference": reference,
		"from":      from,
		"to":        to,
	})

	rows, err := transitionIntent(ctx, r.db, reference, from, to, reason)
	if err != nil {
		logger.Error("intent repository transition failed", err, logger.Fields{
			"reference": reference,
		})
		return storageError("transition intent", err)
	}
	if rows == 0 {
		return r.explainNoRows(ctx, r.db, reference, from)
	}

	logger.Info("intent repository transition success", logger.Fields{
		"reference": reference,
		"status":    to,
	})
	return nil
}

func (r *IntentRepository) CompleteVerification(ctx context.Context, reference string, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	logger.Info("intent repository complete verification", logger.Fields{
		"reference": reference,
	})

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("intent repository begin tx failed", err, nil)
		return domain.MembershipRecord{}, storageError("begin verification transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var rows int64
	rows, err = transitionIntent(ctx, tx, reference, domain.IntentStatusPending, domain.IntentStatusVerified, "")
	if err != nil {
		err = storageError("transition intent", err)
		return domain.MembershipRecord{}, err
	}
	if rows == 0 {
		err = r.explainNoRows(ctx, tx, reference, domain.IntentStatusPending)
		return domain.MembershipRecord{}, err
	}

	var created domain.MembershipRecord
	created, err = insertMembership(ctx, tx, record)
	if err != nil {
		return domain.MembershipRecord{}, err
	}

	if err = tx.Commit(); err != nil {
		logger.Error("intent repository commit tx failed", err, logger.Fields{
			"reference": reference,
		})
		err = storageError("commit verification transaction", err)
		return domain.MembershipRecord{}, err
	}

	logger.Info("intent repository complete verification success", logger.Fields{
		"reference":    reference,
		"membershipId": created.ID,
	})
	return created, nil
}

func transitionIntent(ctx context.Context, q queryer, reference string, from domain.IntentStatus, to domain.IntentStatus, reason string) (int64, error) {
	const query = `
UPDATE payment_intents
SET status = $3::varchar,
    failure_reason = NULLIF($4, ''),
    updated_at = NOW(),
    resolved_at = CASE
        WHEN $3::varchar IN ('VERIFIED', 'FAILED', 'CANCELLED') THEN NOW()
        ELSE resolved_at
    END
WHERE reference = $1
  AND status = $2::varchar`

	result, err := q.ExecContext(ctx, query, reference, from, to, reason)
	if err != nil {
		return 0, fmt.Errorf("update intent status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update intent status rows affected: %w", err)
	}
	return rows, nil
}

// explainNoRows distinguishes a missing intent from a lost compare-and-swap.
func (r *IntentRepository) explainNoRows(ctx context.Context, q queryer, reference string, from domain.IntentStatus) error {
	var current domain.IntentStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM payment_intents WHERE reference = $1`, reference).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	if err != nil {
		return storageError("read intent status", err)
	}

	logger.Info("intent repository transition conflict", logger.Fields{
		"reference": reference,
		"expected":  from,
		"current":   current,
	})
	return fmt.Errorf("intent %s is %s, expected %s: %w", reference, current, from, domain.ErrConflict)
}

func scanIntent(row *sql.Row) (domain.PaymentIntent, error) {
	var (
		intent        domain.PaymentIntent
		clientAmount  sql.NullString
		receiptToken  sql.NullString
		receiptURL    sql.NullString
		failureReason sql.NullString
		resolvedAt    sql.NullTime
	)

	if err := row.Scan(
		&intent.ID,
		&intent.Reference,
		&intent.Provider,
		&intent.Tier,
		&intent.TierName,
		&intent.CatalogVersion,
		&intent.AuthoritativeAmount,
		&intent.Currency,
		&clientAmount,
		&intent.Customer.Name,
		&intent.Customer.Email,
		&intent.Customer.Phone,
		&receiptToken,
		&receiptURL,
		&intent.Status,
		&failureReason,
		&intent.CreatedAt,
		&intent.UpdatedAt,
		&resolvedAt,
	); err != nil {
		return domain.PaymentIntent{}, err
	}

	intent.ClientAmount = nullStringPtr(clientAmount)
	intent.ReceiptToken = nullStringPtr(receiptToken)
	intent.ReceiptURL = nullStringPtr(receiptURL)
	intent.FailureReason = nullStringPtr(failureReason)
	if resolvedAt.Valid {
		value := resolvedAt.Time
		intent.ResolvedAt = &value
	}

	return intent, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
