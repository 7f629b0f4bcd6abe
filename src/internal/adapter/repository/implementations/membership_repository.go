package implementations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `
       id,
       fullname,
       email,
       phone,
       tier,
       tier_name,
       amount_paid,
       currency,
       receipt_url,
       payment_reference,
       provider,
       provider_tx_id,
       verified_at`

func (r *MembershipRepository) Append(ctx context.Context, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	return insertMembership(ctx, r.db, record)
}

func insertMembership(ctx context.Context, q queryer, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.VerifiedAt.IsZero() {
		record.VerifiedAt = nowUTC()
	}

	logger.Info("membership repository append", logger.Fields{
		"membershipId": record.ID,
		"reference":    record.PaymentReference,
		"tier":         record.Tier,
	})

	const query = `
INSERT INTO memberships (
	id,
	fullname,
	email,
	phone,
	tier,
	tier_name,
	amount_paid,
	currency,
	receipt_url,
	payment_reference,
	provider,
	provider_tx_id,
	verified_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)`

	if _, err := q.ExecContext(
		ctx,
		query,
		record.ID,
		record.Fullname,
		record.Email,
		record.Phone,
		record.Tier,
		record.TierName,
		record.AmountPaid,
		record.Currency,
		record.ReceiptURL,
		record.PaymentReference,
		record.Provider,
		record.ProviderTxID,
		record.VerifiedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.MembershipRecord{}, fmt.Errorf("membership for %s: %w", record.PaymentReference, domain.ErrDuplicateRecord)
		}
		logger.Error("membership repository append failed", err, logger.Fields{
			"reference": record.PaymentReference,
		})
		return domain.MembershipRecord{}, storageError("append membership", err)
	}

	return record, nil
}

func (r *MembershipRepository) GetByPaymentReference(ctx context.Context, reference string) (domain.MembershipRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+membershipColumns+`
FROM memberships
WHERE payment_reference = $1`, strings.TrimSpace(reference))
	if err != nil {
		logger.Error("membership repository get failed", err, logger.Fields{
			"reference": reference,
		})
		return domain.MembershipRecord{}, storageError("get membership", err)
	}

	records, err := scanMemberships(rows)
	if err != nil {
		return domain.MembershipRecord{}, storageError("get membership", err)
	}
	if len(records) == 0 {
		return domain.MembershipRecord{}, domain.ErrRecordNotFound
	}
	return records[0], nil
}

func (r *MembershipRepository) FindByEmail(ctx context.Context, email string) ([]domain.MembershipRecord, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, domain.NewValidationError("email is required")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT`+membershipColumns+`
FROM memberships
WHERE LOWER(email) = LOWER($1)
ORDER BY verified_at DESC`, trimmed)
	if err != nil {
		logger.Error("membership repository find by email failed", err, nil)
		return nil, storageError("find memberships by email", err)
	}

	records, err := scanMemberships(rows)
	if err != nil {
		return nil, storageError("find memberships by email", err)
	}
	return records, nil
}

func (r *MembershipRepository) List(ctx context.Context, limit int, offset int) ([]domain.MembershipRecord, error) {
	limit, offset = normalizePage(limit, offset)

	rows, err := r.db.QueryContext(ctx, `SELECT`+membershipColumns+`
FROM memberships
ORDER BY verified_at DESC, id
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		logger.Error("membership repository list failed", err, logger.Fields{
			"limit":  limit,
			"offset": offset,
		})
		return nil, storageError("list memberships", err)
	}

	records, err := scanMemberships(rows)
	if err != nil {
		return nil, storageError("list memberships", err)
	}
	return records, nil
}

func normalizePage(limit int, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanMemberships(rows *sql.Rows) ([]domain.MembershipRecord, error) {
	defer rows.Close()

	records := make([]domain.MembershipRecord, 0)
	for rows.Next() {
		var record domain.MembershipRecord
		if err := rows.Scan(
			&record.ID,
			&record.Fullname,
			&record.Email,
			&record.Phone,
			&record.Tier,
			&record.TierName,
			&record.AmountPaid,
			&record.Currency,
			&record.ReceiptURL,
			&record.PaymentReference,
			&record.Provider,
			&record.ProviderTxID,
			&record.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return records, nil
}
