package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

type MembershipRepository struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewMembershipRepository(client API, tableName string) *MembershipRepository {
	return &MembershipRepository{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func withDefaults(record domain.MembershipRecord, now func() time.Time) domain.MembershipRecord {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.VerifiedAt.IsZero() {
		record.VerifiedAt = now()
	}
	return record
}

func (r *MembershipRepository) Append(ctx context.Context, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	record = withDefaults(record, r.now)

	item, err := attributevalue.MarshalMap(toMembershipItem(record))
	if err != nil {
		return domain.MembershipRecord{}, fmt.Errorf("marshal membership: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(payment_reference)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return domain.MembershipRecord{}, fmt.Errorf("membership for %s: %w", record.PaymentReference, domain.ErrDuplicateRecord)
		}
		logger.Error("dynamo membership append failed", err, logger.Fields{
			"reference": record.PaymentReference,
		})
		return domain.MembershipRecord{}, storageError("append membership", err)
	}
	return record, nil
}

func (r *MembershipRepository) GetByPaymentReference(ctx context.Context, reference string) (domain.MembershipRecord, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            referenceKey("payment_reference", strings.TrimSpace(reference)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.MembershipRecord{}, storageError("get membership", err)
	}
	if result.Item == nil {
		return domain.MembershipRecord{}, domain.ErrRecordNotFound
	}

	records, err := decodeMemberships([]map[string]types.AttributeValue{result.Item})
	if err != nil {
		return domain.MembershipRecord{}, err
	}
	return records[0], nil
}

func (r *MembershipRepository) FindByEmail(ctx context.Context, email string) ([]domain.MembershipRecord, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return nil, domain.NewValidationError("email is required")
	}

	records := make([]domain.MembershipRecord, 0)
	var startKey map[string]types.AttributeValue
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(EmailIndex),
			KeyConditionExpression: aws.String("email_key = :email"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":email": &types.AttributeValueMemberS{Value: trimmed},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			logger.Error("dynamo membership query failed", err, nil)
			return nil, storageError("find memberships by email", err)
		}

		page, err := decodeMemberships(result.Items)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	sortNewestFirst(records)
	return records, nil
}

// List scans the whole table; membership volumes are small enough that
// ordering in process is acceptable.
func (r *MembershipRepository) List(ctx context.Context, limit int, offset int) ([]domain.MembershipRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records := make([]domain.MembershipRecord, 0)
	var startKey map[string]types.AttributeValue
	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			logger.Error("dynamo membership scan failed", err, nil)
			return nil, storageError("list memberships", err)
		}

		page, err := decodeMemberships(result.Items)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	sortNewestFirst(records)
	if offset >= len(records) {
		return []domain.MembershipRecord{}, nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end], nil
}

func decodeMemberships(items []map[string]types.AttributeValue) ([]domain.MembershipRecord, error) {
	records := make([]domain.MembershipRecord, 0, len(items))
	for _, raw := range items {
		var item membershipItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, storageError("unmarshal membership", err)
		}
		record, err := item.toDomain()
		if err != nil {
			return nil, storageError("decode membership", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func sortNewestFirst(records []domain.MembershipRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].VerifiedAt.After(records[j].VerifiedAt)
	})
}
