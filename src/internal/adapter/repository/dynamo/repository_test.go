package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

type stubAPI struct {
	getItemFn            func(ctx context.Context, params *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItemFn            func(ctx context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItemFn         func(ctx context.Context, params *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	transactWriteItemsFn func(ctx context.Context, params *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
	queryFn              func(ctx context.Context, params *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scanFn               func(ctx context.Context, params *dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
}

func (s *stubAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return s.getItemFn(ctx, params)
}

func (s *stubAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return s.putItemFn(ctx, params)
}

func (s *stubAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return s.updateItemFn(ctx, params)
}

func (s *stubAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return s.transactWriteItemsFn(ctx, params)
}

func (s *stubAPI) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return s.queryFn(ctx, params)
}

func (s *stubAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return s.scanFn(ctx, params)
}

func intentItemFor(t *testing.T, status domain.IntentStatus) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(toIntentItem(domain.PaymentIntent{
		ID:                  "id-1",
		Reference:           "REF-1",
		Provider:            domain.ProviderPaystack,
		Tier:                "corporate",
		AuthoritativeAmount: decimal.NewFromInt(750000),
		Currency:            "NGN",
		Status:              status,
	}))
	require.NoError(t, err)
	return item
}

func TestCreateMapsConditionFailureToDuplicate(t *testing.T) {
	api := &stubAPI{
		putItemFn: func(_ context.Context, params *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			assert.Equal(t, "attribute_not_exists(reference)", aws.ToString(params.ConditionExpression))
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	_, err := repo.Create(context.Background(), domain.PaymentIntent{Reference: "REF-1", AuthoritativeAmount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
}

func TestGetByReferenceDecodesItem(t *testing.T) {
	api := &stubAPI{
		getItemFn: func(_ context.Context, params *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.True(t, aws.ToBool(params.ConsistentRead))
			return &dynamodb.GetItemOutput{Item: intentItemFor(t, domain.IntentStatusPending)}, nil
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	intent, err := repo.GetByReference(context.Background(), "REF-1")
	require.NoError(t, err)
	assert.Equal(t, "REF-1", intent.Reference)
	assert.True(t, intent.AuthoritativeAmount.Equal(decimal.NewFromInt(750000)))
	assert.Equal(t, domain.IntentStatusPending, intent.Status)
}

func TestGetByReferenceMissingItem(t *testing.T) {
	api := &stubAPI{
		getItemFn: func(context.Context, *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	_, err := repo.GetByReference(context.Background(), "REF-1")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestTransitionUsesStatusCondition(t *testing.T) {
	var captured *dynamodb.UpdateItemInput
	api := &stubAPI{
		updateItemFn: func(_ context.Context, params *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			captured = params
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")
	repo.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }

	err := repo.Transition(context.Background(), "REF-1", domain.IntentStatusPending, domain.IntentStatusFailed, "amount mismatch")
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "#status = :from", aws.ToString(captured.ConditionExpression))
	assert.Contains(t, aws.ToString(captured.UpdateExpression), "resolved_at = :now")
	assert.Contains(t, aws.ToString(captured.UpdateExpression), "failure_reason = :reason")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PENDING"}, captured.ExpressionAttributeValues[":from"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "FAILED"}, captured.ExpressionAttributeValues[":to"])
}

func TestTransitionConditionFailureBecomesConflict(t *testing.T) {
	api := &stubAPI{
		updateItemFn: func(context.Context, *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("status changed")}
		},
		getItemFn: func(context.Context, *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: intentItemFor(t, domain.IntentStatusVerified)}, nil
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	err := repo.Transition(context.Background(), "REF-1", domain.IntentStatusPending, domain.IntentStatusVerified, "")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCompleteVerificationWritesBothItemsInOneTransaction(t *testing.T) {
	var captured *dynamodb.TransactWriteItemsInput
	api := &stubAPI{
		transactWriteItemsFn: func(_ context.Context, params *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			captured = params
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	record, err := repo.CompleteVerification(context.Background(), "REF-1", domain.MembershipRecord{
		PaymentReference: "REF-1",
		Email:            "Ada@Example.com",
		AmountPaid:       decimal.NewFromInt(750000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.VerifiedAt.IsZero())

	require.NotNil(t, captured)
	require.Len(t, captured.TransactItems, 2)
	require.NotNil(t, captured.TransactItems[0].Update)
	require.NotNil(t, captured.TransactItems[1].Put)
	assert.Equal(t, "intents", aws.ToString(captured.TransactItems[0].Update.TableName))
	assert.Equal(t, "memberships", aws.ToString(captured.TransactItems[1].Put.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "ada@example.com"}, captured.TransactItems[1].Put.Item["email_key"])
}

func TestCompleteVerificationCancelledOnMembershipIsDuplicate(t *testing.T) {
	api := &stubAPI{
		transactWriteItemsFn: func(context.Context, *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("None")},
					{Code: aws.String(conditionalCheckFailed)},
				},
			}
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	_, err := repo.CompleteVerification(context.Background(), "REF-1", domain.MembershipRecord{PaymentReference: "REF-1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
}

func TestCompleteVerificationCancelledOnIntentIsConflict(t *testing.T) {
	api := &stubAPI{
		transactWriteItemsFn: func(context.Context, *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String(conditionalCheckFailed)},
					{Code: aws.String("None")},
				},
			}
		},
		getItemFn: func(context.Context, *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: intentItemFor(t, domain.IntentStatusVerified)}, nil
		},
	}
	repo := NewIntentRepository(api, "intents", "memberships")

	_, err := repo.CompleteVerification(context.Background(), "REF-1", domain.MembershipRecord{PaymentReference: "REF-1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestFindByEmailQueriesIndexAcrossPages(t *testing.T) {
	first, err := attributevalue.MarshalMap(toMembershipItem(domain.MembershipRecord{
		PaymentReference: "A",
		Email:            "ada@example.com",
		AmountPaid:       decimal.NewFromInt(37500),
		VerifiedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, err)
	second, err := attributevalue.MarshalMap(toMembershipItem(domain.MembershipRecord{
		PaymentReference: "B",
		Email:            "ada@example.com",
		AmountPaid:       decimal.NewFromInt(180000),
		VerifiedAt:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, err)

	calls := 0
	api := &stubAPI{
		queryFn: func(_ context.Context, params *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			calls++
			assert.Equal(t, EmailIndex, aws.ToString(params.IndexName))
			assert.Equal(t, &types.AttributeValueMemberS{Value: "ada@example.com"}, params.ExpressionAttributeValues[":email"])
			if calls == 1 {
				return &dynamodb.QueryOutput{
					Items:            []map[string]types.AttributeValue{first},
					LastEvaluatedKey: referenceKey("payment_reference", "A"),
				}, nil
			}
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{second}}, nil
		},
	}
	repo := NewMembershipRepository(api, "memberships")

	records, err := repo.FindByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[0].PaymentReference)
	assert.Equal(t, 2, calls)
}

func TestAppendStorageFailureIsStorageError(t *testing.T) {
	api := &stubAPI{
		putItemFn: func(context.Context, *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	repo := NewMembershipRepository(api, "memberships")

	_, err := repo.Append(context.Background(), domain.MembershipRecord{PaymentReference: "A"})
	var storageErr *domain.StorageError
	assert.ErrorAs(t, err, &storageErr)
}
