package dynamo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aspoi/membership-payments/src/internal/logger"
)

const conditionalCheckFailed = "ConditionalCheckFailed"

type IntentRepository struct {
	client           API
	tableName        string
	membershipsTable string
	now              func() time.Time
}

func NewIntentRepository(client API, tableName string, membershipsTable string) *IntentRepository {
	return &IntentRepository{
		client:           client,
		tableName:        tableName,
		membershipsTable: membershipsTable,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (r *IntentRepository) Create(ctx context.Context, intent domain.PaymentIntent) (domain.PaymentIntent, error) {
	now := r.now()
	intent.CreatedAt = now
	intent.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toIntentItem(intent))
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("marshal intent: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(reference)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return domain.PaymentIntent{}, fmt.Errorf("create intent %s: %w", intent.Reference, domain.ErrDuplicateRecord)
		}
		logger.Error("dynamo intent create failed", err, logger.Fields{
			"reference": intent.Reference,
		})
		return domain.PaymentIntent{}, storageError("create intent", err)
	}

	logger.Info("dynamo intent created", logger.Fields{
		"reference": intent.Reference,
		"table":     r.tableName,
	})
	return intent, nil
}

func (r *IntentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentIntent, error) {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return domain.PaymentIntent{}, domain.NewValidationError("reference is required")
	}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            referenceKey("reference", trimmed),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		logger.Error("dynamo intent get failed", err, logger.Fields{
			"reference": trimmed,
		})
		return domain.PaymentIntent{}, storageError("get intent", err)
	}
	if result.Item == nil {
		return domain.PaymentIntent{}, domain.ErrRecordNotFound
	}

	var item intentItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return domain.PaymentIntent{}, storageError("unmarshal intent", err)
	}
	intent, err := item.toDomain()
	if err != nil {
		return domain.PaymentIntent{}, storageError("decode intent", err)
	}
	return intent, nil
}

func (r *IntentRepository) Transition(ctx context.Context, reference string, from domain.IntentStatus, to domain.IntentStatus, reason string) error {
	update, err := r.transitionUpdate(reference, from, to, reason)
	if err != nil {
		return err
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 update.TableName,
		Key:                       update.Key,
		UpdateExpression:          update.UpdateExpression,
		ConditionExpression:       update.ConditionExpression,
		ExpressionAttributeNames:  update.ExpressionAttributeNames,
		ExpressionAttributeValues: update.ExpressionAttributeValues,
	})
	if err != nil {
		if isConditionFailure(err) {
			return r.explainConditionFailure(ctx, reference, from)
		}
		logger.Error("dynamo intent transition failed", err, logger.Fields{
			"reference": reference,
		})
		return storageError("transition intent", err)
	}

	logger.Info("dynamo intent transitioned", logger.Fields{
		"reference": reference,
		"from":      from,
		"to":        to,
	})
	return nil
}

func (r *IntentRepository) CompleteVerification(ctx context.Context, reference string, record domain.MembershipRecord) (domain.MembershipRecord, error) {
	record = withDefaults(record, r.now)

	update, err := r.transitionUpdate(reference, domain.IntentStatusPending, domain.IntentStatusVerified, "")
	if err != nil {
		return domain.MembershipRecord{}, err
	}
	item, err := attributevalue.MarshalMap(toMembershipItem(record))
	if err != nil {
		return domain.MembershipRecord{}, fmt.Errorf("marshal membership: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: update},
			{Put: &types.Put{
				TableName:           aws.String(r.membershipsTable),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(payment_reference)"),
			}},
		},
	})
	if err != nil {
		codes, cancelled := cancellationCodes(err)
		switch {
		case cancelled && len(codes) > 0 && codes[0] == conditionalCheckFailed:
			return domain.MembershipRecord{}, r.explainConditionFailure(ctx, reference, domain.IntentStatusPending)
		case cancelled && len(codes) > 1 && codes[1] == conditionalCheckFailed:
			return domain.MembershipRecord{}, fmt.Errorf("membership for %s: %w", reference, domain.ErrDuplicateRecord)
		}
		logger.Error("dynamo complete verification failed", err, logger.Fields{
			"reference": reference,
		})
		return domain.MembershipRecord{}, storageError("complete verification", err)
	}

	logger.Info("dynamo verification completed", logger.Fields{
		"reference":    reference,
		"membershipId": record.ID,
	})
	return record, nil
}

func (r *IntentRepository) transitionUpdate(reference string, from domain.IntentStatus, to domain.IntentStatus, reason string) (*types.Update, error) {
	now, err := attributevalue.Marshal(r.now())
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}

	values := map[string]types.AttributeValue{
		":from": &types.AttributeValueMemberS{Value: string(from)},
		":to":   &types.AttributeValueMemberS{Value: string(to)},
		":now":  now,
	}
	set := []string{"#status = :to", "updated_at = :now"}
	if to.IsTerminal() {
		set = append(set, "resolved_at = :now")
	}

	expression := "SET " + strings.Join(set, ", ")
	if reason != "" {
		values[":reason"] = &types.AttributeValueMemberS{Value: reason}
		expression = "SET " + strings.Join(append(set, "failure_reason = :reason"), ", ")
	} else {
		expression += " REMOVE failure_reason"
	}

	return &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       referenceKey("reference", reference),
		UpdateExpression:          aws.String(expression),
		ConditionExpression:       aws.String("#status = :from"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	}, nil
}

func (r *IntentRepository) explainConditionFailure(ctx context.Context, reference string, from domain.IntentStatus) error {
	current, err := r.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	logger.Info("dynamo intent transition conflict", logger.Fields{
		"reference": reference,
		"expected":  from,
		"current":   current.Status,
	})
	return fmt.Errorf("intent %s is %s, expected %s: %w", reference, current.Status, from, domain.ErrConflict)
}

func referenceKey(attribute string, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attribute: &types.AttributeValueMemberS{Value: value},
	}
}
