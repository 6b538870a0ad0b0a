package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"purpuria-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	ttlDuration = 90 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoHistory.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoHistory stores conversation turns in a single DynamoDB table, one
// item per turn.
type DynamoHistory struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoHistory creates a DynamoDB-backed history store.
func NewDynamoHistory(api dynamodbAPI, tableName string) (*DynamoHistory, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoHistory{api: api, tableName: tableName, now: time.Now}, nil
}

// convPK returns the partition key for a conversation.
func convPK(key domain.ConversationKey) string {
	return "CHAT#" + key.UserID + "#" + key.ConversationID
}

// msgSK orders turns by write time, then by position within one Append call.
func msgSK(ts time.Time, index int) string {
	return fmt.Sprintf("%s%s#%03d", skPrefixMsg, ts.UTC().Format(time.RFC3339Nano), index)
}

// Load queries all MSG# items of a conversation in chronological order,
// following pagination until the partition is exhausted.
func (h *DynamoHistory) Load(ctx context.Context, key domain.ConversationKey) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(h.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(key)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var turns []domain.Turn
	for {
		out, err := h.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: dynamodb history query: %w", err)
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: dynamodb history unmarshal: %w", err)
			}
			turns = append(turns, turn)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return turns, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Append writes all turns in one transaction so a user/assistant pair is
// never half-persisted.
func (h *DynamoHistory) Append(ctx context.Context, key domain.ConversationKey, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	now := h.now()
	ttl := now.Add(ttlDuration).Unix()

	items := make([]types.TransactWriteItem, 0, len(turns))
	for i, t := range turns {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(h.tableName),
				Item:                turnItem(key, msgSK(now, i), t, ttl),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	_, err := h.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return fmt.Errorf("repository: dynamodb history append: %w", err)
	}
	return nil
}

func turnItem(key domain.ConversationKey, sk string, t domain.Turn, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(key)},
		"SK":             &types.AttributeValueMemberS{Value: sk},
		"userId":         &types.AttributeValueMemberS{Value: key.UserID},
		"conversationId": &types.AttributeValueMemberS{Value: key.ConversationID},
		"role":           &types.AttributeValueMemberS{Value: string(t.Role)},
		"content":        &types.AttributeValueMemberS{Value: t.Content},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
	}
}

// itemToTurn converts a DynamoDB attribute map to a Turn.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Turn{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Turn{}, err
	}
	return domain.Turn{Role: domain.Role(role), Content: content}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
