package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"purpuria-agent/internal/domain"
)

type fakeDynamo struct {
	queryOuts    []*dynamodb.QueryOutput
	queryErr     error
	txErr        error
	queryInputs  []dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
	queryCallIdx int
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, *in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := f.queryOuts[f.queryCallIdx]
	f.queryCallIdx++
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func makeTurnItem(role, content string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"role":    &types.AttributeValueMemberS{Value: role},
		"content": &types.AttributeValueMemberS{Value: content},
	}
}

func mustNewDynamoHistory(t *testing.T, db *fakeDynamo) *DynamoHistory {
	t.Helper()
	h, err := NewDynamoHistory(db, "test-table")
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return h
}

func TestNewDynamoHistory_Validates(t *testing.T) {
	_, err := NewDynamoHistory(nil, "table")
	require.Error(t, err)
	_, err = NewDynamoHistory(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestDynamoHistory_LoadFollowsPagination(t *testing.T) {
	lastKey := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "x"}}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{makeTurnItem("user", "q1"), makeTurnItem("assistant", "a1")}, LastEvaluatedKey: lastKey},
		{Items: []map[string]types.AttributeValue{makeTurnItem("user", "q2")}},
	}}
	h := mustNewDynamoHistory(t, db)

	turns, err := h.Load(context.Background(), testKey)
	require.NoError(t, err)
	require.Equal(t, []domain.Turn{domain.UserTurn("q1"), domain.AssistantTurn("a1"), domain.UserTurn("q2")}, turns)

	require.Len(t, db.queryInputs, 2)
	require.True(t, *db.queryInputs[0].ScanIndexForward)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.Equal(t, lastKey, db.queryInputs[1].ExclusiveStartKey)
	pk := db.queryInputs[0].ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS)
	require.Equal(t, "CHAT#17424290000101#02_teste", pk.Value)
}

func TestDynamoHistory_LoadErrors(t *testing.T) {
	h := mustNewDynamoHistory(t, &fakeDynamo{queryErr: errors.New("throttled")})
	_, err := h.Load(context.Background(), testKey)
	require.ErrorContains(t, err, "throttled")

	bad := map[string]types.AttributeValue{"role": &types.AttributeValueMemberN{Value: "1"}}
	h = mustNewDynamoHistory(t, &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{bad}}}})
	_, err = h.Load(context.Background(), testKey)
	require.ErrorContains(t, err, "not a string")
}

func TestDynamoHistory_AppendWritesPairInOneTransaction(t *testing.T) {
	db := &fakeDynamo{}
	h := mustNewDynamoHistory(t, db)

	err := h.Append(context.Background(), testKey, domain.UserTurn("q"), domain.AssistantTurn("a"))
	require.NoError(t, err)
	require.NotNil(t, db.lastTxInput)
	require.Len(t, db.lastTxInput.TransactItems, 2)

	first := db.lastTxInput.TransactItems[0].Put
	second := db.lastTxInput.TransactItems[1].Put
	require.Equal(t, "test-table", *first.TableName)
	require.Equal(t, "user", first.Item["role"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "assistant", second.Item["role"].(*types.AttributeValueMemberS).Value)

	sk1 := first.Item["SK"].(*types.AttributeValueMemberS).Value
	sk2 := second.Item["SK"].(*types.AttributeValueMemberS).Value
	require.Equal(t, "MSG#2025-01-15T10:00:00Z#000", sk1)
	require.Less(t, sk1, sk2)
}

func TestDynamoHistory_AppendError(t *testing.T) {
	h := mustNewDynamoHistory(t, &fakeDynamo{txErr: errors.New("conditional check failed")})
	err := h.Append(context.Background(), testKey, domain.UserTurn("q"))
	require.ErrorContains(t, err, "conditional check failed")
}
