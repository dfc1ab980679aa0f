package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getIn     *dynamodb.GetItemInput
	getOut    *dynamodb.GetItemOutput
	getErr    error
	updateIn  *dynamodb.UpdateItemInput
	updateErr error
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getIn = in
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateIn = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

// TestDynamoGetExpiration verifies the key, projection and number decoding
func TestDynamoGetExpiration(t *testing.T) {
	api := &fakeDynamo{
		getOut: &dynamodb.GetItemOutput{
			Item: map[string]ddbtypes.AttributeValue{
				"ExpirationTime": &ddbtypes.AttributeValueMemberN{Value: "1700003600"},
			},
		},
	}
	s := NewDynamoStore(api, "locks")

	exp, found, err := s.GetExpiration(context.Background(), "tf-lock-a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1700003600), exp)

	require.NotNil(t, api.getIn)
	assert.Equal(t, "locks", aws.ToString(api.getIn.TableName))
	assert.Equal(t, "ExpirationTime", aws.ToString(api.getIn.ProjectionExpression))
	key, ok := api.getIn.Key["LockID"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "tf-lock-a", key.Value)
}

// TestDynamoGetExpirationAbsent verifies a missing item or attribute reads
// as not found, not as an error
func TestDynamoGetExpirationAbsent(t *testing.T) {
	s := NewDynamoStore(&fakeDynamo{}, "locks")

	_, found, err := s.GetExpiration(context.Background(), "tf-lock-a")
	require.NoError(t, err)
	assert.False(t, found)
}

// TestDynamoConditionalWrite verifies the update and condition expressions
func TestDynamoConditionalWrite(t *testing.T) {
	api := &fakeDynamo{}
	s := NewDynamoStore(api, "locks")

	applied, err := s.SetExpirationIfGreater(context.Background(), "tf-lock-a", 1700003600)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NotNil(t, api.updateIn)
	assert.Equal(t, "SET ExpirationTime = :et", aws.ToString(api.updateIn.UpdateExpression))
	assert.Equal(t, "attribute_not_exists(ExpirationTime) OR ExpirationTime < :et",
		aws.ToString(api.updateIn.ConditionExpression))
	val, ok := api.updateIn.ExpressionAttributeValues[":et"].(*ddbtypes.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1700003600", val.Value)
}

// TestDynamoConditionalCheckFailure verifies a failed condition is a benign
// no-op rather than an error
func TestDynamoConditionalCheckFailure(t *testing.T) {
	api := &fakeDynamo{updateErr: &ddbtypes.ConditionalCheckFailedException{}}
	s := NewDynamoStore(api, "locks")

	applied, err := s.SetExpirationIfGreater(context.Background(), "tf-lock-a", 100)
	require.NoError(t, err)
	assert.False(t, applied)
}

// TestDynamoBackendErrorPropagates verifies other backend errors surface
func TestDynamoBackendErrorPropagates(t *testing.T) {
	api := &fakeDynamo{updateErr: errors.New("throttled")}
	s := NewDynamoStore(api, "locks")

	_, err := s.SetExpirationIfGreater(context.Background(), "tf-lock-a", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
