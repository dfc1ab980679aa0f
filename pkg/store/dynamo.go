package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// attribute names shared with the lock table's external clients
const (
	attrLockID         = "LockID"
	attrExpirationTime = "ExpirationTime"
)

// DynamoAPI is the slice of the DynamoDB client the store needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements RecordStore against a DynamoDB lock table.
type DynamoStore struct {
	api   DynamoAPI
	table string
}

func NewDynamoStore(api DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{api: api, table: table}
}

func (s *DynamoStore) GetExpiration(ctx context.Context, lockID string) (int64, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.table),
		Key:                  lockKey(lockID),
		ProjectionExpression: aws.String(attrExpirationTime),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return 0, false, fmt.Errorf("get expiration for %s: %w", lockID, err)
	}

	av, ok := out.Item[attrExpirationTime]
	if !ok {
		return 0, false, nil
	}
	n, ok := av.(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, false, fmt.Errorf("lock %s: %s is not a number attribute", lockID, attrExpirationTime)
	}
	exp, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("lock %s: parse %s: %w", lockID, attrExpirationTime, err)
	}
	return exp, true, nil
}

func (s *DynamoStore) SetExpirationIfGreater(ctx context.Context, lockID string, expiration int64) (bool, error) {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 lockKey(lockID),
		UpdateExpression:    aws.String("SET ExpirationTime = :et"),
		ConditionExpression: aws.String("attribute_not_exists(ExpirationTime) OR ExpirationTime < :et"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":et": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(expiration, 10)},
		},
	})
	if err != nil {
		// the stored expiration is already >= ours, someone got there first
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("conditional expiration write for %s: %w", lockID, err)
	}
	return true, nil
}

func lockKey(lockID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		attrLockID: &ddbtypes.AttributeValueMemberS{Value: lockID},
	}
}
