package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	streamav "github.com/aws/aws-sdk-go-v2/feature/dynamodbstreams/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/pixperk/lockttl/pkg/types"
)

// StreamsAPI is the slice of the DynamoDB Streams client the reader needs.
type StreamsAPI interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// DynamoStream implements ChangeStream over a DynamoDB table stream.
// The iterator returned by each GetRecords call is cached per shard and
// reused on the next poll: a fresh LATEST iterator snaps to the shard tip,
// so re-deriving one while the shard is idle would drop anything committed
// between polls. Only when a cached iterator goes bad (expired, read error)
// does the reader re-derive from the caller's position.
type DynamoStream struct {
	api       StreamsAPI
	streamARN string

	mu        sync.Mutex
	iterators map[string]*string
}

func NewDynamoStream(api StreamsAPI, streamARN string) *DynamoStream {
	return &DynamoStream{
		api:       api,
		streamARN: streamARN,
		iterators: make(map[string]*string),
	}
}

func (s *DynamoStream) Shards(ctx context.Context) ([]string, error) {
	var shards []string
	var lastShardID *string

	for {
		out, err := s.api.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(s.streamARN),
			ExclusiveStartShardId: lastShardID,
		})
		if err != nil {
			return nil, fmt.Errorf("describe stream: %w", err)
		}
		for _, sh := range out.StreamDescription.Shards {
			shards = append(shards, aws.ToString(sh.ShardId))
		}
		lastShardID = out.StreamDescription.LastEvaluatedShardId
		if lastShardID == nil {
			return shards, nil
		}
	}
}

func (s *DynamoStream) Read(ctx context.Context, shardID, position string, limit int) ([]types.ChangeEvent, string, error) {
	iter := s.cachedIterator(shardID)
	if iter == nil {
		var err error
		iter, err = s.shardIterator(ctx, shardID, position)
		if err != nil {
			return nil, position, err
		}
	}

	out, err := s.api.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
		ShardIterator: iter,
		Limit:         aws.Int32(int32(limit)),
	})
	if err != nil {
		// the next poll re-derives from position, nothing is skipped
		s.setIterator(shardID, nil)
		return nil, position, fmt.Errorf("get records from %s: %w", shardID, err)
	}

	events := make([]types.ChangeEvent, 0, len(out.Records))
	next := position
	for _, rec := range out.Records {
		ev, err := decodeRecord(shardID, rec)
		if err != nil {
			s.setIterator(shardID, nil)
			return nil, position, err
		}
		events = append(events, ev)
		next = ev.SequenceNumber
	}

	s.setIterator(shardID, out.NextShardIterator)
	return events, next, nil
}

func (s *DynamoStream) cachedIterator(shardID string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterators[shardID]
}

func (s *DynamoStream) setIterator(shardID string, iter *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if iter == nil {
		delete(s.iterators, shardID)
		return
	}
	s.iterators[shardID] = iter
}

func (s *DynamoStream) shardIterator(ctx context.Context, shardID, position string) (*string, error) {
	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(s.streamARN),
		ShardId:           aws.String(shardID),
		ShardIteratorType: streamtypes.ShardIteratorTypeLatest,
	}
	if position != "" {
		in.ShardIteratorType = streamtypes.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = aws.String(position)
	}

	out, err := s.api.GetShardIterator(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("shard iterator for %s: %w", shardID, err)
	}
	return out.ShardIterator, nil
}

func decodeRecord(shardID string, rec streamtypes.Record) (types.ChangeEvent, error) {
	ev := types.ChangeEvent{
		ShardID: shardID,
	}

	switch rec.EventName {
	case streamtypes.OperationTypeInsert:
		ev.Type = types.EventTypeInsert
	case streamtypes.OperationTypeModify:
		ev.Type = types.EventTypeModify
	case streamtypes.OperationTypeRemove:
		ev.Type = types.EventTypeRemove
	default:
		return ev, fmt.Errorf("%w: %q", types.ErrUnknownEventType, rec.EventName)
	}

	sr := rec.Dynamodb
	if sr == nil {
		return ev, fmt.Errorf("record %s has no stream payload", aws.ToString(rec.EventID))
	}
	ev.SequenceNumber = aws.ToString(sr.SequenceNumber)
	if sr.ApproximateCreationDateTime != nil {
		ev.CreatedAt = *sr.ApproximateCreationDateTime
	} else {
		ev.CreatedAt = time.Now()
	}

	var key struct {
		LockID string
	}
	if err := streamav.UnmarshalMap(sr.Keys, &key); err != nil {
		return ev, fmt.Errorf("record %s: decode keys: %w", ev.SequenceNumber, err)
	}
	if key.LockID == "" {
		return ev, fmt.Errorf("record %s: key LockID missing", ev.SequenceNumber)
	}
	ev.LockID = key.LockID

	oldImage, err := decodeImage(key.LockID, sr.OldImage)
	if err != nil {
		return ev, fmt.Errorf("record %s: decode old image: %w", ev.SequenceNumber, err)
	}
	ev.OldImage = oldImage

	newImage, err := decodeImage(key.LockID, sr.NewImage)
	if err != nil {
		return ev, fmt.Errorf("record %s: decode new image: %w", ev.SequenceNumber, err)
	}
	ev.NewImage = newImage
	return ev, nil
}

func decodeImage(lockID string, image map[string]streamtypes.AttributeValue) (*types.LockRecord, error) {
	if image == nil {
		return nil, nil
	}
	var rec types.LockRecord
	if err := streamav.UnmarshalMap(image, &rec); err != nil {
		return nil, err
	}
	rec.LockID = lockID
	return &rec, nil
}
