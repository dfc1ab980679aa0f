package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/pixperk/lockttl/pkg/types"
)

// SQSAPI is the slice of the SQS client the sink needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink appends entries to an encrypted SQS dead-letter queue.
// Encryption at rest is the queue's own (server-side, key-managed), so the
// payload goes over as plain JSON.
type SQSSink struct {
	api      SQSAPI
	queueURL string
}

func NewSQSSink(api SQSAPI, queueURL string) *SQSSink {
	return &SQSSink{api: api, queueURL: queueURL}
}

func (s *SQSSink) Enqueue(ctx context.Context, entry types.DeadLetterEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry %s: %w", entry.ID, err)
	}

	_, err = s.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"FailureReason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.Reason),
			},
			"LockID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.Event.LockID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue dead-letter entry %s: %w", entry.ID, err)
	}
	return nil
}
