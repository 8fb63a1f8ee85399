package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DigestEnvelope is the queue message body.
// digestKind tags queued and mailed digests.
const digestKind = "appointment_digest"

type DigestEnvelope struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

// SQSTransport publishes digests to a queue for downstream fan-out.
type SQSTransport struct {
	client   SQSAPI
	queueURL string
	now      func() time.Time
}

func NewSQSTransport(client SQSAPI, queueURL string) *SQSTransport {
	return &SQSTransport{client: client, queueURL: queueURL, now: time.Now}
}

func (q *SQSTransport) Send(ctx context.Context, message, title string) error {
	if q.client == nil || q.queueURL == "" {
		return fmt.Errorf("sqs: client and queue url required")
	}
	body, err := json.Marshal(DigestEnvelope{Title: title, Message: message, SentAt: q.now().UTC()})
	if err != nil {
		return fmt.Errorf("sqs: marshal digest: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(digestKind)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs: send message: %w", err)
	}
	return nil
}
