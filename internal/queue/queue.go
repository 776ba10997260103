// Package queue carries prediction requests from the web tier to the app tier
// over a pair of SQS queues.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"

	"brandguard/internal/model"
)

var (
	ErrTimeout   = errors.New("timed out waiting for prediction")
	ErrMalformed = errors.New("malformed queue message")
)

// SQSAPI is the slice of the SQS client used by both tiers.
type SQSAPI interface {
	SendMessageWithContext(ctx aws.Context, in *sqs.SendMessageInput, opts ...request.Option) (*sqs.SendMessageOutput, error)
	ReceiveMessageWithContext(ctx aws.Context, in *sqs.ReceiveMessageInput, opts ...request.Option) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageWithContext(ctx aws.Context, in *sqs.DeleteMessageInput, opts ...request.Option) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibilityWithContext(ctx aws.Context, in *sqs.ChangeMessageVisibilityInput, opts ...request.Option) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Request asks the app tier to classify Text.
type Request struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Reply answers the Request with the same ID. Error is set when the app tier
// could not classify the text.
type Reply struct {
	ID         string      `json:"id"`
	Label      model.Label `json:"label,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Queues names the request and response queue URLs.
type Queues struct {
	RequestURL  string
	ResponseURL string
}

// pollBackoff is how long a poller waits after a failed receive.
var pollBackoff = 1 * time.Second

func send(ctx context.Context, api SQSAPI, url string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = api.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", url, err)
	}
	return nil
}

func receive(ctx context.Context, api SQSAPI, url string, waitSeconds int64) ([]*sqs.Message, error) {
	out, err := api.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: aws.Int64(10),
		WaitTimeSeconds:     aws.Int64(waitSeconds),
		AttributeNames:      aws.StringSlice([]string{sqs.MessageSystemAttributeNameSentTimestamp}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %s: %w", url, err)
	}
	return out.Messages, nil
}

func remove(ctx context.Context, api SQSAPI, url string, msg *sqs.Message) error {
	_, err := api.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message from %s: %w", url, err)
	}
	return nil
}

// release makes msg visible to other consumers right away.
func release(ctx context.Context, api SQSAPI, url string, msg *sqs.Message) error {
	_, err := api.ChangeMessageVisibilityWithContext(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(url),
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("failed to release message on %s: %w", url, err)
	}
	return nil
}

// sentAt reads the SentTimestamp attribute (epoch milliseconds).
func sentAt(msg *sqs.Message) (time.Time, bool) {
	raw := aws.StringValue(msg.Attributes[sqs.MessageSystemAttributeNameSentTimestamp])
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func decode(msg *sqs.Message, v any) error {
	if msg.Body == nil {
		return fmt.Errorf("%w: empty body", ErrMalformed)
	}
	if err := json.Unmarshal([]byte(*msg.Body), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// sleep waits for d or until ctx is done, reporting whether to keep going.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
