package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"brandguard/internal/model"
)

// Client is a model.Predictor that forwards texts to the app tier and waits
// for the matching reply. Run must be active for replies to be delivered.
type Client struct {
	api         SQSAPI
	queues      Queues
	waitSeconds int64
	timeout     time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	pending map[string]chan Reply
}

// NewClient builds a Client. timeout bounds how long Predict waits for a reply.
func NewClient(api SQSAPI, queues Queues, waitSeconds int64, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		api:         api,
		queues:      queues,
		waitSeconds: waitSeconds,
		timeout:     timeout,
		logger:      logger,
		pending:     make(map[string]chan Reply),
	}
}

// Predict sends text to the request queue and blocks until its reply arrives.
func (c *Client) Predict(ctx context.Context, text string) (model.Prediction, error) {
	id := uuid.NewString()
	ch := make(chan Reply, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := send(ctx, c.api, c.queues.RequestURL, Request{ID: id, Text: text}); err != nil {
		return model.Prediction{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return model.Prediction{}, fmt.Errorf("app tier: %s", reply.Error)
		}
		label, err := model.ParseLabel(string(reply.Label))
		if err != nil {
			return model.Prediction{}, err
		}
		return model.Prediction{Label: label, Confidence: reply.Confidence}, nil
	case <-timer.C:
		return model.Prediction{}, ErrTimeout
	case <-ctx.Done():
		return model.Prediction{}, ctx.Err()
	}
}

// Run polls the response queue and hands replies to waiting callers until ctx
// is cancelled.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("polling response queue", zap.String("queue", c.queues.ResponseURL))
	for {
		msgs, err := receive(ctx, c.api, c.queues.ResponseURL, c.waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("error polling response queue", zap.Error(err))
			if !sleep(ctx, pollBackoff) {
				return nil
			}
			continue
		}

		for _, msg := range msgs {
			if !c.dispatch(msg) {
				// Another web tier sharing the queue may be waiting for it.
				if err := release(ctx, c.api, c.queues.ResponseURL, msg); err != nil && ctx.Err() == nil {
					c.logger.Error("error releasing reply", zap.Error(err))
				}
				continue
			}
			if err := remove(ctx, c.api, c.queues.ResponseURL, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				c.logger.Error("error deleting reply", zap.Error(err))
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// dispatch routes a reply to its caller and reports whether the message is
// done with. Unreadable replies and replies older than the timeout, whose
// caller has given up on every tier, are dropped. Other replies with no local
// caller are left for the tier that sent the request.
func (c *Client) dispatch(msg *sqs.Message) bool {
	var reply Reply
	if err := decode(msg, &reply); err != nil {
		c.logger.Warn("dropping unreadable reply", zap.Error(err))
		return true
	}

	c.mu.Lock()
	ch, ok := c.pending[reply.ID]
	c.mu.Unlock()
	if !ok {
		sent, known := sentAt(msg)
		if !known || time.Since(sent) > c.timeout {
			c.logger.Warn("dropping reply with no waiting request", zap.String("id", reply.ID))
			return true
		}
		c.logger.Debug("leaving reply for another web tier", zap.String("id", reply.ID))
		return false
	}
	select {
	case ch <- reply:
	default:
	}
	return true
}
