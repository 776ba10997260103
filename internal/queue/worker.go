package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go/service/sqs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brandguard/internal/model"
)

// Worker answers prediction requests from the request queue.
type Worker struct {
	api         SQSAPI
	queues      Queues
	predictor   model.Predictor
	concurrency int
	waitSeconds int64
	logger      *zap.Logger
}

// NewWorker builds a Worker running concurrency pollers.
func NewWorker(api SQSAPI, queues Queues, predictor model.Predictor, concurrency int, waitSeconds int64, logger *zap.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		api:         api,
		queues:      queues,
		predictor:   predictor,
		concurrency: concurrency,
		waitSeconds: waitSeconds,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("app tier started, polling for requests",
		zap.String("queue", w.queues.RequestURL),
		zap.Int("pollers", w.concurrency))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.poll(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) poll(ctx context.Context) {
	for {
		msgs, err := receive(ctx, w.api, w.queues.RequestURL, w.waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("error polling request queue", zap.Error(err))
			if !sleep(ctx, pollBackoff) {
				return
			}
			continue
		}
		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// handle classifies one request and replies. The request is left on the queue
// for redelivery only if the reply could not be sent.
func (w *Worker) handle(ctx context.Context, msg *sqs.Message) {
	var req Request
	if err := decode(msg, &req); err != nil || req.ID == "" {
		if err == nil {
			err = errors.New("missing request id")
		}
		w.logger.Warn("discarding malformed request", zap.Error(err))
		w.delete(ctx, msg)
		return
	}

	reply := Reply{ID: req.ID}
	pred, err := w.predictor.Predict(ctx, strings.TrimSpace(req.Text))
	if err != nil {
		reply.Error = err.Error()
		w.logger.Error("error classifying request", zap.String("id", req.ID), zap.Error(err))
	} else {
		reply.Label = pred.Label
		reply.Confidence = pred.Confidence
	}

	if err := send(ctx, w.api, w.queues.ResponseURL, reply); err != nil {
		w.logger.Error("error sending reply", zap.String("id", req.ID), zap.Error(err))
		return
	}
	w.logger.Debug("request answered", zap.String("id", req.ID), zap.String("label", string(reply.Label)))
	w.delete(ctx, msg)
}

func (w *Worker) delete(ctx context.Context, msg *sqs.Message) {
	if err := remove(ctx, w.api, w.queues.RequestURL, msg); err != nil {
		w.logger.Error("error deleting request", zap.Error(err))
	}
}
