package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/notifications"
	"github.com/omninet-app/backend/pkg/queue"
)

// NotificationProcessor drains booking lifecycle jobs and hands them to the
// email dispatcher.
type NotificationProcessor struct {
	dispatcher *notifications.Dispatcher
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewNotificationProcessor creates a booking notification processor.
func NewNotificationProcessor(dispatcher *notifications.Dispatcher, q *queue.Queue, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{dispatcher: dispatcher, queue: q, logger: logger}
}

// Process executes one booking notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.BookingEventPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	switch job.Type {
	case queue.JobTypeBookingCreated:
		return p.dispatcher.DispatchBookingCreated(ctx, payload.BookingID)
	case queue.JobTypeBookingStatusChanged:
		return p.dispatcher.DispatchStatusChanged(ctx, payload.BookingID)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("notification worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
