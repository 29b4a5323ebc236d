package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobhive/jobhive-api/pkg/jobs"
)

// LogNotifier writes reset links to the application log instead of
// delivering mail. It stands in for a real mail integration in local and
// test environments.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// SendPasswordResetLink logs the reset link for the given recipient.
func (n *LogNotifier) SendPasswordResetLink(_ context.Context, email, resetURL string) error {
	n.logger.Info("password reset link issued",
		zap.String("email", email),
		zap.String("reset_url", resetURL),
	)
	return nil
}

const jobTypeResetLink = "password_reset_link"

type resetLinkPayload struct {
	Email string
	URL   string
}

// NewNotifyQueue builds the background queue that hands notification jobs to
// the delegate. Delivery retries stay inside the queue so request handlers
// never wait on them.
func NewNotifyQueue(delegate Notifier, cfg jobs.QueueConfig) *jobs.Queue {
	return jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case jobTypeResetLink:
			payload, ok := job.Payload.(resetLinkPayload)
			if !ok {
				return fmt.Errorf("unexpected payload for job %s", job.ID)
			}
			return delegate.SendPasswordResetLink(ctx, payload.Email, payload.URL)
		default:
			return fmt.Errorf("unknown job type %q", job.Type)
		}
	}, cfg)
}

// QueueNotifier dispatches notifications through a background queue.
type QueueNotifier struct {
	queue *jobs.Queue
}

// NewQueueNotifier constructs a QueueNotifier on a started queue.
func NewQueueNotifier(queue *jobs.Queue) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

// SendPasswordResetLink enqueues the delivery and returns immediately.
func (n *QueueNotifier) SendPasswordResetLink(_ context.Context, email, resetURL string) error {
	return n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeResetLink,
		Payload: resetLinkPayload{Email: email, URL: resetURL},
	})
}
