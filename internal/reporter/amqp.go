package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// StatusPublisher — публикация в канал статусов (mq.Publisher).
type StatusPublisher interface {
	PublishStatus(ctx context.Context, jobID string, payload any) error
	PublishJob(ctx context.Context, jobID string, payload any) error
	PublishTask(ctx context.Context, jobID string, payload any) error
}

// AMQP публикует те же payload'ы, что и REST, в обменник plantit.status.
type AMQP struct {
	mu      sync.Mutex
	pub     StatusPublisher
	jobID   string
	nowFunc func() time.Time
}

// NewAMQP создаёт AMQP-репортер.
func NewAMQP(pub StatusPublisher, jobID string) (*AMQP, error) {
	if jobID == "" {
		return nil, ErrMissingJobID
	}
	return &AMQP{pub: pub, jobID: jobID, nowFunc: time.Now}, nil
}

func (a *AMQP) UpdateStatus(ctx context.Context, state domain.StatusState, description string) error {
	payload, err := StatusPayload(state, description, a.nowFunc())
	if err != nil {
		return err
	}
	return a.publish(func() error { return a.pub.PublishStatus(ctx, a.jobID, payload) })
}

func (a *AMQP) UpdateJob(ctx context.Context, props map[string]any) error {
	return a.publish(func() error { return a.pub.PublishJob(ctx, a.jobID, props) })
}

func (a *AMQP) UpdateTask(ctx context.Context, taskID string, props map[string]any) error {
	payload := TaskPayload(taskID, props)
	return a.publish(func() error { return a.pub.PublishTask(ctx, a.jobID, payload) })
}

func (a *AMQP) TaskComplete(ctx context.Context, taskID string) error {
	return a.UpdateTask(ctx, taskID, completeProps())
}

func (a *AMQP) publish(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := fn()
	telemetry.ObserveStatusUpdate("amqp", err)
	return err
}
