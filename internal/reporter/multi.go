package reporter

import (
	"context"
	"sync"

	"github.com/shaiso/Plantit/internal/domain"
)

// Multi рассылает обновления нескольким репортерам по порядку
// и останавливается на первой ошибке.
type Multi struct {
	mu        sync.Mutex
	reporters []Reporter
}

// NewMulti создаёт Multi.
func NewMulti(reporters ...Reporter) *Multi {
	return &Multi{reporters: reporters}
}

func (m *Multi) UpdateStatus(ctx context.Context, state domain.StatusState, description string) error {
	return m.each(func(r Reporter) error { return r.UpdateStatus(ctx, state, description) })
}

func (m *Multi) UpdateJob(ctx context.Context, props map[string]any) error {
	return m.each(func(r Reporter) error { return r.UpdateJob(ctx, props) })
}

func (m *Multi) UpdateTask(ctx context.Context, taskID string, props map[string]any) error {
	return m.each(func(r Reporter) error { return r.UpdateTask(ctx, taskID, props) })
}

func (m *Multi) TaskComplete(ctx context.Context, taskID string) error {
	return m.each(func(r Reporter) error { return r.TaskComplete(ctx, taskID) })
}

func (m *Multi) each(fn func(Reporter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reporters {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
