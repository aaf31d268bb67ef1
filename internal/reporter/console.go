package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// Console печатает обновления в writer и в лог. Сеть не используется.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

// NewConsole создаёт Console. Пустой w — stdout.
func NewConsole(w io.Writer, logger *zap.Logger) *Console {
	if w == nil {
		w = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{w: w, logger: logger}
}

func (c *Console) UpdateStatus(_ context.Context, state domain.StatusState, description string) error {
	if !state.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, state)
	}
	description = domain.TruncateDescription(description)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("status update", zap.Stringer("state", state), zap.String("description", description))
	_, err := fmt.Fprintf(c.w, "Status (%s): %s\n", state, description)
	telemetry.ObserveStatusUpdate("console", err)
	return err
}

func (c *Console) UpdateJob(_ context.Context, props map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("job update", zap.Any("props", props))
	_, err := fmt.Fprintf(c.w, "Job updated with: %v\n", props)
	telemetry.ObserveStatusUpdate("console", err)
	return err
}

func (c *Console) UpdateTask(_ context.Context, taskID string, props map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("task update", zap.String("task_id", taskID), zap.Any("props", props))
	_, err := fmt.Fprintf(c.w, "Task %s updated with: %v\n", taskID, props)
	telemetry.ObserveStatusUpdate("console", err)
	return err
}

func (c *Console) TaskComplete(_ context.Context, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("task complete", zap.String("task_id", taskID))
	_, err := fmt.Fprintf(c.w, "Task %s complete\n", taskID)
	telemetry.ObserveStatusUpdate("console", err)
	return err
}
