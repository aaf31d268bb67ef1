package reporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Plantit/internal/domain"
)

// ErrInvalidState — код статуса не из OK, WARN, FAILED.
var ErrInvalidState = errors.New("invalid status state")

// DateLayout — ISO-8601 со смещением часового пояса, как ждёт супервизор.
const DateLayout = "2006-01-02T15:04:05-0700"

// Reporter отправляет супервизору статус run и свойства задачи.
//
// Реализации сериализуют вызовы: порядок доставки совпадает с порядком вызовов.
type Reporter interface {
	UpdateStatus(ctx context.Context, state domain.StatusState, description string) error
	UpdateJob(ctx context.Context, props map[string]any) error
	UpdateTask(ctx context.Context, taskID string, props map[string]any) error

	// TaskComplete — UpdateTask(taskID, {"complete": true}).
	TaskComplete(ctx context.Context, taskID string) error
}

// StatusEntry — элемент status_set.
type StatusEntry struct {
	State       domain.StatusState `json:"state"`
	Date        string             `json:"date"`
	Description string             `json:"description"`
}

// StatusPayload собирает тело обновления статуса. Описание обрезается здесь.
func StatusPayload(state domain.StatusState, description string, now time.Time) (map[string]any, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, state)
	}
	return map[string]any{
		"status_set": []StatusEntry{{
			State:       state,
			Date:        now.Format(DateLayout),
			Description: domain.TruncateDescription(description),
		}},
	}, nil
}

// TaskPayload собирает тело обновления task: {"task_set": [{"pk": id, ...props}]}.
func TaskPayload(taskID string, props map[string]any) map[string]any {
	task := make(map[string]any, len(props)+1)
	for k, v := range props {
		task[k] = v
	}
	task["pk"] = taskID
	return map[string]any{"task_set": []map[string]any{task}}
}

func completeProps() map[string]any {
	return map[string]any{"complete": true}
}
