package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxDescriptionLength — сколько последних символов описания сохраняется.
	MaxDescriptionLength = 150

	// TruncationMarker добавляется после сохранённого хвоста.
	TruncationMarker = "..."
)

// TruncateDescription обрезает описание до последних MaxDescriptionLength
// символов и добавляет TruncationMarker. Короткие описания не меняются.
func TruncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxDescriptionLength {
		return s
	}
	return string(r[len(r)-MaxDescriptionLength:]) + TruncationMarker
}

// StatusEvent — переход статуса run, отправляемый супервизору.
//
// Engine не хранит события: они сразу передаются в Reporter в порядке создания.
type StatusEvent struct {
	ID          uuid.UUID   `json:"id"`
	RunID       string      `json:"run_id"`
	State       StatusState `json:"state"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"date"`
}

// NewStatusEvent создаёт событие с уже обрезанным описанием.
func NewStatusEvent(runID string, state StatusState, description string) StatusEvent {
	return StatusEvent{
		ID:          uuid.New(),
		RunID:       runID,
		State:       state,
		Description: TruncateDescription(description),
		Timestamp:   time.Now(),
	}
}
