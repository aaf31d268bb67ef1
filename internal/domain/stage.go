package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition — попытка перевести стадию в недопустимый статус.
var ErrInvalidTransition = errors.New("invalid stage status transition")

// StageKind — тип стадии.
type StageKind string

const (
	StageClone        StageKind = "clone"
	StageInput        StageKind = "stage_input"
	StageRunContainer StageKind = "run_container"
	StageOutput       StageKind = "stage_output"
)

// Stage — единица работы в графе run.
//
// Создаётся Pipeline Builder'ом, меняется только Execution Engine.
// Все пути стадии заданы явно: Dir — рабочая директория стадии
// (workdir или директория ветки fan-out).
type Stage struct {
	// Index — позиция стадии в арене графа.
	Index int `json:"index"`

	// ID — читаемый идентификатор: "clone", "input.f1.txt", "container.f1.txt", "output".
	ID string `json:"id"`

	Kind StageKind `json:"kind"`

	// DependsOn — индексы стадий, от которых зависит эта.
	DependsOn []int `json:"depends_on,omitempty"`

	// Dir — локальная директория стадии.
	Dir string `json:"dir"`

	// Remote — удалённый путь (источник для StageInput, назначение для StageOutput).
	Remote string `json:"remote,omitempty"`

	// Input — локальный путь входных данных для контейнера (файл или директория).
	Input string `json:"input,omitempty"`

	// Output — локальный путь выходных данных контейнера.
	Output string `json:"output,omitempty"`

	// Filter — фильтр файлов для стадий загрузки и выгрузки.
	Filter Filter `json:"-"`

	Status     StageStatus `json:"status"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// NewStage создаёт стадию в статусе PENDING.
func NewStage(id string, kind StageKind, dir string) *Stage {
	return &Stage{
		ID:     id,
		Kind:   kind,
		Dir:    dir,
		Status: StageStatusPending,
	}
}

// Duration возвращает продолжительность выполнения.
func (s *Stage) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkRunning переводит стадию PENDING → RUNNING.
func (s *Stage) MarkRunning() error {
	if s.Status != StageStatusPending {
		return s.transitionError(StageStatusRunning)
	}
	now := time.Now()
	s.Status = StageStatusRunning
	s.StartedAt = &now
	return nil
}

// MarkSucceeded переводит стадию RUNNING → SUCCEEDED.
func (s *Stage) MarkSucceeded() error {
	if s.Status != StageStatusRunning {
		return s.transitionError(StageStatusSucceeded)
	}
	now := time.Now()
	s.Status = StageStatusSucceeded
	s.FinishedAt = &now
	return nil
}

// MarkFailed переводит стадию RUNNING → FAILED.
func (s *Stage) MarkFailed(msg string) error {
	if s.Status != StageStatusRunning {
		return s.transitionError(StageStatusFailed)
	}
	now := time.Now()
	s.Status = StageStatusFailed
	s.FinishedAt = &now
	s.Error = msg
	return nil
}

func (s *Stage) transitionError(to StageStatus) error {
	return fmt.Errorf("%w: stage %s %s -> %s", ErrInvalidTransition, s.ID, s.Status, to)
}
