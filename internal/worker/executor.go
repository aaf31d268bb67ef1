package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Plantit/internal/domain"
)

// Executor — интерфейс для выполнения стадии конкретного типа.
//
// Реализации: CloneExecutor, InputExecutor, ContainerExecutor, OutputExecutor.
//
// Executor не меняет статус стадии: переходы делает оркестратор.
// ctx может содержать логгер стадии (telemetry.WithLogger).
type Executor interface {
	Execute(ctx context.Context, run *domain.Run, stage *domain.Stage) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения стадии.
type ExecutionResult struct {
	// Files — локальные (stage_input) или удалённые (stage_output) пути.
	Files []string

	// Output — объединённый вывод контейнера или git.
	Output string

	// Warning — не фатальное замечание, уходит в статус WARN.
	Warning string
}

// Registry — реестр executor'ов по типу стадии.
type Registry struct {
	executors map[domain.StageKind]Executor
}

// NewRegistry создаёт реестр со всеми executor'ами стадий.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{executors: make(map[domain.StageKind]Executor)}
	r.Register(domain.StageClone, NewCloneExecutor(deps.Clone))
	r.Register(domain.StageInput, &InputExecutor{Store: deps.Store})
	r.Register(domain.StageRunContainer, &ContainerExecutor{Runtime: deps.Runtime})
	r.Register(domain.StageOutput, &OutputExecutor{Store: deps.Store})
	return r
}

// Register добавляет executor для типа стадии.
func (r *Registry) Register(kind domain.StageKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для типа стадии.
func (r *Registry) Get(kind domain.StageKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStageKind, kind)
	}
	return executor, nil
}
