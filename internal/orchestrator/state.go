package orchestrator

import (
	"sync"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// Статусы стадий меняются только через RunState, поэтому Stats
// можно читать из других горутин (healthz, логи).
type RunState struct {
	Graph *engine.Graph

	// failed — первая упавшая стадия; после неё новые стадии не запускаются.
	failed *domain.Stage
	err    error

	running int

	// containersAnnounced — сообщение "Running '<image>' container(s)." уже отправлено.
	containersAnnounced bool

	mu sync.RWMutex
}

// NewRunState создаёт RunState для построенного графа.
func NewRunState(g *engine.Graph) *RunState {
	return &RunState{Graph: g}
}

// Ready возвращает стадии, которые можно запускать. После ошибки — пусто.
func (s *RunState) Ready() []*domain.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failed != nil || s.err != nil {
		return nil
	}
	return s.Graph.Ready()
}

// MarkRunning переводит стадию в RUNNING.
func (s *RunState) MarkRunning(stage *domain.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := stage.MarkRunning(); err != nil {
		return err
	}
	s.running++
	return nil
}

// MarkSucceeded завершает стадию успешно. discarded=true — run уже упал
// и результат стадии не используется.
func (s *RunState) MarkSucceeded(stage *domain.Stage) (discarded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	return s.failed != nil || s.err != nil, stage.MarkSucceeded()
}

// MarkFailed завершает стадию с ошибкой. first=true — это первая ошибка run.
func (s *RunState) MarkFailed(stage *domain.Stage, cause error) (first bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	err = stage.MarkFailed(cause.Error())
	if s.failed != nil || s.err != nil {
		return false, err
	}
	s.failed = stage
	s.err = cause
	return true, err
}

// Abort останавливает запуск новых стадий без привязки к стадии
// (отмена контекста, ошибка репортера). Возвращает true для первой ошибки.
func (s *RunState) Abort(cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed != nil || s.err != nil {
		return false
	}
	s.err = cause
	return true
}

// AnnounceContainers возвращает true ровно один раз.
func (s *RunState) AnnounceContainers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.containersAnnounced {
		return false
	}
	s.containersAnnounced = true
	return true
}

// Running — число выполняющихся стадий.
func (s *RunState) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Failure возвращает первую ошибку и упавшую стадию (может быть nil).
func (s *RunState) Failure() (*domain.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed, s.err
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := s.Graph.Counts()
	return RunStats{
		TotalStages:     s.Graph.Size(),
		SucceededStages: counts[domain.StageStatusSucceeded],
		RunningStages:   counts[domain.StageStatusRunning],
		FailedStages:    counts[domain.StageStatusFailed],
		PendingStages:   counts[domain.StageStatusPending],
	}
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalStages     int
	SucceededStages int
	RunningStages   int
	FailedStages    int
	PendingStages   int
}
