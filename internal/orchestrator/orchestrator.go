package orchestrator

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/engine"
	"github.com/shaiso/Plantit/internal/reporter"
	"github.com/shaiso/Plantit/internal/telemetry"
	"github.com/shaiso/Plantit/internal/worker"
)

// ExecutorName — имя исполнителя в стартовом сообщении.
const ExecutorName = "in-process"

// finalReportTimeout — сколько ждать доставки итогового статуса после отмены run.
const finalReportTimeout = 30 * time.Second

// GraphBuilder строит граф стадий (engine.Builder).
type GraphBuilder interface {
	Build(ctx context.Context, run *domain.Run) (*engine.Graph, error)
}

// Orchestrator выполняет run в текущем процессе.
//
// Готовые стадии запускаются параллельно, не больше MaxParallel
// одновременно. Первая ошибка останавливает запуск новых стадий;
// уже запущенные дожидаются, их результаты отбрасываются.
type Orchestrator struct {
	builder     GraphBuilder
	registry    *worker.Registry
	reporter    reporter.Reporter
	maxParallel int64
	logger      *zap.Logger

	mu     sync.RWMutex
	active *RunState
}

// Config — конфигурация Orchestrator.
type Config struct {
	Builder  GraphBuilder
	Registry *worker.Registry
	Reporter reporter.Reporter

	// MaxParallel — лимит одновременно выполняемых стадий (default: NumCPU).
	MaxParallel int

	Logger *zap.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = goruntime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		builder:     cfg.Builder,
		registry:    cfg.Registry,
		reporter:    cfg.Reporter,
		maxParallel: int64(maxParallel),
		logger:      logger,
	}
}

// RunResult — итог выполнения run.
type RunResult struct {
	RunID  string
	Status domain.RunStatus

	// FailedStage — ID первой упавшей стадии; пусто для ошибок построения графа.
	FailedStage string

	Err error

	// ReportErr — ошибка доставки итогового статуса.
	ReportErr error

	Stats    RunStats
	Duration time.Duration
}

// Succeeded проверяет успешность run.
func (r *RunResult) Succeeded() bool {
	return r.Status == domain.RunStatusSucceeded
}

// Active возвращает состояние выполняемого run или nil.
func (o *Orchestrator) Active() *RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

func (o *Orchestrator) setActive(s *RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = s
}

// Run сообщает о старте, строит граф и выполняет его.
func (o *Orchestrator) Run(ctx context.Context, run *domain.Run) *RunResult {
	start := time.Now()
	if run == nil {
		return &RunResult{Status: domain.RunStatusFailed, Err: ErrNilRun}
	}

	log := telemetry.WithRunID(o.logger, run.ID)
	log.Info("starting run", zap.String("executor", ExecutorName), zap.String("image", run.Image))

	msg := fmt.Sprintf("Starting run '%s' with '%s' executor.", run.ID, ExecutorName)
	if err := o.report(ctx, domain.StateOK, msg); err != nil {
		return o.finish(ctx, run, nil, nil, err, start)
	}

	g, err := o.builder.Build(ctx, run)
	if err != nil {
		log.Error("failed to build run graph", zap.Error(err))
		return o.finish(ctx, run, nil, nil, err, start)
	}

	return o.Execute(ctx, g)
}

// stageOutcome — результат стадии из горутины исполнителя.
type stageOutcome struct {
	stage  *domain.Stage
	result *worker.ExecutionResult
	err    error
}

// Execute выполняет построенный граф.
//
// Сообщает "Running '<image>' container(s)." перед первым контейнером,
// WARN для предупреждений стадий и в конце TaskComplete или ровно один FAILED.
func (o *Orchestrator) Execute(ctx context.Context, g *engine.Graph) *RunResult {
	start := time.Now()
	run := g.Run
	log := telemetry.WithRunID(o.logger, run.ID)

	state := NewRunState(g)
	o.setActive(state)
	defer o.setActive(nil)

	sem := semaphore.NewWeighted(o.maxParallel)
	results := make(chan stageOutcome)

	log.Info("executing run graph",
		zap.Int("stages", g.Size()),
		zap.Int64("max_parallel", o.maxParallel),
	)

	for {
		o.dispatch(ctx, log, state, sem, results)

		if state.Running() == 0 {
			break
		}

		o.complete(ctx, log, state, <-results)
	}

	failedStage, cause := state.Failure()
	if cause == nil && !g.IsComplete() {
		cause = ErrStalled
	}

	return o.finish(ctx, run, state, failedStage, cause, start)
}

// dispatch запускает готовые стадии, пока есть свободные слоты.
func (o *Orchestrator) dispatch(ctx context.Context, log *zap.Logger, state *RunState, sem *semaphore.Weighted, results chan<- stageOutcome) {
	run := state.Graph.Run

	for _, stage := range state.Ready() {
		if err := ctx.Err(); err != nil {
			if state.Abort(err) {
				log.Warn("run cancelled", zap.Error(err))
			}
			return
		}

		if !sem.TryAcquire(1) {
			return
		}

		if stage.Kind == domain.StageRunContainer && state.AnnounceContainers() {
			msg := fmt.Sprintf("Running '%s' container(s).", run.Image)
			if err := o.report(ctx, domain.StateOK, msg); err != nil {
				sem.Release(1)
				state.Abort(err)
				return
			}
		}

		if err := state.MarkRunning(stage); err != nil {
			sem.Release(1)
			state.Abort(err)
			return
		}

		stageLog := telemetry.WithStage(log, stage)
		stageLog.Info("stage started")

		go o.runStage(telemetry.WithLogger(ctx, stageLog), run, stage, sem, results)
	}
}

// runStage выполняет стадию и отдаёт результат в results.
func (o *Orchestrator) runStage(ctx context.Context, run *domain.Run, stage *domain.Stage, sem *semaphore.Weighted, results chan<- stageOutcome) {
	out := stageOutcome{stage: stage}
	defer func() {
		sem.Release(1)
		results <- out
	}()

	executor, err := o.registry.Get(stage.Kind)
	if err != nil {
		out.err = err
		return
	}
	out.result, out.err = executor.Execute(ctx, run, stage)
}

// complete применяет результат стадии к состоянию run.
func (o *Orchestrator) complete(ctx context.Context, log *zap.Logger, state *RunState, out stageOutcome) {
	stage := out.stage
	stageLog := telemetry.WithStage(log, stage)

	if out.err != nil {
		first, err := state.MarkFailed(stage, out.err)
		if err != nil {
			stageLog.Error("invalid stage transition", zap.Error(err))
		}
		telemetry.ObserveStage(string(stage.Kind), string(domain.StageStatusFailed), stage.Duration())

		if first {
			stageLog.Error("stage failed", zap.Error(out.err), zap.Duration("duration", stage.Duration()))
		} else {
			stageLog.Warn("stage failed after run failure, result discarded", zap.Error(out.err))
		}
		return
	}

	discarded, err := state.MarkSucceeded(stage)
	if err != nil {
		stageLog.Error("invalid stage transition", zap.Error(err))
	}
	telemetry.ObserveStage(string(stage.Kind), string(domain.StageStatusSucceeded), stage.Duration())

	if discarded {
		stageLog.Info("stage finished after run failure, result discarded")
		return
	}
	stageLog.Info("stage succeeded", zap.Duration("duration", stage.Duration()))

	if out.result != nil && out.result.Warning != "" {
		if err := o.report(ctx, domain.StateWarn, out.result.Warning); err != nil {
			state.Abort(err)
		}
	}
}

// finish отправляет итоговый статус и собирает RunResult.
//
// Успех — TaskComplete(run.ID). Ошибка (в том числе ошибка TaskComplete) —
// ровно одна попытка отправить FAILED.
func (o *Orchestrator) finish(ctx context.Context, run *domain.Run, state *RunState, failedStage *domain.Stage, cause error, start time.Time) *RunResult {
	log := telemetry.WithRunID(o.logger, run.ID)
	res := &RunResult{RunID: run.ID, Status: domain.RunStatusSucceeded}
	if state != nil {
		res.Stats = state.Stats()
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalReportTimeout)
	defer cancel()

	if cause == nil {
		if err := o.reporter.TaskComplete(reportCtx, run.ID); err != nil {
			res.ReportErr = err
			cause = fmt.Errorf("%w: %w", ErrReport, err)
		}
	}

	if cause != nil {
		res.Status = domain.RunStatusFailed
		res.Err = cause
		if failedStage != nil {
			res.FailedStage = failedStage.ID
		}

		msg := fmt.Sprintf("Run '%s' failed: %s", run.ID, diagnostic(failedStage, cause))
		if err := o.reporter.UpdateStatus(reportCtx, domain.StateFailed, msg); err != nil {
			res.ReportErr = errors.Join(res.ReportErr, err)
			log.Error("failed to report run failure", zap.Error(err))
		}
	}

	res.Duration = time.Since(start)
	telemetry.ObserveRun(string(res.Status))

	if res.Succeeded() {
		log.Info("run succeeded", zap.Duration("duration", res.Duration), zap.Int("stages", res.Stats.TotalStages))
	} else {
		log.Error("run failed",
			zap.Error(res.Err),
			zap.String("failed_stage", res.FailedStage),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

// report отправляет статус супервизору.
func (o *Orchestrator) report(ctx context.Context, state domain.StatusState, description string) error {
	if err := o.reporter.UpdateStatus(ctx, state, description); err != nil {
		return fmt.Errorf("%w: %w", ErrReport, err)
	}
	return nil
}

func diagnostic(stage *domain.Stage, cause error) string {
	if stage == nil {
		return cause.Error()
	}
	return fmt.Sprintf("stage '%s': %v", stage.ID, cause)
}
