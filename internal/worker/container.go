package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/engine"
	"github.com/shaiso/Plantit/internal/runtime"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// ContainerExecutor запускает команды run в контейнере.
//
// Рабочая директория контейнера — stage.Dir, workdir run монтируется
// по тому же пути, поэтому пути стадии совпадают внутри и снаружи.
type ContainerExecutor struct {
	Runtime runtime.Runtime
}

// Spec рендерит команды и собирает параметры запуска.
func (e *ContainerExecutor) Spec(run *domain.Run, stage *domain.Stage) (runtime.Spec, error) {
	cc := &engine.CommandContext{
		RunID:   run.ID,
		Workdir: run.Workdir,
		Input:   stage.Input,
		Output:  stage.Output,
		Params:  run.Params,
	}

	commands, err := engine.RenderCommands(run.Commands, cc)
	if err != nil {
		return runtime.Spec{}, err
	}

	return runtime.Spec{
		Image:    run.Image,
		Commands: commands,
		WorkDir:  stage.Dir,
		Env:      cc.Env(),
		Volumes:  []runtime.Volume{{Host: run.Workdir, Container: run.Workdir}},
	}, nil
}

// Execute запускает контейнер и ждёт завершения.
func (e *ContainerExecutor) Execute(ctx context.Context, run *domain.Run, stage *domain.Stage) (*ExecutionResult, error) {
	if e.Runtime == nil {
		return nil, fmt.Errorf("%w: runtime for %s", ErrNotConfigured, stage.ID)
	}

	spec, err := e.Spec(run, stage)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(stage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create container directory: %w", err)
	}

	log := telemetry.FromContext(ctx)
	log.Info("container started",
		zap.String("image", runtime.Image(spec.Image)),
		zap.String("runtime", e.Runtime.Name()),
	)

	res, err := e.Runtime.Run(ctx, spec)
	if err != nil {
		var exitErr *runtime.ExitError
		if errors.As(err, &exitErr) {
			log.Warn("container exited with error",
				zap.Int("exit_code", exitErr.ExitCode),
				zap.String("output", exitErr.Output),
			)
		}
		return nil, err
	}

	log.Info("container finished", zap.Duration("duration", res.Duration))
	return &ExecutionResult{Output: res.Output}, nil
}

// lastLine возвращает последнюю непустую строку вывода.
func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	return strings.TrimSpace(string(lines[len(lines)-1]))
}
