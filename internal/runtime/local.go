package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// LocalRuntime выполняет команды через sh на хосте, образ игнорируется.
// Используется для разработки и тестов, где docker недоступен.
type LocalRuntime struct {
	shell  string
	logger *zap.Logger
}

// NewLocalRuntime создаёт runtime с /bin/sh.
func NewLocalRuntime(logger *zap.Logger) *LocalRuntime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalRuntime{shell: "/bin/sh", logger: logger}
}

// Name возвращает "local".
func (l *LocalRuntime) Name() string {
	return "local"
}

// Run выполняет команды в spec.WorkDir с окружением хоста и spec.Env.
func (l *LocalRuntime) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, l.shell, "-c", spec.Script())
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), spec.EnvList()...)

	l.logger.Debug("local run", zap.String("dir", spec.WorkDir), zap.String("script", spec.Script()))

	start := time.Now()
	out, err := cmd.CombinedOutput()
	res := &Result{Output: string(out), Duration: time.Since(start)}

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("local run: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Image: Image(spec.Image), ExitCode: res.ExitCode, Output: res.Output}
		}
		return res, fmt.Errorf("local run failed: %w", err)
	}

	return res, nil
}

// New возвращает runtime по имени: "docker" (по умолчанию) или "local".
func New(name, dockerBin string, logger *zap.Logger) (Runtime, error) {
	switch name {
	case "", "docker":
		return NewDockerRuntime(dockerBin, logger), nil
	case "local":
		return NewLocalRuntime(logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuntime, name)
	}
}
