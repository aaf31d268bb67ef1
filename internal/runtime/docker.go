package runtime

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DockerRuntime запускает контейнеры через docker CLI:
//
//	docker run --rm -v <host>:<container> -w <dir> -e K=V <image> sh -c "<cmd1> && <cmd2>"
type DockerRuntime struct {
	bin    string
	logger *zap.Logger

	// command позволяет подменить запуск процесса в тестах.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewDockerRuntime создаёт runtime. Пустой bin — "docker".
func NewDockerRuntime(bin string, logger *zap.Logger) *DockerRuntime {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = "docker"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DockerRuntime{bin: bin, logger: logger, command: exec.CommandContext}
}

// Name возвращает "docker".
func (d *DockerRuntime) Name() string {
	return "docker"
}

// Image убирает схему "docker://" из ссылки на образ.
func Image(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "docker://")
}

// Args возвращает аргументы docker CLI для spec.
func (d *DockerRuntime) Args(spec Spec) []string {
	args := []string{"run", "--rm"}

	for _, v := range spec.Volumes {
		target := v.Container
		if target == "" {
			target = v.Host
		}
		args = append(args, "-v", v.Host+":"+target)
	}

	if spec.WorkDir != "" {
		args = append(args, "-w", spec.WorkDir)
	}

	for _, kv := range spec.EnvList() {
		args = append(args, "-e", kv)
	}

	return append(args, Image(spec.Image), "sh", "-c", spec.Script())
}

// Run запускает контейнер и возвращает объединённый stdout/stderr.
// Ненулевой код выхода — *ExitError.
func (d *DockerRuntime) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	args := d.Args(spec)
	d.logger.Debug("docker run", zap.String("image", Image(spec.Image)), zap.Strings("args", args))

	start := time.Now()
	out, err := d.command(ctx, d.bin, args...).CombinedOutput()
	res := &Result{Output: string(out), Duration: time.Since(start)}

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("docker run %s: %w", Image(spec.Image), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Image: Image(spec.Image), ExitCode: res.ExitCode, Output: res.Output}
		}
		return res, fmt.Errorf("docker run failed: %w", err)
	}

	return res, nil
}
