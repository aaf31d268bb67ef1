package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// Значения по умолчанию для git clone.
const (
	DefaultCloneDepth   = 1
	DefaultCloneTimeout = 5 * time.Minute
)

// CloneConfig — настройки git clone.
type CloneConfig struct {
	// GitBin — путь к git (default: "git").
	GitBin string

	// Depth — глубина shallow clone, 0 — полная история.
	Depth int

	Timeout time.Duration
}

// CloneExecutor клонирует репозиторий run в директорию стадии.
type CloneExecutor struct {
	cfg CloneConfig

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewCloneExecutor создаёт executor с заполненными значениями по умолчанию.
func NewCloneExecutor(cfg CloneConfig) *CloneExecutor {
	if cfg.GitBin == "" {
		cfg.GitBin = "git"
	}
	if cfg.Depth < 0 {
		cfg.Depth = DefaultCloneDepth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCloneTimeout
	}
	return &CloneExecutor{cfg: cfg, command: exec.CommandContext}
}

// Args возвращает аргументы git clone.
func (e *CloneExecutor) Args(repo, branch, dir string) []string {
	args := []string{"clone"}
	if e.cfg.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(e.cfg.Depth))
	}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	return append(args, repo, dir)
}

// Execute выполняет git clone stage.Remote в stage.Dir.
func (e *CloneExecutor) Execute(ctx context.Context, run *domain.Run, stage *domain.Stage) (*ExecutionResult, error) {
	branch := ""
	if run.Clone != nil {
		branch = run.Clone.Branch
	}

	log := telemetry.FromContext(ctx).With(
		zap.String("repository_url", sanitizeURL(stage.Remote)),
		zap.Int("clone_depth", e.cfg.Depth),
		zap.Duration("timeout", e.cfg.Timeout),
	)

	if err := os.MkdirAll(filepath.Dir(stage.Dir), 0o755); err != nil {
		return nil, fmt.Errorf("create clone parent directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	log.Info("cloning repository", zap.String("dir", stage.Dir))
	start := time.Now()

	out, err := e.command(cloneCtx, e.cfg.GitBin, e.Args(stage.Remote, branch, stage.Dir)...).CombinedOutput()
	if err != nil {
		if errors.Is(cloneCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %v", ErrCloneTimeout, e.cfg.Timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("git clone failed", zap.Error(err), zap.ByteString("output", out))
		return nil, fmt.Errorf("%w: %s: %s", ErrCloneFailed, sanitizeURL(stage.Remote), lastLine(out))
	}

	log.Info("repository cloned", zap.Duration("duration", time.Since(start)))
	return &ExecutionResult{Output: string(out)}, nil
}

// sanitizeURL убирает учётные данные из URL для логов.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
