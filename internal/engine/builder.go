package engine

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/store"
)

// Builder строит граф стадий из run descriptor.
//
// Локальное состояние не меняется: Builder только читает удалённое
// хранилище (Stat, List), чтобы узнать, сколько контейнеров нужно.
type Builder struct {
	store  store.Browser
	logger *zap.Logger
}

// NewBuilder создаёт Builder.
func NewBuilder(browser store.Browser, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{store: browser, logger: logger}
}

// Build валидирует run и строит граф:
//
//	clone? → stage_input* → run_container+ → stage_output?
//
// Для input kind=file — по паре stage_input/run_container на каждый
// подходящий файл, каждая пара в своей директории <workdir>/<dest>/<name>.
func (b *Builder) Build(ctx context.Context, run *domain.Run) (*Graph, error) {
	if err := ValidateRun(run); err != nil {
		return nil, err
	}

	g := NewGraph(run)

	var roots []int
	if run.HasClone() {
		clone := domain.NewStage("clone", domain.StageClone, run.Workdir)
		if run.Clone.Target != "" {
			clone.Dir = filepath.Join(run.Workdir, run.Clone.Target)
		}
		clone.Remote = run.Clone.Repo
		roots = append(roots, g.Add(clone))
	}

	var containers []int

	switch run.InputKind() {
	case domain.InputNone:
		c := domain.NewStage("container", domain.StageRunContainer, run.Workdir)
		containers = append(containers, g.Add(c, roots...))

	case domain.InputDirectory:
		dest := filepath.Join(run.Workdir, run.Input.DestDir())

		in := domain.NewStage("input", domain.StageInput, dest)
		in.Remote = run.Input.Path
		in.Filter = run.Input.Filter
		inIdx := g.Add(in, roots...)

		c := domain.NewStage("container", domain.StageRunContainer, run.Workdir)
		c.Input = dest
		containers = append(containers, g.Add(c, inIdx))

	case domain.InputFile:
		files, err := b.matchFiles(ctx, run.Input)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			name := path.Base(f.Path)
			branch := filepath.Join(run.Workdir, run.Input.DestDir(), name)

			in := domain.NewStage("input."+name, domain.StageInput, branch)
			in.Remote = f.Path
			inIdx := g.Add(in, roots...)

			c := domain.NewStage("container."+name, domain.StageRunContainer, branch)
			c.Input = filepath.Join(branch, name)
			c.Output = c.Input + ".output"
			containers = append(containers, g.Add(c, inIdx))
		}
	}

	if run.Output != nil {
		out := domain.NewStage("output", domain.StageOutput, run.Workdir)
		out.Output = filepath.Join(run.Workdir, run.Output.From)
		out.Remote = run.Output.To
		out.Filter = run.Output.Filter
		g.Add(out, containers...)
	}

	if err := g.Finalize(); err != nil {
		return nil, err
	}

	b.logger.Debug("graph built",
		zap.String("run_id", run.ID),
		zap.Int("stages", g.Size()),
		zap.Int("containers", len(containers)),
	)

	return g, nil
}

// matchFiles возвращает удалённые файлы для input kind=file.
//
// Если путь — директория, её файлы фильтруются по include/exclude.
// Если путь — файл, листится родительская директория, а сам файл
// добавляется к включениям.
func (b *Builder) matchFiles(ctx context.Context, in *domain.InputSpec) ([]store.Entry, error) {
	entry, err := b.store.Stat(ctx, in.Path)
	if err != nil {
		return nil, fmt.Errorf("stat input %s: %w", in.Path, err)
	}

	dir := entry.Path
	filter := in.Filter
	if !entry.IsDir() {
		dir = path.Dir(entry.Path)
		filter = filter.WithIncludeName(path.Base(entry.Path))
	}

	var matched []store.Entry
	for e, err := range b.store.List(ctx, dir) {
		if err != nil {
			return nil, fmt.Errorf("list input %s: %w", dir, err)
		}
		if e.IsDir() || !filter.Match(e.Path) {
			continue
		}
		matched = append(matched, e)
	}

	if len(matched) == 0 {
		return nil, noMatchError(in.Path, filter)
	}

	return matched, nil
}

func noMatchError(p string, f domain.Filter) error {
	msg := p
	if includes := f.Includes(); len(includes) > 0 {
		msg += " (include: " + strings.Join(includes, ", ") + ")"
	}
	if excludes := append(append([]string{}, f.ExcludeNames...), f.ExcludePatterns...); len(excludes) > 0 {
		msg += " (exclude: " + strings.Join(excludes, ", ") + ")"
	}
	return fmt.Errorf("%w: %s", ErrNoMatchingInput, msg)
}
