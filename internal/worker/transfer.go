package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/store"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// InputExecutor загружает входные данные в директорию стадии.
//
// Для fan-out по файлам stage.Remote — один файл, фильтр пустой;
// для directory input — директория и фильтр из descriptor.
type InputExecutor struct {
	Store store.Transferer
}

// Execute выполняет загрузку stage.Remote → stage.Dir.
func (e *InputExecutor) Execute(ctx context.Context, _ *domain.Run, stage *domain.Stage) (*ExecutionResult, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("%w: store for %s", ErrNotConfigured, stage.ID)
	}

	if err := os.MkdirAll(stage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create input directory: %w", err)
	}

	files, err := e.Store.Download(ctx, store.DownloadRequest{
		RemotePath: stage.Remote,
		LocalPath:  stage.Dir,
		Filter:     stage.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", stage.Remote, err)
	}

	telemetry.FromContext(ctx).Info("input downloaded",
		zap.String("remote", stage.Remote),
		zap.Int("files", len(files)),
	)

	return &ExecutionResult{Files: files}, nil
}

// OutputExecutor выгружает результаты run в удалённую директорию.
type OutputExecutor struct {
	Store store.Transferer
}

// Execute выгружает stage.Output → stage.Remote.
//
// Отсутствующий локальный путь — ошибка стадии. Если под фильтр
// ничего не подошло, стадия успешна, но возвращает Warning.
func (e *OutputExecutor) Execute(ctx context.Context, _ *domain.Run, stage *domain.Stage) (*ExecutionResult, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("%w: store for %s", ErrNotConfigured, stage.ID)
	}

	if _, err := os.Stat(stage.Output); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrOutputMissing, stage.Output)
		}
		return nil, fmt.Errorf("stat output: %w", err)
	}

	if err := e.Store.Create(ctx, stage.Remote); err != nil {
		return nil, fmt.Errorf("create %s: %w", stage.Remote, err)
	}

	uploaded, err := e.Store.Upload(ctx, store.UploadRequest{
		LocalPath:  stage.Output,
		RemotePath: stage.Remote,
		Filter:     stage.Filter,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", stage.Output, err)
	}

	log := telemetry.FromContext(ctx)
	if len(uploaded) == 0 {
		log.Warn("no output files matched", zap.String("local", stage.Output))
		return &ExecutionResult{
			Warning: fmt.Sprintf("No output files matched in '%s'.", stage.Output),
		}, nil
	}

	log.Info("output uploaded",
		zap.String("remote", stage.Remote),
		zap.Int("files", len(uploaded)),
	)

	return &ExecutionResult{Files: uploaded}, nil
}
