package worker

import "errors"

// Ошибки выполнения стадий.
var (
	// ErrUnknownStageKind — нет executor'а для данного типа стадии.
	ErrUnknownStageKind = errors.New("unknown stage kind")

	// ErrCloneTimeout — git clone не уложился в таймаут.
	ErrCloneTimeout = errors.New("git clone timed out")

	// ErrCloneFailed — git clone завершился ошибкой.
	ErrCloneFailed = errors.New("git clone failed")

	// ErrOutputMissing — локальный путь выгрузки не существует.
	ErrOutputMissing = errors.New("output path does not exist")

	// ErrNotConfigured — executor'у не передана зависимость (store, runtime).
	ErrNotConfigured = errors.New("executor is not configured")
)
