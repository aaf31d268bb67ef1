package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrNilRun — Run вызван без run descriptor.
	ErrNilRun = errors.New("run is nil")

	// ErrReport — супервизор не принял обновление статуса.
	ErrReport = errors.New("status report failed")

	// ErrStalled — в графе остались стадии, которые нельзя запустить.
	ErrStalled = errors.New("run stalled: pending stages with unmet dependencies")
)
