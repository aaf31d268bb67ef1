package domain

// StageStatus — статус выполнения стадии.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//
// Финальные статусы больше не меняются.
type StageStatus string

const (
	// StageStatusPending — стадия создана, зависимости ещё не выполнены.
	StageStatusPending StageStatus = "PENDING"

	// StageStatusRunning — стадия выполняется.
	StageStatusRunning StageStatus = "RUNNING"

	// StageStatusSucceeded — стадия успешно завершена.
	StageStatusSucceeded StageStatus = "SUCCEEDED"

	// StageStatusFailed — стадия завершилась с ошибкой.
	StageStatusFailed StageStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageStatusSucceeded, StageStatusFailed:
		return true
	default:
		return false
	}
}

// RunStatus — итоговый статус выполнения графа.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// StatusState — код статуса, который понимает супервизор.
type StatusState int

const (
	StateFailed StatusState = 2
	StateOK     StatusState = 3
	StateWarn   StatusState = 4
)

// String возвращает имя статуса.
func (s StatusState) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateWarn:
		return "WARN"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsValid проверяет, что код статуса известен.
func (s StatusState) IsValid() bool {
	return s == StateOK || s == StateWarn || s == StateFailed
}
