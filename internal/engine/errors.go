package engine

import "errors"

// Ошибки валидации run descriptor.
var (
	// ErrEmptyRunID — run не имеет ID.
	ErrEmptyRunID = errors.New("run has empty ID")

	// ErrInvalidWorkdir — workdir пустой или не абсолютный.
	ErrInvalidWorkdir = errors.New("workdir must be an absolute path")

	// ErrEmptyImage — не задан образ контейнера.
	ErrEmptyImage = errors.New("container image is empty")

	// ErrEmptyCommands — нет команд для контейнера.
	ErrEmptyCommands = errors.New("run has no commands")

	// ErrUnknownInputKind — неизвестный тип входных данных.
	ErrUnknownInputKind = errors.New("unknown input kind")

	// ErrMissingInputPath — kind != none, но путь не задан.
	ErrMissingInputPath = errors.New("input path is required")

	// ErrMissingOutputPath — не задан from или to для выходных данных.
	ErrMissingOutputPath = errors.New("output from and to are required")

	// ErrInvalidPath — локальный путь выходит за пределы workdir.
	ErrInvalidPath = errors.New("path must be relative to workdir")

	// ErrInvalidPattern — некорректный glob-шаблон.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// Ошибки построения графа.
var (
	// ErrNoMatchingInput — под шаблоны не подошёл ни один удалённый файл.
	ErrNoMatchingInput = errors.New("no input files match")

	// ErrMissingDependency — стадия зависит от несуществующей стадии.
	ErrMissingDependency = errors.New("stage depends on unknown stage")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — стадия зависит от самой себя.
	ErrSelfDependency = errors.New("stage depends on itself")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StageID string // ID стадии (пусто для ошибок descriptor'а)
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case e.StageID != "":
		return "stage " + e.StageID + ": " + e.Message
	case e.Field != "":
		return e.Field + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stageID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StageID: stageID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
