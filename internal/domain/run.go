package domain

// DefaultInputDest — поддиректория workdir, куда загружаются входные данные.
const DefaultInputDest = "input"

// Run — описание одного запуска (run descriptor).
//
// Run неизменяем после построения: Pipeline Builder только читает его
// и строит по нему граф стадий. Загружается из YAML (см. engine.ParseRun).
type Run struct {
	// ID — уникальный идентификатор run.
	ID string `yaml:"id" json:"id"`

	// Workdir — абсолютный локальный путь, создаётся при отсутствии.
	Workdir string `yaml:"workdir" json:"workdir"`

	// Clone — откуда клонировать исходный код. Nil — клонирование пропускается.
	Clone *CloneSpec `yaml:"clone,omitempty" json:"clone,omitempty"`

	// Image — ссылка на образ контейнера.
	Image string `yaml:"image" json:"image"`

	// Commands — команды, выполняемые внутри контейнера по порядку.
	// Каждая команда рендерится как Go template (см. engine.RenderCommands).
	Commands []string `yaml:"commands" json:"commands"`

	// Params — параметры, доступные в шаблонах команд и как env контейнера.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`

	// Input — входные данные. Nil равнозначно Kind = none.
	Input *InputSpec `yaml:"input,omitempty" json:"input,omitempty"`

	// Output — выходные данные. Nil — выгрузка не выполняется.
	Output *OutputSpec `yaml:"output,omitempty" json:"output,omitempty"`

	// Token — токен доступа к удалённому хранилищу.
	Token string `yaml:"token,omitempty" json:"-"`
}

// CloneSpec — источник кода для стадии Clone.
type CloneSpec struct {
	// Repo — URL репозитория. Пустой URL означает "не клонировать".
	Repo string `yaml:"repo" json:"repo"`

	// Branch — ветка или тег (опционально).
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`

	// Target — поддиректория workdir. Пустая — сам workdir.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
}

// InputKind — способ подачи входных данных.
type InputKind string

const (
	// InputNone — входных данных нет.
	InputNone InputKind = "none"

	// InputFile — по одному контейнеру на каждый подходящий файл.
	InputFile InputKind = "file"

	// InputDirectory — одна директория целиком, один контейнер.
	InputDirectory InputKind = "directory"
)

// IsValid проверяет, что kind известен.
func (k InputKind) IsValid() bool {
	switch k {
	case "", InputNone, InputFile, InputDirectory:
		return true
	default:
		return false
	}
}

// InputSpec — описание входных данных run.
type InputSpec struct {
	Kind InputKind `yaml:"kind" json:"kind"`

	// Path — удалённый путь. Обязателен, если Kind != none.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Dest — локальная поддиректория внутри workdir ("input" по умолчанию).
	Dest string `yaml:"dest,omitempty" json:"dest,omitempty"`

	Filter `yaml:",inline"`
}

// EffectiveKind возвращает kind с учётом nil и пустого значения.
func (s *InputSpec) EffectiveKind() InputKind {
	if s == nil || s.Kind == "" {
		return InputNone
	}
	return s.Kind
}

// DestDir возвращает имя локальной поддиректории для входных данных.
func (s *InputSpec) DestDir() string {
	if s == nil || s.Dest == "" {
		return DefaultInputDest
	}
	return s.Dest
}

// OutputSpec — описание выходных данных run.
type OutputSpec struct {
	// From — файл или директория относительно workdir, созданные контейнером.
	From string `yaml:"from" json:"from"`

	// To — удалённый путь назначения.
	To string `yaml:"to" json:"to"`

	Filter `yaml:",inline"`
}

// InputKind возвращает kind входных данных run.
func (r *Run) InputKind() InputKind {
	return r.Input.EffectiveKind()
}

// HasClone возвращает true, если run требует клонирования.
func (r *Run) HasClone() bool {
	return r.Clone != nil && r.Clone.Repo != ""
}
