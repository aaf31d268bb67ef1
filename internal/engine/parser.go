package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Plantit/internal/domain"
)

// LoadRun читает и валидирует run descriptor из YAML-файла.
func LoadRun(path string) (*domain.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run descriptor: %w", err)
	}
	return ParseRun(data)
}

// ParseRun разбирает YAML (или JSON) и валидирует результат.
// Неизвестные поля — ошибка. Пустой ID заменяется на сгенерированный UUID.
func ParseRun(data []byte) (*domain.Run, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var run domain.Run
	if err := dec.Decode(&run); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewValidationError("", "", "run descriptor is empty", ErrEmptyRunID)
		}
		return nil, fmt.Errorf("parse run descriptor: %w", err)
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	if err := ValidateRun(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ValidateRun выполняет полную валидацию run descriptor.
//
// Проверяет:
// - Наличие ID, образа и команд
// - Абсолютный workdir
// - Корректность входных и выходных данных
// - Синтаксис glob-шаблонов
func ValidateRun(run *domain.Run) error {
	if run == nil || run.ID == "" {
		return NewValidationError("", "id", "run has empty ID", ErrEmptyRunID)
	}

	if run.Workdir == "" || !filepath.IsAbs(run.Workdir) {
		return NewValidationError("", "workdir",
			fmt.Sprintf("workdir %q is not absolute", run.Workdir), ErrInvalidWorkdir)
	}

	if strings.TrimSpace(run.Image) == "" {
		return NewValidationError("", "image", "container image is empty", ErrEmptyImage)
	}

	if len(run.Commands) == 0 {
		return NewValidationError("", "commands", "run has no commands", ErrEmptyCommands)
	}
	for i, c := range run.Commands {
		if strings.TrimSpace(c) == "" {
			return NewValidationError("", "commands",
				fmt.Sprintf("command %d is empty", i), ErrEmptyCommands)
		}
	}

	if run.Clone != nil && run.Clone.Target != "" {
		if err := validateRelative("clone.target", run.Clone.Target); err != nil {
			return err
		}
	}

	if err := validateInput(run.Input); err != nil {
		return err
	}

	return validateOutput(run.Output)
}

func validateInput(in *domain.InputSpec) error {
	if in == nil {
		return nil
	}

	if !in.Kind.IsValid() {
		return NewValidationError("", "input.kind",
			fmt.Sprintf("unknown input kind: %s", in.Kind), ErrUnknownInputKind)
	}

	if in.EffectiveKind() == domain.InputNone {
		return nil
	}

	if in.Path == "" {
		return NewValidationError("", "input.path",
			fmt.Sprintf("input kind %s requires a path", in.Kind), ErrMissingInputPath)
	}

	if in.Dest != "" {
		if err := validateRelative("input.dest", in.Dest); err != nil {
			return err
		}
	}

	if err := in.Filter.Validate(); err != nil {
		return NewValidationError("", "input", err.Error(), ErrInvalidPattern)
	}

	return nil
}

func validateOutput(out *domain.OutputSpec) error {
	if out == nil {
		return nil
	}

	if out.From == "" || out.To == "" {
		return NewValidationError("", "output", "output from and to are required", ErrMissingOutputPath)
	}

	if err := validateRelative("output.from", out.From); err != nil {
		return err
	}

	if err := out.Filter.Validate(); err != nil {
		return NewValidationError("", "output", err.Error(), ErrInvalidPattern)
	}

	return nil
}

// validateRelative проверяет, что путь относительный и не выходит за workdir.
func validateRelative(field, p string) error {
	clean := filepath.Clean(p)
	if filepath.IsAbs(p) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return NewValidationError("", field,
			fmt.Sprintf("%q must stay inside workdir", p), ErrInvalidPath)
	}
	return nil
}
