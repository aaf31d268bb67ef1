package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Ошибки runtime.
var (
	// ErrEmptyImage — не задан образ.
	ErrEmptyImage = errors.New("container image is required")

	// ErrNoCommands — нечего выполнять.
	ErrNoCommands = errors.New("container commands are required")

	// ErrUnknownRuntime — неизвестное имя runtime.
	ErrUnknownRuntime = errors.New("unknown container runtime")
)

// Volume — bind mount host → container.
type Volume struct {
	Host      string
	Container string
}

// Spec — параметры одного запуска контейнера.
type Spec struct {
	Image    string
	Commands []string

	// WorkDir — рабочая директория внутри контейнера.
	WorkDir string

	Env     map[string]string
	Volumes []Volume
}

// Validate проверяет обязательные поля.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Image) == "" {
		return ErrEmptyImage
	}
	if len(s.Commands) == 0 {
		return ErrNoCommands
	}
	return nil
}

// Script склеивает команды через "&&": следующая выполняется только после успеха предыдущей.
func (s Spec) Script() string {
	return strings.Join(s.Commands, " && ")
}

// EnvList возвращает переменные окружения как KEY=VALUE, отсортированные по ключу.
func (s Spec) EnvList() []string {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+s.Env[k])
	}
	return out
}

// Result — результат запуска.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// ExitError — контейнер завершился с ненулевым кодом.
type ExitError struct {
	Image    string
	ExitCode int
	Output   string
}

// maxOutputInError — сколько последних символов вывода попадает в текст ошибки.
const maxOutputInError = 2000

// Error реализует интерфейс error.
func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > maxOutputInError {
		out = out[len(out)-maxOutputInError:]
	}
	msg := fmt.Sprintf("container %s exited with code %d", e.Image, e.ExitCode)
	if out != "" {
		msg += ": " + out
	}
	return msg
}

// Runtime запускает контейнер и ждёт его завершения.
type Runtime interface {
	Name() string
	Run(ctx context.Context, spec Spec) (*Result, error)
}
