package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound — путь не существует в хранилище.
	ErrNotFound = errors.New("remote path not found")

	// ErrLocalExists — локальный файл уже существует и не подходит под force.
	ErrLocalExists = errors.New("local file already exists")

	// ErrLocalMissing — локальный путь для выгрузки не существует.
	ErrLocalMissing = errors.New("local path does not exist")

	// ErrUnsupported — операция не поддерживается backend'ом.
	ErrUnsupported = errors.New("operation not supported by store backend")

	// ErrInvalidPermission — неизвестное право доступа для Share.
	ErrInvalidPermission = errors.New("invalid permission")
)

// APIError — ответ хранилища с кодом не 2xx.
type APIError struct {
	Op         string
	StatusCode int
	Code       string // код ошибки из тела ответа (например ERR_DOES_NOT_EXIST)
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is позволяет errors.Is(err, ErrNotFound) для 404 и ERR_DOES_NOT_EXIST.
func (e *APIError) Is(target error) bool {
	if target == ErrNotFound {
		return e.StatusCode == http.StatusNotFound || e.Code == "ERR_DOES_NOT_EXIST"
	}
	return false
}

// Temporary возвращает true для ответов, которые имеет смысл повторить.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
