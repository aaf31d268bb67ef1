package repo

import "errors"

// Ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRecord — запись не прошла проверку перед вставкой.
	ErrInvalidRecord = errors.New("invalid record")
)
