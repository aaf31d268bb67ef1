package store

import (
	"context"
	"iter"
	"time"

	"github.com/shaiso/Plantit/internal/domain"
)

// EntryKind — тип записи в удалённом хранилище.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "dir"
)

// Entry — файл или директория в удалённом хранилище.
type Entry struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Label    string    `json:"label"`
	Kind     EntryKind `json:"type"`
	Size     int64     `json:"file-size"`
	Modified time.Time `json:"modified"`
}

// IsDir возвращает true для директорий.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// DownloadRequest — параметры загрузки.
//
// RemotePath — файл или директория. LocalPath — локальная директория,
// куда кладутся файлы. Force — glob-шаблоны по базовому имени: существующий
// локальный файл перезаписывается только если его имя подходит под один из них.
type DownloadRequest struct {
	RemotePath string
	LocalPath  string
	Filter     domain.Filter
	Force      []string
}

// UploadRequest — параметры выгрузки.
//
// LocalPath — файл или директория, RemotePath — удалённая директория назначения.
type UploadRequest struct {
	LocalPath  string
	RemotePath string
	Filter     domain.Filter
}

// Browser — операции чтения каталога хранилища.
type Browser interface {
	// List лениво обходит содержимое директории постранично.
	// Итератор можно запускать повторно: каждый обход начинается с первой страницы.
	List(ctx context.Context, path string) iter.Seq2[Entry, error]

	Stat(ctx context.Context, path string) (Entry, error)

	// Exists проверяет наличие пути. kind может быть пустым (любой тип).
	Exists(ctx context.Context, path string, kind EntryKind) (bool, error)
}

// Transferer — операции передачи данных.
type Transferer interface {
	// Create создаёт директорию. Повторный вызов не ошибка.
	Create(ctx context.Context, path string) error

	// Download возвращает локальные пути загруженных файлов.
	Download(ctx context.Context, req DownloadRequest) ([]string, error)

	// Upload возвращает удалённые пути выгруженных файлов.
	// Пустой результат без ошибки — ничего не подошло под фильтр.
	Upload(ctx context.Context, req UploadRequest) ([]string, error)
}

// Store — полный клиент удалённого хранилища.
type Store interface {
	Browser
	Transferer

	Share(ctx context.Context, path, username, permission string) error
	Unshare(ctx context.Context, path string, usernames []string) error

	// Tag задаёт метаданные объекта: обычные атрибуты и атрибуты iRODS.
	Tag(ctx context.Context, id string, attributes, irodsAttributes map[string]string) error

	// Tags возвращает метаданные объекта. irods=true — атрибуты iRODS.
	Tags(ctx context.Context, id string, irods bool) (map[string]string, error)

	UserInfo(ctx context.Context, username string) (map[string]any, error)
}

// Permissions, которые принимает Share.
var Permissions = []string{"read", "write", "own"}
