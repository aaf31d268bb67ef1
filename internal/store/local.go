package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/shaiso/Plantit/internal/domain"
)

// fetchFunc загружает один удалённый файл в локальный путь.
type fetchFunc func(ctx context.Context, remote, local string) error

// putFunc выгружает один локальный файл в удалённую директорию
// и возвращает удалённый путь.
type putFunc func(ctx context.Context, local, remoteDir string) (string, error)

// localFile — файл для выгрузки: абсолютный путь и путь относительно корня.
type localFile struct {
	abs string
	rel string
}

// forceMatch проверяет базовое имя по force-шаблонам.
func forceMatch(patterns []string, name string) bool {
	base := filepath.Base(name)
	for _, p := range patterns {
		if ok, err := path.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}

// checkLocalTarget возвращает ErrLocalExists, если файл уже есть и не подходит под force.
func checkLocalTarget(local string, force []string) error {
	_, err := os.Stat(local)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}
	if forceMatch(force, local) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrLocalExists, local)
}

// writeLocalFile пишет поток во временный файл и атомарно переименовывает его.
func writeLocalFile(local string, r io.Reader) error {
	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(local)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", local, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), local)
}

// downloadTree загружает файл или директорию (рекурсивно) через browser и fetch.
// Для одиночного файла фильтр не применяется.
func downloadTree(ctx context.Context, b Browser, fetch fetchFunc, req DownloadRequest) ([]string, error) {
	entry, err := b.Stat(ctx, req.RemotePath)
	if err != nil {
		return nil, err
	}

	if !entry.IsDir() {
		local := filepath.Join(req.LocalPath, path.Base(entry.Path))
		if err := checkLocalTarget(local, req.Force); err != nil {
			return nil, err
		}
		if err := fetch(ctx, entry.Path, local); err != nil {
			return nil, err
		}
		return []string{local}, nil
	}

	var downloaded []string
	var walk func(remoteDir, localDir string) error
	walk = func(remoteDir, localDir string) error {
		for e, err := range b.List(ctx, remoteDir) {
			if err != nil {
				return err
			}
			name := path.Base(e.Path)
			if e.IsDir() {
				if err := walk(e.Path, filepath.Join(localDir, name)); err != nil {
					return err
				}
				continue
			}
			if !req.Filter.Match(name) {
				continue
			}
			local := filepath.Join(localDir, name)
			if err := checkLocalTarget(local, req.Force); err != nil {
				return err
			}
			if err := fetch(ctx, e.Path, local); err != nil {
				return err
			}
			downloaded = append(downloaded, local)
		}
		return nil
	}

	if err := os.MkdirAll(req.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", req.LocalPath, err)
	}
	if err := walk(entry.Path, req.LocalPath); err != nil {
		return downloaded, err
	}
	return downloaded, nil
}

// collectUploads собирает локальные файлы для выгрузки с учётом фильтра.
func collectUploads(localPath string, filter domain.Filter) ([]localFile, error) {
	info, err := os.Stat(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrLocalMissing, localPath)
	}
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !filter.Match(localPath) {
			return nil, nil
		}
		return []localFile{{abs: localPath, rel: filepath.Base(localPath)}}, nil
	}

	var files []localFile
	err = filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !filter.Match(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		files = append(files, localFile{abs: p, rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, nil
}

// uploadTree выгружает файлы, создавая удалённые поддиректории через create.
func uploadTree(ctx context.Context, create func(context.Context, string) error, put putFunc, req UploadRequest) ([]string, error) {
	files, err := collectUploads(req.LocalPath, req.Filter)
	if err != nil {
		return nil, err
	}

	created := map[string]bool{req.RemotePath: true}
	uploaded := make([]string, 0, len(files))

	for _, f := range files {
		remoteDir := path.Join(req.RemotePath, path.Dir(f.rel))
		if !created[remoteDir] {
			if err := create(ctx, remoteDir); err != nil {
				return uploaded, err
			}
			created[remoteDir] = true
		}

		remote, err := put(ctx, f.abs, remoteDir)
		if err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, remote)
	}

	return uploaded, nil
}
