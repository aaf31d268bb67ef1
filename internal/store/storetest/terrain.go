// Package storetest — фейковый сервер Terrain для тестов.
package storetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Terrain — in-memory реализация REST API Terrain поверх httptest.Server.
type Terrain struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	shares   map[string]map[string]string // path → user → permission
	metadata map[string]map[string]any    // id → {"avus": ..., "irods-avus": ...}
	users    map[string]map[string]any

	// Token — ожидаемый bearer-токен. Пустой — авторизация не проверяется.
	Token string

	// FailNext — число следующих запросов, которые получат 503.
	FailNext int

	// Requests — счётчик запросов по пути.
	Requests map[string]int
}

// NewTerrain запускает сервер и регистрирует его закрытие в t.Cleanup.
func NewTerrain(t testing.TB) *Terrain {
	t.Helper()

	f := &Terrain{
		files:    make(map[string][]byte),
		dirs:     map[string]bool{"/": true},
		shares:   make(map[string]map[string]string),
		metadata: make(map[string]map[string]any),
		users:    make(map[string]map[string]any),
		Requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/secured/filesystem/paged-directory", f.handleList)
	mux.HandleFunc("/secured/filesystem/stat", f.handleStat)
	mux.HandleFunc("/secured/filesystem/exists", f.handleExists)
	mux.HandleFunc("/secured/filesystem/directory/create", f.handleCreate)
	mux.HandleFunc("/secured/fileio/download", f.handleDownload)
	mux.HandleFunc("/secured/fileio/upload", f.handleUpload)
	mux.HandleFunc("/secured/share", f.handleShare)
	mux.HandleFunc("/secured/unshare", f.handleUnshare)
	mux.HandleFunc("/secured/user-info", f.handleUser)
	mux.HandleFunc("/secured/filesystem/", f.handleMetadata)
	mux.HandleFunc("/token", f.handleToken)

	f.Server = httptest.NewServer(f.middleware(mux))
	t.Cleanup(f.Server.Close)

	return f
}

// AddFile кладёт файл и создаёт родительские директории.
func (f *Terrain) AddFile(p string, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = []byte(content)
	f.mkdirAll(path.Dir(p))
}

// AddDir создаёт директорию.
func (f *Terrain) AddDir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAll(p)
}

// AddUser регистрирует профиль пользователя.
func (f *Terrain) AddUser(username string, info map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = info
}

// File возвращает содержимое файла.
func (f *Terrain) File(p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	return string(data), ok
}

// Paths возвращает отсортированные пути всех файлов.
func (f *Terrain) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for p := range f.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Shares возвращает выданные права на путь.
func (f *Terrain) Shares(p string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for u, perm := range f.shares[p] {
		out[u] = perm
	}
	return out
}

// RequestCount возвращает число запросов к пути.
func (f *Terrain) RequestCount(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Requests[p]
}

func (f *Terrain) mkdirAll(p string) {
	for p != "/" && p != "." && p != "" {
		f.dirs[p] = true
		p = path.Dir(p)
	}
}

func (f *Terrain) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.Requests[r.URL.Path]++
		fail := f.FailNext > 0
		if fail {
			f.FailNext--
		}
		token := f.Token
		f.mu.Unlock()

		if fail {
			writeError(w, http.StatusServiceUnavailable, "ERR_UNAVAILABLE", "try again")
			return
		}
		if token != "" && r.URL.Path != "/token" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "ERR_NOT_AUTHORIZED", "bad token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error_code": code, "reason": reason})
}

func (f *Terrain) entry(p string) (map[string]any, bool) {
	if data, ok := f.files[p]; ok {
		return map[string]any{"id": "id:" + p, "path": p, "label": path.Base(p), "type": "file", "file-size": len(data)}, true
	}
	if f.dirs[p] {
		return map[string]any{"id": "id:" + p, "path": p, "label": path.Base(p), "type": "dir"}, true
	}
	return nil, false
}

func (f *Terrain) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir := q.Get("path")
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirs[dir] {
		writeError(w, http.StatusNotFound, "ERR_DOES_NOT_EXIST", dir)
		return
	}

	var folders, files []string
	for d := range f.dirs {
		if d != dir && path.Dir(d) == dir {
			folders = append(folders, d)
		}
	}
	for p := range f.files {
		if path.Dir(p) == dir {
			files = append(files, p)
		}
	}
	sort.Strings(folders)
	sort.Strings(files)

	all := append(append([]string{}, folders...), files...)
	total := len(all)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	resp := map[string]any{"total": total, "folders": []any{}, "files": []any{}}
	var pageFolders, pageFiles []any
	for _, p := range all[offset:end] {
		e, _ := f.entry(p)
		if f.dirs[p] {
			pageFolders = append(pageFolders, e)
		} else {
			pageFiles = append(pageFiles, e)
		}
	}
	if pageFolders != nil {
		resp["folders"] = pageFolders
	}
	if pageFiles != nil {
		resp["files"] = pageFiles
	}
	writeJSON(w, resp)
}

func decodePaths(r *http.Request) []string {
	var body struct {
		Paths []string `json:"paths"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body.Paths
}

func (f *Terrain) handleStat(w http.ResponseWriter, r *http.Request) {
	paths := decodePaths(r)

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]any)
	for _, p := range paths {
		e, ok := f.entry(p)
		if !ok {
			writeError(w, http.StatusInternalServerError, "ERR_DOES_NOT_EXIST", p)
			return
		}
		out[p] = e
	}
	writeJSON(w, map[string]any{"paths": out})
}

func (f *Terrain) handleExists(w http.ResponseWriter, r *http.Request) {
	paths := decodePaths(r)

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]bool)
	for _, p := range paths {
		_, ok := f.entry(p)
		out[p] = ok
	}
	writeJSON(w, map[string]any{"paths": out})
}

func (f *Terrain) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dirs[body.Path] {
		writeError(w, http.StatusBadRequest, "ERR_EXISTS", body.Path)
		return
	}
	f.mkdirAll(body.Path)
	writeJSON(w, map[string]any{"path": body.Path})
}

func (f *Terrain) handleDownload(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")

	f.mu.Lock()
	data, ok := f.files[p]
	f.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "ERR_DOES_NOT_EXIST", p)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (f *Terrain) handleUpload(w http.ResponseWriter, r *http.Request) {
	dest := r.URL.Query().Get("dest")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "ERR_BAD_REQUEST", err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ERR_BAD_REQUEST", err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirs[dest] {
		writeError(w, http.StatusNotFound, "ERR_DOES_NOT_EXIST", dest)
		return
	}
	p := path.Join(dest, header.Filename)
	f.files[p] = data
	e, _ := f.entry(p)
	writeJSON(w, map[string]any{"file": e})
}

func (f *Terrain) handleShare(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sharing []struct {
			User  string `json:"user"`
			Paths []struct {
				Path       string `json:"path"`
				Permission string `json:"permission"`
			} `json:"paths"`
		} `json:"sharing"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range body.Sharing {
		for _, p := range s.Paths {
			if f.shares[p.Path] == nil {
				f.shares[p.Path] = make(map[string]string)
			}
			f.shares[p.Path][s.User] = p.Permission
		}
	}
	writeJSON(w, map[string]any{"sharing": body.Sharing})
}

func (f *Terrain) handleUnshare(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Unshare []struct {
			User  string   `json:"user"`
			Paths []string `json:"paths"`
		} `json:"unshare"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range body.Unshare {
		for _, p := range u.Paths {
			delete(f.shares[p], u.User)
		}
	}
	writeJSON(w, map[string]any{"unshare": body.Unshare})
}

func (f *Terrain) handleUser(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.users[username]
	if !ok {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, map[string]any{username: info})
}

// handleMetadata обслуживает /secured/filesystem/{id}/metadata.
func (f *Terrain) handleMetadata(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/secured/filesystem/")
	id, ok := strings.CutSuffix(rest, "/metadata")
	if !ok {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.metadata[id] = body
		writeJSON(w, body)
	default:
		md, ok := f.metadata[id]
		if !ok {
			md = map[string]any{"avus": []any{}, "irods-avus": []any{}}
		}
		writeJSON(w, md)
	}
}

func (f *Terrain) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("password") != "secret" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}
	writeJSON(w, map[string]any{
		"access_token": "token-" + r.PostForm.Get("username"),
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}
