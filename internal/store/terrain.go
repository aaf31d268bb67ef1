package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/shaiso/Plantit/internal/telemetry"
)

// DefaultPageSize — размер страницы листинга.
const DefaultPageSize = 1000

// TerrainConfig — настройки клиента Terrain.
type TerrainConfig struct {
	// BaseURL — адрес API, например https://de.cyverse.org/terrain
	BaseURL string

	// TokenURL и ClientID — OAuth2 password grant для Authenticate.
	TokenURL string
	ClientID string

	Token    string
	PageSize int
	Retry    *RetryPolicy

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// TerrainClient — REST-клиент хранилища данных Terrain.
//
// Токен привязывается при создании (или через WithToken), таймаут задаётся ctx.
type TerrainClient struct {
	baseURL  string
	tokenURL string
	clientID string
	token    string
	pageSize int
	retry    RetryPolicy

	httpClient *http.Client
	logger     *zap.Logger
}

var _ Store = (*TerrainClient)(nil)

// NewTerrainClient создаёт клиент.
func NewTerrainClient(cfg TerrainConfig) *TerrainClient {
	c := &TerrainClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:   cfg.TokenURL,
		clientID:   cfg.ClientID,
		token:      cfg.Token,
		pageSize:   cfg.PageSize,
		retry:      DefaultRetryPolicy,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}

	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if cfg.Retry != nil {
		c.retry = *cfg.Retry
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	return c
}

// WithToken возвращает копию клиента с другим токеном.
func (c *TerrainClient) WithToken(token string) *TerrainClient {
	cp := *c
	cp.token = token
	return &cp
}

// Authenticate получает токен по логину и паролю (OAuth2 password grant).
func (c *TerrainClient) Authenticate(ctx context.Context, username, password string) (string, error) {
	tokenURL := c.tokenURL
	if tokenURL == "" {
		tokenURL = c.baseURL + "/token"
	}

	cfg := &oauth2.Config{
		ClientID: c.clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.PasswordCredentialsToken(ctx, username, password)
	telemetry.ObserveStoreRequest("terrain", "token", err)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	return tok.AccessToken, nil
}

// --- Листинг и метаданные ---

type terrainEntry struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	FileSize     int64  `json:"file-size"`
	DateModified int64  `json:"date-modified"`
}

func (e terrainEntry) toEntry(kind EntryKind) Entry {
	if kind == "" {
		kind = KindFile
		if e.Type == "dir" {
			kind = KindDirectory
		}
	}
	label := e.Label
	if label == "" {
		label = path.Base(e.Path)
	}
	out := Entry{
		ID:    e.ID,
		Path:  e.Path,
		Label: label,
		Kind:  kind,
		Size:  e.FileSize,
	}
	if e.DateModified > 0 {
		out.Modified = time.UnixMilli(e.DateModified).UTC()
	}
	return out
}

type pagedDirectory struct {
	Files   []terrainEntry `json:"files"`
	Folders []terrainEntry `json:"folders"`
	Total   int            `json:"total"`
}

// List обходит директорию страницами по pageSize (limit/offset).
func (c *TerrainClient) List(ctx context.Context, dir string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		offset := 0
		for {
			page, err := withRetry(ctx, c.retry, func() (*pagedDirectory, error) {
				return c.listPage(ctx, dir, offset)
			})
			if err != nil {
				yield(Entry{}, err)
				return
			}

			for _, f := range page.Folders {
				if !yield(f.toEntry(KindDirectory), nil) {
					return
				}
			}
			for _, f := range page.Files {
				if !yield(f.toEntry(KindFile), nil) {
					return
				}
			}

			n := len(page.Folders) + len(page.Files)
			offset += n
			if n == 0 || offset >= page.Total {
				return
			}
		}
	}
}

func (c *TerrainClient) listPage(ctx context.Context, dir string, offset int) (*pagedDirectory, error) {
	q := url.Values{}
	q.Set("path", dir)
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))

	var page pagedDirectory
	if err := c.doJSON(ctx, "list", http.MethodGet, "/secured/filesystem/paged-directory", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Stat возвращает метаданные пути.
func (c *TerrainClient) Stat(ctx context.Context, p string) (Entry, error) {
	return withRetry(ctx, c.retry, func() (Entry, error) {
		var resp struct {
			Paths map[string]terrainEntry `json:"paths"`
		}
		body := map[string][]string{"paths": {p}}
		if err := c.doJSON(ctx, "stat", http.MethodPost, "/secured/filesystem/stat", nil, body, &resp); err != nil {
			return Entry{}, err
		}

		e, ok := resp.Paths[p]
		if !ok {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		if e.Path == "" {
			e.Path = p
		}
		return e.toEntry(""), nil
	})
}

// Exists проверяет наличие пути и (если kind задан) его тип.
func (c *TerrainClient) Exists(ctx context.Context, p string, kind EntryKind) (bool, error) {
	exists, err := withRetry(ctx, c.retry, func() (bool, error) {
		var resp struct {
			Paths map[string]bool `json:"paths"`
		}
		body := map[string][]string{"paths": {p}}
		if err := c.doJSON(ctx, "exists", http.MethodPost, "/secured/filesystem/exists", nil, body, &resp); err != nil {
			return false, err
		}
		return resp.Paths[p], nil
	})
	if err != nil || !exists || kind == "" {
		return exists, err
	}

	e, err := c.Stat(ctx, p)
	if err != nil {
		return false, err
	}
	return e.Kind == kind, nil
}

// Create создаёт директорию; существующая директория не ошибка.
func (c *TerrainClient) Create(ctx context.Context, p string) error {
	exists, err := c.Exists(ctx, p, "")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]string{"path": p}
	err = c.doJSON(ctx, "create", http.MethodPost, "/secured/filesystem/directory/create", nil, body, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "ERR_EXISTS" {
		return nil
	}
	return err
}

// --- Передача данных ---

// Download загружает файл или директорию в req.LocalPath.
func (c *TerrainClient) Download(ctx context.Context, req DownloadRequest) ([]string, error) {
	files, err := downloadTree(ctx, c, c.fetch, req)
	if err != nil {
		return files, err
	}

	c.logger.Debug("downloaded",
		zap.String("remote", req.RemotePath),
		zap.String("local", req.LocalPath),
		zap.Int("files", len(files)),
	)
	return files, nil
}

func (c *TerrainClient) fetch(ctx context.Context, remote, local string) error {
	q := url.Values{}
	q.Set("path", remote)

	resp, err := c.do(ctx, http.MethodGet, "/secured/fileio/download", q, nil, "")
	if err == nil {
		defer resp.Body.Close()
		err = checkError("download", resp)
	}
	telemetry.ObserveStoreRequest("terrain", "download", err)
	if err != nil {
		return err
	}

	return writeLocalFile(local, resp.Body)
}

// Upload выгружает файл или директорию в req.RemotePath.
func (c *TerrainClient) Upload(ctx context.Context, req UploadRequest) ([]string, error) {
	return uploadTree(ctx, c.Create, c.put, req)
}

func (c *TerrainClient) put(ctx context.Context, local, remoteDir string) (string, error) {
	f, err := os.Open(local)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(local))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	q := url.Values{}
	q.Set("dest", remoteDir)

	resp, err := c.do(ctx, http.MethodPost, "/secured/fileio/upload", q, pr, mw.FormDataContentType())
	if err == nil {
		defer resp.Body.Close()
		err = checkError("upload", resp)
	}
	telemetry.ObserveStoreRequest("terrain", "upload", err)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}

	var out struct {
		File terrainEntry `json:"file"`
	}
	remote := path.Join(remoteDir, filepath.Base(local))
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.File.Path != "" {
		remote = out.File.Path
	}
	return remote, nil
}

// --- Доступ и метаданные ---

// Share выдаёт пользователю право permission (read, write, own) на путь.
func (c *TerrainClient) Share(ctx context.Context, p, username, permission string) error {
	if !slices.Contains(Permissions, permission) {
		return fmt.Errorf("%w: %s", ErrInvalidPermission, permission)
	}

	body := map[string]any{
		"sharing": []map[string]any{{
			"user":  username,
			"paths": []map[string]string{{"path": p, "permission": permission}},
		}},
	}
	return c.doJSON(ctx, "share", http.MethodPost, "/secured/share", nil, body, nil)
}

// Unshare отзывает доступ к пути у пользователей.
func (c *TerrainClient) Unshare(ctx context.Context, p string, usernames []string) error {
	items := make([]map[string]any, 0, len(usernames))
	for _, u := range usernames {
		items = append(items, map[string]any{"user": u, "paths": []string{p}})
	}
	body := map[string]any{"unshare": items}
	return c.doJSON(ctx, "unshare", http.MethodPost, "/secured/unshare", nil, body, nil)
}

type avu struct {
	Attr  string `json:"attr"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

type metadata struct {
	AVUs      []avu `json:"avus"`
	IrodsAVUs []avu `json:"irods-avus"`
}

func toAVUs(attrs map[string]string) []avu {
	out := make([]avu, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, avu{Attr: k, Value: v})
	}
	slices.SortFunc(out, func(a, b avu) int { return strings.Compare(a.Attr, b.Attr) })
	return out
}

// Tag задаёт метаданные объекта с идентификатором id.
func (c *TerrainClient) Tag(ctx context.Context, id string, attributes, irodsAttributes map[string]string) error {
	body := metadata{AVUs: toAVUs(attributes), IrodsAVUs: toAVUs(irodsAttributes)}
	return c.doJSON(ctx, "tag", http.MethodPost, "/secured/filesystem/"+url.PathEscape(id)+"/metadata", nil, body, nil)
}

// Tags возвращает метаданные объекта.
func (c *TerrainClient) Tags(ctx context.Context, id string, irods bool) (map[string]string, error) {
	md, err := withRetry(ctx, c.retry, func() (metadata, error) {
		var md metadata
		err := c.doJSON(ctx, "tags", http.MethodGet, "/secured/filesystem/"+url.PathEscape(id)+"/metadata", nil, nil, &md)
		return md, err
	})
	if err != nil {
		return nil, err
	}

	src := md.AVUs
	if irods {
		src = md.IrodsAVUs
	}
	out := make(map[string]string, len(src))
	for _, a := range src {
		out[a.Attr] = a.Value
	}
	return out, nil
}

// UserInfo возвращает профиль пользователя.
func (c *TerrainClient) UserInfo(ctx context.Context, username string) (map[string]any, error) {
	return withRetry(ctx, c.retry, func() (map[string]any, error) {
		q := url.Values{}
		q.Set("username", username)

		var resp map[string]map[string]any
		if err := c.doJSON(ctx, "user", http.MethodGet, "/secured/user-info", q, nil, &resp); err != nil {
			return nil, err
		}

		info, ok := resp[username]
		if !ok {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, username)
		}
		return info, nil
	})
}

// --- HTTP helpers ---

func (c *TerrainClient) doJSON(ctx context.Context, op, method, p string, q url.Values, body, result any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, p, q, reader, contentType)
	if err == nil {
		defer resp.Body.Close()
		err = checkError(op, resp)
	}
	if err == nil && result != nil {
		if decErr := json.NewDecoder(resp.Body).Decode(result); decErr != nil {
			err = fmt.Errorf("%s: failed to decode response: %w", op, decErr)
		}
	}

	telemetry.ObserveStoreRequest("terrain", op, err)
	if err != nil {
		c.logger.Debug("terrain request failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func (c *TerrainClient) do(ctx context.Context, method, p string, q url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := c.baseURL + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func checkError(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}

	var er struct {
		ErrorCode string `json:"error_code"`
		Reason    string `json:"reason"`
		Message   string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &er) == nil {
		apiErr.Code = er.ErrorCode
		apiErr.Message = er.Reason
		if apiErr.Message == "" {
			apiErr.Message = er.Message
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}

	return apiErr
}
