package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/telemetry"
)

// S3Config — настройки S3-совместимого хранилища (MinIO).
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	Logger *zap.Logger
}

// Validate проверяет обязательные поля.
func (c S3Config) Validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("s3 endpoint is required")
	case c.AccessKey == "" || c.SecretKey == "":
		return errors.New("s3 access key and secret key are required")
	case c.Bucket == "":
		return errors.New("s3 bucket is required")
	}
	return nil
}

// S3Store — хранилище поверх одного bucket'а.
//
// Удалённые пути отображаются в ключи объектов, директории — в префиксы.
// Share и Unshare не поддерживаются, метаданные хранятся как теги объекта.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
	logger *zap.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store создаёт клиент MinIO.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &S3Store{client: client, bucket: cfg.Bucket, region: cfg.Region, logger: logger}, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// EnsureBucket создаёт bucket, если его нет.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func dirPrefix(p string) string {
	key := objectKey(p)
	if key == "" {
		return ""
	}
	return key + "/"
}

func (s *S3Store) observe(op string, err error) error {
	telemetry.ObserveStoreRequest("s3", op, err)
	return s.mapError(op, err)
}

func (s *S3Store) mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		return err
	}
	return &APIError{Op: op, StatusCode: resp.StatusCode, Code: mapS3Code(resp.Code), Message: resp.Message}
}

func mapS3Code(code string) string {
	if code == "NoSuchKey" || code == "NoSuchBucket" {
		return "ERR_DOES_NOT_EXIST"
	}
	return code
}

// List перечисляет объекты и "поддиректории" на один уровень.
func (s *S3Store) List(ctx context.Context, dir string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		prefix := dirPrefix(dir)
		var listErr error
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
			if obj.Err != nil {
				listErr = obj.Err
				break
			}
			if obj.Key == prefix {
				continue
			}
			if !yield(s.toEntry(obj), nil) {
				return
			}
		}
		if err := s.observe("list", listErr); err != nil {
			yield(Entry{}, err)
		}
	}
}

func (s *S3Store) toEntry(obj minio.ObjectInfo) Entry {
	kind := KindFile
	key := obj.Key
	if strings.HasSuffix(key, "/") {
		kind = KindDirectory
		key = strings.TrimSuffix(key, "/")
	}
	return Entry{
		ID:       key,
		Path:     "/" + key,
		Label:    path.Base(key),
		Kind:     kind,
		Size:     obj.Size,
		Modified: obj.LastModified,
	}
}

// Stat ищет объект, а при его отсутствии — префикс с таким именем.
func (s *S3Store) Stat(ctx context.Context, p string) (Entry, error) {
	key := objectKey(p)
	if key == "" {
		return Entry{ID: "", Path: "/", Label: s.bucket, Kind: KindDirectory}, nil
	}

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		telemetry.ObserveStoreRequest("s3", "stat", nil)
		return s.toEntry(info), nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code != "NoSuchKey" {
		return Entry{}, s.observe("stat", err)
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(lctx, s.bucket, minio.ListObjectsOptions{Prefix: key + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			return Entry{}, s.observe("stat", obj.Err)
		}
		telemetry.ObserveStoreRequest("s3", "stat", nil)
		return Entry{ID: key, Path: "/" + key, Label: path.Base(key), Kind: KindDirectory}, nil
	}

	telemetry.ObserveStoreRequest("s3", "stat", nil)
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, p)
}

// Exists проверяет наличие пути.
func (s *S3Store) Exists(ctx context.Context, p string, kind EntryKind) (bool, error) {
	e, err := s.Stat(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return kind == "" || e.Kind == kind, nil
}

// Create кладёт пустой объект-маркер "<dir>/".
func (s *S3Store) Create(ctx context.Context, p string) error {
	prefix := dirPrefix(p)
	if prefix == "" {
		return nil
	}
	_, err := s.client.PutObject(ctx, s.bucket, prefix, bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	return s.observe("create", err)
}

// Download загружает объект или префикс.
func (s *S3Store) Download(ctx context.Context, req DownloadRequest) ([]string, error) {
	return downloadTree(ctx, s, s.fetch, req)
}

func (s *S3Store) fetch(ctx context.Context, remote, local string) error {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(remote), minio.GetObjectOptions{})
	if err != nil {
		return s.observe("download", err)
	}
	defer obj.Close()

	err = writeLocalFile(local, obj)
	return s.observe("download", err)
}

// Upload выгружает файл или директорию.
func (s *S3Store) Upload(ctx context.Context, req UploadRequest) ([]string, error) {
	return uploadTree(ctx, s.Create, s.put, req)
}

func (s *S3Store) put(ctx context.Context, local, remoteDir string) (string, error) {
	key := path.Join(objectKey(remoteDir), filepath.Base(local))
	_, err := s.client.FPutObject(ctx, s.bucket, key, local, minio.PutObjectOptions{})
	if err := s.observe("upload", err); err != nil {
		return "", err
	}
	s.logger.Debug("uploaded object", zap.String("bucket", s.bucket), zap.String("key", key))
	return "/" + key, nil
}

// Share не поддерживается.
func (s *S3Store) Share(context.Context, string, string, string) error {
	return fmt.Errorf("share: %w", ErrUnsupported)
}

// Unshare не поддерживается.
func (s *S3Store) Unshare(context.Context, string, []string) error {
	return fmt.Errorf("unshare: %w", ErrUnsupported)
}

// Tag записывает атрибуты как теги объекта. Атрибуты iRODS получают префикс "irods-".
func (s *S3Store) Tag(ctx context.Context, id string, attributes, irodsAttributes map[string]string) error {
	m := make(map[string]string, len(attributes)+len(irodsAttributes))
	for k, v := range attributes {
		m[k] = v
	}
	for k, v := range irodsAttributes {
		m["irods-"+k] = v
	}

	t, err := tags.NewTags(m, true)
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}
	err = s.client.PutObjectTagging(ctx, s.bucket, objectKey(id), t, minio.PutObjectTaggingOptions{})
	return s.observe("tag", err)
}

// Tags читает теги объекта.
func (s *S3Store) Tags(ctx context.Context, id string, irods bool) (map[string]string, error) {
	t, err := s.client.GetObjectTagging(ctx, s.bucket, objectKey(id), minio.GetObjectTaggingOptions{})
	if err := s.observe("tags", err); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for k, v := range t.ToMap() {
		name, isIrods := strings.CutPrefix(k, "irods-")
		if isIrods == irods {
			out[name] = v
		}
	}
	return out, nil
}

// UserInfo не поддерживается.
func (s *S3Store) UserInfo(context.Context, string) (map[string]any, error) {
	return nil, fmt.Errorf("user info: %w", ErrUnsupported)
}
