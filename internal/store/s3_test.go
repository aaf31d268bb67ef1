package store

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(t *testing.T) *S3Store {
	t.Helper()
	s, err := NewS3Store(S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "plantit",
	})
	require.NoError(t, err)
	return s
}

func TestS3Config_Validate(t *testing.T) {
	valid := S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		edit func(*S3Config)
	}{
		{"endpoint", func(c *S3Config) { c.Endpoint = "" }},
		{"access key", func(c *S3Config) { c.AccessKey = "" }},
		{"secret key", func(c *S3Config) { c.SecretKey = "" }},
		{"bucket", func(c *S3Config) { c.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.edit(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := NewS3Store(cfg)
			assert.Error(t, err)
		})
	}
}

func TestS3_Keys(t *testing.T) {
	assert.Equal(t, "data/f1.txt", objectKey("/data/f1.txt"))
	assert.Equal(t, "data/f1.txt", objectKey("data//f1.txt"))
	assert.Equal(t, "", objectKey("/"))

	assert.Equal(t, "results/", dirPrefix("/results"))
	assert.Equal(t, "results/", dirPrefix("results/"))
	assert.Equal(t, "", dirPrefix("/"))
}

func TestS3_ToEntry(t *testing.T) {
	s := newTestS3(t)
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	f := s.toEntry(minio.ObjectInfo{Key: "data/f1.txt", Size: 3, LastModified: mod})
	assert.Equal(t, Entry{ID: "data/f1.txt", Path: "/data/f1.txt", Label: "f1.txt", Kind: KindFile, Size: 3, Modified: mod}, f)

	d := s.toEntry(minio.ObjectInfo{Key: "data/sub/"})
	assert.Equal(t, "/data/sub", d.Path)
	assert.True(t, d.IsDir())
}

func TestS3_MapError(t *testing.T) {
	s := newTestS3(t)

	assert.NoError(t, s.mapError("stat", nil))

	plain := errors.New("dial tcp: connection refused")
	assert.Same(t, plain, s.mapError("list", plain))

	err := s.mapError("download", minio.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Code:       "NoSuchKey",
		Message:    "The specified key does not exist.",
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "download", apiErr.Op)
	assert.Equal(t, "ERR_DOES_NOT_EXIST", apiErr.Code)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.mapError("upload", minio.ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: "SlowDown"})
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary())
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestS3_Unsupported(t *testing.T) {
	s := newTestS3(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Share(ctx, "/data", "alice", "read"), ErrUnsupported)
	assert.ErrorIs(t, s.Unshare(ctx, "/data", []string{"alice"}), ErrUnsupported)

	_, err := s.UserInfo(ctx, "alice")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestS3_StatRoot(t *testing.T) {
	s := newTestS3(t)

	e, err := s.Stat(context.Background(), "/")
	require.NoError(t, err)
	assert.True(t, e.IsDir())
	assert.Equal(t, "plantit", e.Label)
}
