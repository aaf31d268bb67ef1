// Package config загружает настройки plantit из переменных окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Plantit/internal/mq"
	"github.com/shaiso/Plantit/internal/repo"
)

// Значения по умолчанию.
const (
	DefaultTerrainURL   = "https://de.cyverse.org/terrain"
	DefaultS3Endpoint   = "localhost:9000"
	DefaultS3Bucket     = "plantit"
	DefaultDockerBin    = "docker"
	DefaultCloneDepth   = 1
	DefaultCloneTimeout = 5 * time.Minute
)

// Бэкенды репортера.
const (
	ReporterConsole  = "console"
	ReporterREST     = "rest"
	ReporterAMQP     = "amqp"
	ReporterPostgres = "postgres"
)

// Бэкенды хранилища.
const (
	StoreTerrain = "terrain"
	StoreS3      = "s3"
)

// Container runtimes.
const (
	RuntimeDocker = "docker"
	RuntimeLocal  = "local"
)

// ErrInvalid — некорректное значение переменной окружения.
var ErrInvalid = errors.New("invalid configuration")

// ReporterConfig — куда отправляются статусы.
type ReporterConfig struct {
	// Backends — один или несколько из console, rest, amqp, postgres.
	Backends []string

	APIURL   string
	JobID    string
	APIToken string

	RabbitMQURL string
	DBURL       string
}

// Has проверяет, включён ли бэкенд.
func (c ReporterConfig) Has(backend string) bool {
	return slices.Contains(c.Backends, backend)
}

// StoreConfig — удалённое хранилище.
type StoreConfig struct {
	Backend string

	TerrainURL      string
	TerrainTokenURL string
	TerrainClientID string

	// TerrainToken — токен по умолчанию, если его нет в run descriptor или флаге --token.
	TerrainToken string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

// ExecConfig — выполнение стадий.
type ExecConfig struct {
	Runtime   string
	DockerBin string

	// MaxParallel — 0 означает NumCPU.
	MaxParallel int

	// CloneDepth — 0 означает полную историю.
	CloneDepth   int
	CloneTimeout time.Duration
}

// Config — полная конфигурация.
type Config struct {
	Reporter ReporterConfig
	Store    StoreConfig
	Exec     ExecConfig

	// MetricsAddr — адрес /metrics и /healthz. Пусто — listener не запускается.
	MetricsAddr string
}

// Load читает конфигурацию из окружения процесса.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom читает конфигурацию через lookup (удобно для тестов).
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		Reporter: ReporterConfig{
			Backends:    splitList(env.str("PLANTIT_REPORTER", ReporterConsole)),
			APIURL:      env.str("PLANTIT_API_URL", ""),
			JobID:       env.str("PLANTIT_JOB_ID", ""),
			APIToken:    env.str("PLANTIT_API_TOKEN", ""),
			RabbitMQURL: env.str("RABBITMQ_URL", mq.DefaultURL),
			DBURL:       env.str("DB_URL", repo.DefaultDSN),
		},
		Store: StoreConfig{
			Backend:         env.str("PLANTIT_STORE", StoreTerrain),
			TerrainURL:      env.str("TERRAIN_URL", DefaultTerrainURL),
			TerrainTokenURL: env.str("TERRAIN_TOKEN_URL", ""),
			TerrainClientID: env.str("TERRAIN_CLIENT_ID", ""),
			TerrainToken:    env.str("TERRAIN_TOKEN", ""),
			S3Endpoint:      env.str("PLANTIT_S3_ENDPOINT", DefaultS3Endpoint),
			S3AccessKey:     env.str("PLANTIT_S3_ACCESS_KEY", ""),
			S3SecretKey:     env.str("PLANTIT_S3_SECRET_KEY", ""),
			S3Bucket:        env.str("PLANTIT_S3_BUCKET", DefaultS3Bucket),
			S3UseSSL:        env.bool("PLANTIT_S3_USE_SSL", false),
		},
		Exec: ExecConfig{
			Runtime:      env.str("PLANTIT_RUNTIME", RuntimeDocker),
			DockerBin:    env.str("PLANTIT_DOCKER_BIN", DefaultDockerBin),
			MaxParallel:  env.int("PLANTIT_MAX_PARALLEL", 0),
			CloneDepth:   env.int("PLANTIT_CLONE_DEPTH", DefaultCloneDepth),
			CloneTimeout: env.duration("PLANTIT_CLONE_TIMEOUT", DefaultCloneTimeout),
		},
		MetricsAddr: env.str("PLANTIT_METRICS_ADDR", ""),
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Reporter.Backends) == 0 {
		errs = append(errs, fmt.Errorf("%w: PLANTIT_REPORTER is empty", ErrInvalid))
	}
	for _, b := range c.Reporter.Backends {
		switch b {
		case ReporterConsole, ReporterREST, ReporterAMQP, ReporterPostgres:
		default:
			errs = append(errs, fmt.Errorf("%w: PLANTIT_REPORTER must be one of console, rest, amqp, postgres; got %q", ErrInvalid, b))
		}
	}
	if c.Reporter.Has(ReporterREST) && c.Reporter.APIURL == "" {
		errs = append(errs, fmt.Errorf("%w: PLANTIT_API_URL is required for the rest reporter", ErrInvalid))
	}

	switch c.Store.Backend {
	case StoreTerrain:
	case StoreS3:
		if c.Store.S3AccessKey == "" || c.Store.S3SecretKey == "" {
			errs = append(errs, fmt.Errorf("%w: PLANTIT_S3_ACCESS_KEY and PLANTIT_S3_SECRET_KEY are required for the s3 store", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: PLANTIT_STORE must be terrain or s3; got %q", ErrInvalid, c.Store.Backend))
	}

	switch c.Exec.Runtime {
	case RuntimeDocker, RuntimeLocal:
	default:
		errs = append(errs, fmt.Errorf("%w: PLANTIT_RUNTIME must be docker or local; got %q", ErrInvalid, c.Exec.Runtime))
	}
	if c.Exec.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("%w: PLANTIT_MAX_PARALLEL must not be negative", ErrInvalid))
	}
	if c.Exec.CloneDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: PLANTIT_CLONE_DEPTH must not be negative", ErrInvalid))
	}
	if c.Exec.CloneTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: PLANTIT_CLONE_TIMEOUT must be positive", ErrInvalid))
	}

	return errors.Join(errs...)
}

// SetReporters заменяет список бэкендов (флаг --reporter).
func (c *Config) SetReporters(list string) {
	c.Reporter.Backends = splitList(list)
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envReader копит ошибки разбора, чтобы вернуть их все сразу.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalid, key, v))
		return def
	}
	return b
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalid, key, v))
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s must be a duration, got %q", ErrInvalid, key, v))
		return def
	}
	return d
}
