package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/config"
	"github.com/shaiso/Plantit/internal/mq"
	"github.com/shaiso/Plantit/internal/repo"
	"github.com/shaiso/Plantit/internal/reporter"
	"github.com/shaiso/Plantit/internal/store"
)

// Closer освобождает ресурсы, открытые фабрикой (соединения MQ, пул БД).
type Closer func()

// BuildReporter создаёт репортер по списку бэкендов. Несколько бэкендов
// объединяются в reporter.Multi в порядке перечисления.
func BuildReporter(ctx context.Context, cfg config.ReporterConfig, w io.Writer, logger *zap.Logger) (reporter.Reporter, Closer, error) {
	var (
		reporters []reporter.Reporter
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, backend := range cfg.Backends {
		r, closeFn, err := buildBackend(ctx, backend, cfg, w, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%s reporter: %w", backend, err)
		}
		reporters = append(reporters, r)
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	switch len(reporters) {
	case 0:
		return nil, nil, errors.New("no reporter configured")
	case 1:
		return reporters[0], closeAll, nil
	default:
		return reporter.NewMulti(reporters...), closeAll, nil
	}
}

func buildBackend(ctx context.Context, backend string, cfg config.ReporterConfig, w io.Writer, logger *zap.Logger) (reporter.Reporter, func(), error) {
	switch backend {
	case config.ReporterConsole:
		return reporter.NewConsole(w, logger), nil, nil

	case config.ReporterREST:
		r, err := reporter.NewREST(reporter.RESTConfig{
			BaseURL: cfg.APIURL,
			JobID:   cfg.JobID,
			Token:   cfg.APIToken,
		})
		return r, nil, err

	case config.ReporterAMQP:
		conn, err := mq.NewConnection(ctx, cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := mq.SetupTopology(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		logger.Debug("rabbitmq topology ready", zap.String("topology", mq.TopologyInfo()))

		r, err := reporter.NewAMQP(mq.NewPublisher(conn, logger), cfg.JobID)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return r, func() { conn.Close() }, nil

	case config.ReporterPostgres:
		pool, err := repo.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		journal := repo.NewStatusRepo(pool)
		if err := journal.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		r, err := reporter.NewPostgres(journal, cfg.JobID)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return r, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown reporter backend %q", backend)
	}
}

// BuildStore создаёт клиент хранилища. token используется только Terrain.
func BuildStore(ctx context.Context, cfg config.StoreConfig, token string, logger *zap.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreTerrain, "":
		if token == "" {
			token = cfg.TerrainToken
		}
		return store.NewTerrainClient(store.TerrainConfig{
			BaseURL:  cfg.TerrainURL,
			TokenURL: cfg.TerrainTokenURL,
			ClientID: cfg.TerrainClientID,
			Token:    token,
			Logger:   logger,
		}), nil

	case config.StoreS3:
		s, err := store.NewS3Store(store.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
