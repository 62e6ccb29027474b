package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/knowpool/internal/config"
	"github.com/cloo-solutions/knowpool/internal/database"
	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/jobs"
	"github.com/cloo-solutions/knowpool/internal/repository"
	"github.com/cloo-solutions/knowpool/internal/repository/sqlite"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/cloo-solutions/knowpool/internal/storage"
)

// jobStore is what both backends offer for queued sessions.
type jobStore interface {
	service.AccumulationJobRepository
	jobs.AccumulationJobRepository
}

// runtime holds the store and the services built on top of it.
type runtime struct {
	Store       service.KnowledgeStore
	Jobs        jobStore
	Ranking     *service.RankingService
	Context     *service.ContextService
	Accumulator *service.Accumulator
	Queue       *service.SessionQueue
	// Snapshots is nil when no object storage is configured.
	Snapshots *service.SnapshotService

	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

type runtimeOptions struct {
	Migrate bool
	Storage bool
}

// newRuntime opens the configured store and wires the services.
func newRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	policy := domain.DefaultDecayPolicy()
	if cfg.DecayPolicyFile != "" {
		p, err := domain.LoadDecayPolicy(cfg.DecayPolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load decay policy: %w", err)
		}
		policy = p
	}

	rt := &runtime{}
	if err := rt.openStore(ctx, cfg, opts.Migrate); err != nil {
		return nil, err
	}

	var objects service.ObjectStorage
	if opts.Storage && cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objects = s3Client
	}

	rankCfg := service.DefaultRankingConfig()
	rankCfg.StalenessFloor = cfg.StalenessFloor
	rankCfg.Policy = policy
	rt.Ranking = service.NewRankingServiceWithConfig(rt.Store, rankCfg)

	ctxCfg := service.DefaultContextServiceConfig()
	ctxCfg.MaxChars = cfg.ContextMaxChars
	rt.Context = service.NewContextServiceWithConfig(rt.Ranking, ctxCfg)

	rt.Accumulator = service.NewAccumulator(rt.Store)
	rt.Queue = service.NewSessionQueue(rt.Jobs)
	if objects != nil {
		rt.Snapshots = service.NewSnapshotService(rt.Store, objects, rt.Accumulator)
	}

	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context, cfg *config.Config, migrate bool) error {
	if cfg.UsesSQLite() {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		rt.Store = sqlite.NewKnowledgeStore(db)
		rt.Jobs = sqlite.NewJobStore(db)
		log.Printf("using sqlite store at %s", db.Path)
		return nil
	}

	if migrate {
		if _, err := database.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.closers = append(rt.closers, pool.Close)
	rt.Store = repository.NewKnowledgeRepository(pool)
	rt.Jobs = repository.NewAccumulationJobRepository(pool)
	log.Println("connected to database")
	return nil
}

// loadRuntime loads config and builds a runtime for one-shot commands.
func loadRuntime(ctx context.Context, opts runtimeOptions) (*config.Config, *runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	rt, err := newRuntime(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return cfg, rt, nil
}
