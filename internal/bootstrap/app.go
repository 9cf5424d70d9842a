package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"swing-backend/internal/analysis"
	"swing-backend/internal/queue"
	"swing-backend/internal/quota"
	"swing-backend/internal/ratelimit"
	"swing-backend/internal/shared/config"
	"swing-backend/internal/shared/server"
	"swing-backend/internal/shared/storage/db"
	"swing-backend/internal/shared/storage/object"
	localstore "swing-backend/internal/shared/storage/object/local"
	s3store "swing-backend/internal/shared/storage/object/s3"
	"swing-backend/internal/swings"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	SwingsRepo swings.Repo
	QueueRepo  queue.Repo
	Results    *analysis.MemoryRepo

	SwingsService *swings.Service
	Worker        *queue.Worker

	SwingsHandler *swings.Handler
	QuotaHandler  *quota.Handler
}

// Build prepares the full dependency graph and wires the router. In dev-like
// environments a missing or unreachable database degrades to in-memory
// repositories so the API can run standalone.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, db.DefaultServerOptions())
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}
	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(cfg, server.Deps{
		Swings: app.SwingsHandler,
		Quota:  app.QuotaHandler,
	})
	return app, nil
}

// BuildWorker prepares the dependency graph for the worker process: the
// queue, the analyzer client, and the result pipeline, but no router.
func BuildWorker(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, db.DefaultWorkerOptions())
	if err != nil {
		return nil, err
	}
	if sqlDB == nil {
		return nil, fmt.Errorf("DATABASE_URL is required for the worker")
	}

	analyzer, err := analysis.NewHTTPClient(cfg.AnalyzerURL, cfg.AnalyzerTimeout)
	if err != nil {
		return nil, err
	}

	swingsRepo := &swings.PGRepo{DB: sqlDB}
	queueRepo := &queue.PGRepo{DB: sqlDB}
	resultsRepo := &analysis.PGRepo{DB: sqlDB}

	app := &App{
		Config:     cfg,
		DB:         sqlDB,
		SwingsRepo: swingsRepo,
		QueueRepo:  queueRepo,
		Worker: &queue.Worker{
			Queue:          queueRepo,
			Swings:         swingsRepo,
			Analyzer:       analyzer,
			Results:        resultsRepo,
			Propagator:     &analysis.StatusPropagator{Swings: swingsRepo},
			PollInterval:   cfg.QueuePollInterval,
			MaxAttempts:    cfg.QueueMaxAttempts,
			AnalyzeTimeout: cfg.AnalyzerTimeout,
		},
	}
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config, defaults db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(defaults)
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config

	var swingsRepo swings.Repo
	var queueRepo queue.Repo
	var metricsSource swings.MetricsSource
	if app.DB != nil {
		swingsRepo = &swings.PGRepo{DB: app.DB}
		queueRepo = &queue.PGRepo{DB: app.DB}
		metricsSource = &analysis.PGRepo{DB: app.DB}
	} else {
		swingsRepo = swings.NewMemoryRepo()
		queueRepo = queue.NewMemoryRepo()
		results := analysis.NewMemoryRepo()
		app.Results = results
		metricsSource = results
	}

	limiterStore, err := buildLimiterStore(ctx, cfg)
	if err != nil {
		return err
	}
	limiter := ratelimit.New(limiterStore, cfg.RateLimitWindow, cfg.RateLimitThreshold)
	guard := quota.NewGuard(swingsRepo, nil)

	svc := &swings.Service{
		Repo:                swingsRepo,
		Queue:               queueRepo,
		Store:               app.Store,
		Limiter:             limiter,
		Guard:               guard,
		MaxFileBytes:        cfg.MaxFileBytes,
		MaxTotalBytes:       cfg.MaxTotalBytes,
		AllowedContentTypes: cfg.AllowedContentTypes,
	}

	app.SwingsRepo = swingsRepo
	app.QueueRepo = queueRepo
	app.SwingsService = svc
	app.SwingsHandler = swings.NewHandler(svc, metricsSource)
	app.QuotaHandler = quota.NewHandler(swingsRepo, nil)
	return nil
}

// buildLimiterStore prefers redis; without REDIS_URL, or when redis is
// unreachable in dev, counting falls back to process memory.
func buildLimiterStore(ctx context.Context, cfg config.Config) (ratelimit.Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Printf("bootstrap: REDIS_URL empty; rate limit counters are process-local")
		return ratelimit.NewMemoryStore(nil), nil
	}
	store, err := ratelimit.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis connect failed; rate limit counters are process-local: %v", err)
			return ratelimit.NewMemoryStore(nil), nil
		}
		return nil, err
	}
	return store, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
