// Package app builds the service graph from configuration. Both the HTTP
// server and the ingest CLI start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/quizbank/quizbank/internal/config"
	"github.com/quizbank/quizbank/internal/database"
	"github.com/quizbank/quizbank/internal/ingestion"
	"github.com/quizbank/quizbank/internal/oidc"
	"github.com/quizbank/quizbank/internal/question"
	"github.com/quizbank/quizbank/internal/question/repository"
	"github.com/quizbank/quizbank/internal/runlog"
	"github.com/quizbank/quizbank/internal/source"
	"github.com/quizbank/quizbank/internal/storage"
	"github.com/quizbank/quizbank/internal/tokens"
	"github.com/quizbank/quizbank/pkg/logger"
	"github.com/quizbank/quizbank/pkg/middleware"
)

const connectAttempts = 5

// App holds the wired services and the handles that must be closed.
type App struct {
	Cfg      *config.Config
	Repo     repository.Repository
	Service  *ingestion.Service
	Redis    *redis.Client
	Archive  *storage.ObjectStore
	Verifier middleware.Verifier

	mongo   *mongo.Client
	pg      *pgxpool.Pool
	sqlite  *gorm.DB
	closers []func()
	started time.Time
}

// Options lets callers swap collaborators, mainly for tests.
type Options struct {
	Source ingestion.PageSource
}

// Build connects the configured backends and wires the ingestion service.
// Optional infrastructure (Redis, MinIO, OIDC) that fails to come up is
// logged and left out.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Cfg: cfg, started: time.Now()}
	log := logger.Named("app")

	base, runs, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if addr := cfg.Redis.Addr(); addr != "" {
		rc := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warnf("redis %s unavailable, continuing without cache: %v", addr, err)
			_ = rc.Close()
		} else {
			a.Redis = rc
			a.closers = append(a.closers, func() { _ = rc.Close() })
			log.Infof("connected to redis %s", addr)
		}
	}
	a.Repo = repository.NewCachedRepo(base, a.Redis, cachePrefix(cfg.Store.Backend), cfg.Redis.CacheTTL)

	var archiver ingestion.Archiver
	if cfg.Archive.Enabled() {
		st, err := storage.NewObjectStore(ctx, &storage.MinIOConfig{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
		})
		if err != nil {
			log.Warnf("archive unavailable, rejected pages will not be kept: %v", err)
		} else {
			a.Archive = st
			archiver = storage.NewPageArchive(st, cfg.Archive.Prefix)
		}
	}

	src := opts.Source
	if src == nil {
		client, err := source.NewClient(&source.Options{
			BaseURL:           cfg.Source.BaseURL,
			Timeout:           cfg.Source.Timeout,
			UserAgent:         cfg.Source.UserAgent,
			RequestsPerSecond: cfg.Source.RequestsPerSecond,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("source client: %w", err)
		}
		src = client
	}

	a.Service = ingestion.NewService(src, question.NewValidator(), a.Repo, ingestion.Options{
		MaxPages: cfg.Ingestion.MaxPages,
		Archiver: archiver,
		Runs:     runs,
	})
	a.Verifier = a.buildVerifier(ctx)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Repository, runlog.Store, error) {
	cfg := a.Cfg
	log := logger.Named("app")
	memRuns := runlog.NewMemoryStore(cfg.Ingestion.RunsKept)

	switch cfg.Store.Backend {
	case config.BackendMongo:
		client, err := database.Retry(ctx, "mongodb", connectAttempts, time.Second, func(ctx context.Context) (*mongo.Client, error) {
			return database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		})
		if err != nil {
			return nil, nil, err
		}
		a.mongo = client
		a.closers = append(a.closers, func() { _ = client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB.Database)
		repo, err := repository.NewMongoRepo(ctx, db.Collection("questions"))
		if err != nil {
			return nil, nil, err
		}
		runs, err := runlog.NewMongoStore(ctx, db.Collection("ingestion_runs"))
		if err != nil {
			return nil, nil, err
		}
		log.Infof("using mongodb store %s", cfg.MongoDB.Database)
		return repo, runs, nil

	case config.BackendPostgres:
		pool, err := database.Retry(ctx, "postgres", connectAttempts, time.Second, func(ctx context.Context) (*pgxpool.Pool, error) {
			return database.ConnectPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns, 10*time.Second)
		})
		if err != nil {
			return nil, nil, err
		}
		a.pg = pool
		a.closers = append(a.closers, pool.Close)
		repo := repository.NewPostgresRepo(pool)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		log.Infof("using postgres store")
		return repo, memRuns, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		a.sqlite = db
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		repo, err := repository.NewSQLRepo(db)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("using sqlite store %s", cfg.SQLite.Path)
		return repo, memRuns, nil

	default:
		log.Warnf("using in-memory store; questions are lost on restart")
		return repository.NewMemoryRepo(), memRuns, nil
	}
}

// cachePrefix scopes cache keys to the backing store. The in-memory store
// starts empty on every boot, so it gets keys of its own per process.
func cachePrefix(backend string) string {
	switch backend {
	case config.BackendMongo, config.BackendPostgres, config.BackendSQLite:
		return "quizbank:" + backend + ":"
	default:
		return "quizbank:mem:" + uuid.NewString() + ":"
	}
}

// buildVerifier returns nil when no authentication is configured.
func (a *App) buildVerifier(ctx context.Context) middleware.Verifier {
	cfg := a.Cfg
	log := logger.Named("app")
	var chain tokens.FirstOf

	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID)
		if err != nil {
			log.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, tokens.NewHS256Verifier(cfg.JWT.Secret))
	}
	if len(chain) == 0 && cfg.JWT.AllowInsecure {
		log.Warnf("enabling insecure token verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	}

	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}

// Ready reports the health of each configured dependency.
func (a *App) Ready(ctx context.Context) (bool, map[string]bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	deps := map[string]bool{}

	switch {
	case a.mongo != nil:
		deps["store"] = a.mongo.Ping(ctx, nil) == nil
	case a.pg != nil:
		deps["store"] = a.pg.Ping(ctx) == nil
	case a.sqlite != nil:
		sqlDB, err := a.sqlite.DB()
		deps["store"] = err == nil && sqlDB.PingContext(ctx) == nil
	default:
		deps["store"] = a.Repo != nil
	}
	if a.Cfg.Redis.Addr() != "" {
		deps["redis"] = a.Redis != nil && a.Redis.Ping(ctx).Err() == nil
	}
	if a.Cfg.Keycloak.URL != "" || a.Cfg.JWT.Secret != "" {
		deps["auth"] = a.Verifier != nil
	}

	ready := true
	for _, ok := range deps {
		ready = ready && ok
	}
	return ready, deps
}

// Uptime is the time since Build.
func (a *App) Uptime() time.Duration { return time.Since(a.started) }

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func secondsOr1(n int) time.Duration {
	if n <= 0 {
		n = 1
	}
	return time.Duration(n) * time.Second
}
