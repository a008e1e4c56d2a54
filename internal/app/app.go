// Package app is the composition root: it wires storage, domain services,
// and background runners into one lifecycle-managed Application.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/httpapi"
	"github.com/docuindex/engine/internal/app/services/activity"
	"github.com/docuindex/engine/internal/app/services/apikeys"
	"github.com/docuindex/engine/internal/app/services/canonicalidentity"
	"github.com/docuindex/engine/internal/app/services/embedding"
	"github.com/docuindex/engine/internal/app/services/indexer"
	"github.com/docuindex/engine/internal/app/services/indexer/textproc"
	"github.com/docuindex/engine/internal/app/services/locks"
	"github.com/docuindex/engine/internal/app/services/quarantine"
	"github.com/docuindex/engine/internal/app/services/retention"
	"github.com/docuindex/engine/internal/app/services/roles"
	"github.com/docuindex/engine/internal/app/services/rootregistry"
	"github.com/docuindex/engine/internal/app/services/runs"
	"github.com/docuindex/engine/internal/app/services/scan"
	"github.com/docuindex/engine/internal/app/services/scheduler"
	"github.com/docuindex/engine/internal/app/services/search"
	"github.com/docuindex/engine/internal/app/services/virtualroots"
	"github.com/docuindex/engine/internal/app/storage/postgres"
	"github.com/docuindex/engine/internal/app/system"
	"github.com/docuindex/engine/internal/config"
)

// Application ties every domain service together and manages their
// lifecycle through a system.Manager.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	DB *sql.DB

	Indexer      *indexer.Service
	Search       *search.Service
	Locks        *locks.Service
	RootRegistry *rootregistry.Service
	Scan         *scan.Service
	Scheduler    *scheduler.Scheduler
	Retention    *retention.Orchestrator
	Runs         *runs.Service
	APIKeys      *apikeys.Service
	Roles        *roles.Stack
	Activity     *activity.Service
	Quarantine   *quarantine.Service
	VirtualRoots *virtualroots.Service
	Canonical    *canonicalidentity.Service
	Embedding    *embedding.Service
	HTTP         *httpapi.Service
}

// New builds every domain service in dependency order on the given,
// already opened and migrated database handle, and registers the background runners and HTTP
// server with a system.Manager. The returned Application is not started;
// call Start to begin serving.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewFromEnv("docuindex")
	}

	chunkStore := postgres.NewChunkStore(db)
	rootStore := postgres.NewRootStore(db)
	lockStore := postgres.NewLockStore(db)
	runStore := postgres.NewRunStore(db)
	activityStore := postgres.NewActivityStore(db)
	virtualRootStore := postgres.NewVirtualRootStore(db)
	samlStore := postgres.NewSAMLSessionStore(db)
	apiKeyStore := postgres.NewAPIKeyStore(db)
	roleStore := postgres.NewRoleStore(db)
	userStore := postgres.NewUserStore(db)

	manager := system.NewManager()

	rootRegistry := rootregistry.New(rootStore)
	canonical := canonicalidentity.New(chunkStore)
	activitySvc := activity.New(activityStore)
	lockSvc := locks.New(lockStore, log, activitySvc)
	quarantineSvc := quarantine.New(chunkStore, log)
	runsSvc := runs.New(runStore)
	virtualRootSvc := virtualroots.New(virtualRootStore)
	rolesStack := roles.NewStack(roleStore, cfg.RolesFilePath)

	pepper := []byte(cfg.APIKeyPepper)
	apiKeySvc := apikeys.New(apiKeyStore, pepper)

	embeddingCache, err := buildEmbeddingCache(cfg, manager)
	if err != nil {
		return nil, fmt.Errorf("build embedding cache: %w", err)
	}
	embeddingModel := embedding.NewHashModel(cfg.EmbeddingDims)
	embeddingSvc := embedding.New(embeddingModel, embeddingCache, log, embedding.WithRateLimit(50, 10))

	textProcessor := textproc.New(cfg.IndexerChunkSize)
	indexerSvc := indexer.New(chunkStore, textProcessor, embeddingSvc, log, cfg.IndexerRingSize)

	searchSvc := search.New(chunkStore, embeddingSvc)

	filePolicy := scan.DefaultExtensionPolicy()
	scanSvc := scan.New(indexerSvc, lockSvc, quarantineSvc, canonical, runsSvc, activitySvc, filePolicy, log)

	retentionPolicy := retention.Policy{
		ActivityRetentionDays:     cfg.ActivityRetentionDays,
		QuarantineRetentionDays:   cfg.QuarantineRetentionDays,
		IndexingRunsRetentionDays: cfg.IndexingRunsRetentionDays,
		CleanupSAMLSessions:       true,
		StaleRunTimeout:           time.Duration(cfg.StaleRunTimeoutSeconds) * time.Second,
	}
	retentionOrchestrator := retention.New(activitySvc, quarantineSvc, runsSvc, samlStore,
		retentionPolicy, cfg.RetentionMaintenanceIntervalSeconds, log)

	schedulerSvc := scheduler.New(db, rootRegistry, scanSvc, quarantineSvc,
		cfg.FailureBackoffSeconds, cfg.QuarantinePurgeIntervalSeconds, nil, log)

	httpServices := httpapi.Services{
		Indexer:      indexerSvc,
		Search:       searchSvc,
		Locks:        lockSvc,
		RootRegistry: rootRegistry,
		Scan:         scanSvc,
		Scheduler:    schedulerSvc,
		Retention:    retentionOrchestrator,
		Runs:         runsSvc,
		APIKeys:      apiKeySvc,
		Roles:        rolesStack,
		VirtualRoots: virtualRootSvc,
		Activity:     activitySvc,
	}
	httpCfg := httpapi.Config{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		RequireAuth: cfg.APIRequireAuth,
		DemoMode:    cfg.DemoMode,
		CORSOrigins: cfg.CORSOrigins,
	}
	httpService := httpapi.NewService(httpServices, apiKeySvc, userStore, httpCfg, log)

	if err := manager.Register(retentionOrchestrator); err != nil {
		return nil, fmt.Errorf("register retention orchestrator: %w", err)
	}
	if cfg.ServerSchedulerEnabled {
		if err := manager.Register(schedulerSvc); err != nil {
			return nil, fmt.Errorf("register server scheduler: %w", err)
		}
	}
	if err := manager.Register(httpService); err != nil {
		return nil, fmt.Errorf("register http api: %w", err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		DB:           db,
		Indexer:      indexerSvc,
		Search:       searchSvc,
		Locks:        lockSvc,
		RootRegistry: rootRegistry,
		Scan:         scanSvc,
		Scheduler:    schedulerSvc,
		Retention:    retentionOrchestrator,
		Runs:         runsSvc,
		APIKeys:      apiKeySvc,
		Roles:        rolesStack,
		Activity:     activitySvc,
		Quarantine:   quarantineSvc,
		VirtualRoots: virtualRootSvc,
		Canonical:    canonical,
		Embedding:    embeddingSvc,
		HTTP:         httpService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(svc system.Service) error {
	return a.manager.Register(svc)
}

// Start begins every registered background runner and the HTTP server.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops every registered service in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

func buildEmbeddingCache(cfg *config.Config, manager *system.Manager) (embedding.Cache, error) {
	if cfg.RedisAddr == "" {
		return embedding.NewLRUCache(cfg.EmbeddingCacheSize)
	}
	cache := embedding.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisCacheTTL)
	if err := manager.Register(redisCacheCloser{cache}); err != nil {
		return nil, err
	}
	return cache, nil
}

// redisCacheCloser closes the embedding Redis connection on manager
// shutdown; it has nothing to start.
type redisCacheCloser struct {
	cache *embedding.RedisCache
}

func (redisCacheCloser) Name() string { return "embedding-redis-cache" }

func (redisCacheCloser) Start(context.Context) error { return nil }

func (c redisCacheCloser) Stop(context.Context) error { return c.cache.Close() }
