// Package app wires the application together: storage, cache tiers,
// providers, cover resolution, background workers, and the HTTP API.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"bookvault/internal/bookcache"
	"bookvault/internal/cache"
	"bookvault/internal/circuitbreaker"
	"bookvault/internal/common/logging"
	"bookvault/internal/config"
	"bookvault/internal/covers"
	"bookvault/internal/editions"
	"bookvault/internal/events"
	"bookvault/internal/handlers"
	"bookvault/internal/locks"
	"bookvault/internal/maintenance"
	"bookvault/internal/middleware"
	"bookvault/internal/objectstore"
	"bookvault/internal/objectstore/disk"
	"bookvault/internal/objectstore/s3"
	"bookvault/internal/providers"
	"bookvault/internal/providers/googlebooks"
	"bookvault/internal/providers/openlibrary"
	"bookvault/internal/ratelimit"
	"bookvault/internal/redis"
	"bookvault/internal/service"
	"bookvault/internal/storage"
	"bookvault/internal/workers"

	_ "bookvault/internal/storage/postgres"
	_ "bookvault/internal/storage/sqlite"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Locks       *locks.Manager
	Events      events.Publisher
	Pool        *workers.Pool
	Providers   *providers.Registry
	Tiered      *bookcache.TieredCache

	Books     *service.BookService
	Search    *service.SearchService
	Recommend *service.RecommendationService
	Covers    *service.CoverService

	Scheduler *maintenance.Scheduler
	Logger    logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// The distributed tier is optional; lookups fall through to the
		// store and providers without it.
		app.Logger.Warn("Redis initialization failed, continuing without distributed cache",
			logging.Err(err))
	}

	app.Pool = workers.NewPool(cfg.Workers(), cfg.QueueSize(), app.Logger)

	app.initializeProviders()
	app.initializeBookCache()

	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	if err := app.initializeMaintenance(); err != nil {
		return nil, err
	}

	return app, nil
}

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", app.Config.PostgresHost),
			logging.String("database", app.Config.PostgresDB))
	default:
		app.Logger.Info("Database: SQLite",
			logging.String("path", app.Config.DatabasePath))
	}

	store, err := storage.NewStorage(app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.Storage = store
	return nil
}

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured")
		return nil
	}

	redisDB, _ := strconv.Atoi(app.Config.RedisDB)
	poolSize, _ := strconv.Atoi(app.Config.RedisPoolSize)

	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       redisDB,
		PoolSize: poolSize,
	})
	if err != nil {
		return err
	}
	app.RedisClient = client
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))

	manager, err := locks.NewManager(client)
	if err != nil {
		return err
	}
	app.Locks = manager
	return nil
}

func (app *App) initializeProviders() {
	limiter := ratelimit.NewRegistry(app.Config.ProviderRPS(), 1)
	registry := providers.NewRegistry(app.Logger)

	registry.Register(googlebooks.NewClient(googlebooks.Options{
		APIKey:  app.Config.GoogleBooksAPIKey,
		Limiter: limiter,
		Breaker: circuitbreaker.New("googlebooks", circuitbreaker.ProviderConfig, app.Logger),
		Logger:  app.Logger,
	}))
	registry.Register(openlibrary.NewClient(openlibrary.Options{
		Limiter: limiter,
		Breaker: circuitbreaker.New("openlibrary", circuitbreaker.ProviderConfig, app.Logger),
		Logger:  app.Logger,
	}))

	app.Providers = registry
}

func (app *App) initializeBookCache() {
	app.Tiered = bookcache.New(bookcache.Options{
		RedisClient: app.RedisClient,
		Store:       app.Storage,
		Providers:   app.Providers,
		Resolver:    editions.NewResolver(app.Storage, app.Logger),
		Linker:      editions.NewLinker(app.Storage, app.Logger),
		Pool:        app.Pool,
		Locks:       app.Locks,
		Logger:      app.Logger,
		MemoryTTL:   app.Config.MemoryTTL(),
		RedisTTL:    app.Config.RedisTTL(),
	})
}

func (app *App) initializeServices() error {
	app.Books = service.NewBookService(app.Tiered, app.Storage, app.Logger)
	app.Search = service.NewSearchService(app.Storage, app.Providers, app.Pool, app.Tiered.PersistAsync, app.Logger)
	// Recommendation ID lists go through both cache tiers when Redis is
	// up, so warm lists survive a restart and are shared across
	// instances. Without Redis the service falls back to a local cache.
	var recCache cache.Cache
	if app.RedisClient != nil {
		recCache = cache.NewTwoTierCache(5*time.Minute, time.Minute, app.RedisClient, "rec:")
	}
	app.Recommend = service.NewRecommendationService(app.Books, app.Storage, recCache, app.Logger)

	if app.RedisClient != nil {
		app.Events = events.NewRedisPublisher(app.RedisClient, app.Logger)
	} else {
		app.Events = events.NoopPublisher{}
	}

	diskStore, err := disk.NewStore(app.Config.CoverCacheDir)
	if err != nil {
		return fmt.Errorf("failed to initialize cover cache dir: %w", err)
	}

	var s3Store objectstore.Store
	sources := make([]covers.Source, 0, 5)
	if app.Config.S3Enabled {
		store, err := s3.NewStore(context.Background(), &s3.Config{
			Bucket:          app.Config.S3Bucket,
			Region:          app.Config.S3Region,
			Endpoint:        app.Config.S3Endpoint,
			AccessKeyID:     app.Config.S3AccessKeyID,
			SecretAccessKey: app.Config.S3SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 store: %w", err)
		}
		s3Store = store
		sources = append(sources, covers.NewStoreSource("s3", s3Store))
	}
	sources = append(sources, covers.NewStoreSource("disk", diskStore))

	gbClient, _ := app.Providers.Get("googlebooks")
	if gb, ok := gbClient.(*googlebooks.Client); ok {
		sources = append(sources, covers.NewGoogleBooksSource(gb))
	}
	olClient, _ := app.Providers.Get("openlibrary")
	if ol, ok := olClient.(*openlibrary.Client); ok {
		sources = append(sources, covers.NewOpenLibrarySource(ol))
	}
	sources = append(sources, covers.NewLongitoodSource(""))

	resolver := covers.NewResolver(sources, app.Config.PlaceholderImageURL, app.Config.MinHighResWidth(), app.Logger)

	app.Covers = service.NewCoverService(service.CoverOptions{
		Books:           app.Books,
		Store:           app.Storage,
		Resolver:        resolver,
		S3:              s3Store,
		Disk:            diskStore,
		Pool:            app.Pool,
		Events:          app.Events,
		PlaceholderURL:  app.Config.PlaceholderImageURL,
		MinHighResWidth: app.Config.MinHighResWidth(),
		Logger:          app.Logger,
	})
	return nil
}

func (app *App) initializeMaintenance() error {
	if !app.Config.MaintenanceEnabled {
		app.Logger.Info("Maintenance: Disabled")
		return nil
	}

	scheduler, err := maintenance.NewScheduler(maintenance.Options{
		Store:    app.Storage,
		Locks:    app.Locks,
		Logger:   app.Logger,
		StaleAge: app.Config.StaleAge(),
		Schedule: app.Config.MaintenanceSchedule,
		RetryCovers: func(ctx context.Context) {
			books, err := app.Storage.FindBooksMissingCovers(ctx, 50)
			if err != nil {
				app.Logger.Warn("Cover retry scan failed", logging.Err(err))
				return
			}
			for _, book := range books {
				if _, err := app.Covers.ResolveCover(ctx, book.ID, covers.PrefAny); err != nil {
					app.Logger.Warn("Cover retry failed",
						logging.String("book_id", book.ID), logging.Err(err))
				}
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize maintenance scheduler: %w", err)
	}
	app.Scheduler = scheduler
	scheduler.Start()
	return nil
}

// Router builds the HTTP routing table.
func (app *App) Router() *mux.Router {
	h := handlers.New(app.Books, app.Search, app.Recommend, app.Covers, app.healthStatus, app.Logger)
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	h.RegisterRoutes(router)
	return router
}

func (app *App) healthStatus() map[string]string {
	status := map[string]string{"status": "ok", "storage": "ok"}
	if err := app.Storage.Health(); err != nil {
		status["status"] = "degraded"
		status["storage"] = err.Error()
	}
	if app.RedisClient != nil {
		status["redis"] = "ok"
		if err := app.RedisClient.Health(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		}
	}
	return status
}

// Shutdown drains background work and releases resources.
func (app *App) Shutdown(ctx context.Context) error {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	if app.Pool != nil {
		app.Pool.Stop(ctx)
	}
	if app.Storage != nil {
		_ = app.Storage.Close()
	}
	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}
	return nil
}
