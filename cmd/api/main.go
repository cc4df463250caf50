package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"img2img/internal/adapter/repo"
	"img2img/internal/domain"
	"img2img/internal/domain/modelcfg"
	"img2img/internal/http/handlers"
	httpapi "img2img/internal/http/httpapi"
	"img2img/internal/imagegen"
	"img2img/internal/infra"
	"img2img/internal/infra/credentials"
	"img2img/internal/infra/geoip"
	"img2img/internal/middleware"
	"img2img/internal/providers/replicate"
	"img2img/internal/storage"
	"img2img/internal/tasks"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()

	registry, err := modelcfg.LoadRegistry(cfg.ModelConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ModelConfigPath).Msg("failed to load model config")
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}
	blobs := storage.NewCachedStore(files)

	// Task store: Postgres when configured, otherwise process memory.
	var taskRepo domain.TaskRepository
	apiToken := cfg.ReplicateAPIToken
	if cfg.UsesDatabase() {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, logger)
		taskRepo = repo.NewTaskRepository(runner)

		if apiToken == "" {
			apiToken, err = credentials.NewStore(runner).ReplicateAPIToken(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("failed to load stored replicate token")
			}
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set, tasks are kept in memory")
		taskRepo = repo.NewMemoryTaskRepository()
	}
	if apiToken == "" {
		logger.Warn().Msg("no replicate api token configured, generation requests will fail")
	}

	client := replicate.NewClient(replicate.Options{
		APIToken:     apiToken,
		BaseURL:      cfg.ReplicateBaseURL,
		Logger:       logger,
		PollInterval: cfg.ReplicatePollInterval,
		Timeout:      cfg.ReplicateTimeout,
		WaitSeconds:  cfg.ReplicateWaitSeconds,
	})
	manager := tasks.NewManager(taskRepo, logger)
	orchestrator := imagegen.NewOrchestrator(client, manager, blobs, registry, logger,
		imagegen.WithAttemptTimeout(cfg.ReplicateTimeout))

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
		defer resolver.Close()
	}

	app := &handlers.App{
		Config:    cfg,
		Logger:    logger,
		Tasks:     manager,
		Generator: orchestrator,
		Blobs:     blobs,
		Registry:  registry,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
		CountryLookup:  countryLookup,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Int("models", len(registry.List())).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// In-flight generations may take minutes; allow them the full write timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
