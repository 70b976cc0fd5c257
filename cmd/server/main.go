// Command server runs the document translation HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"doc-translator/internal/cache"
	"doc-translator/internal/config"
	"doc-translator/internal/httpapi"
	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/queue"
	"doc-translator/internal/reconstruct"
	"doc-translator/internal/storage"
	"doc-translator/internal/store"
	"doc-translator/internal/translate"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := logger.Init(logger.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	manager, err := config.NewManager(configPath)
	if err != nil {
		return err
	}
	if err := manager.Load(); err != nil {
		return err
	}
	cfg := manager.Get()

	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("no OpenAI API key configured (set %s)", config.EnvOpenAIAPIKey)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	jobRepo := store.NewGormJobRepository(db)
	chunkRepo := store.NewGormChunkRepository(db)

	objects, err := storage.NewLocalStore(cfg.StorageRoot)
	if err != nil {
		return err
	}

	provider := translate.NewRetryableProvider(translate.NewOpenAIProvider(translate.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}), translate.DefaultRetryConfig())

	var translationCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr, TTL: 30 * 24 * 3600})
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", logger.Err(err))
		} else {
			translationCache = redisCache
			defer redisCache.Close()
		}
	}

	var docs translate.DocumentProvider
	if cfg.DocumentAPIURL != "" {
		docs = translate.NewHTTPDocumentProvider(cfg.DocumentAPIURL, cfg.DocumentAPIKey)
	}

	builder := reconstruct.NewBuilder(objects, docs)

	queueCfg := queue.DefaultConfig()
	queueCfg.MaxRetries = cfg.MaxRetries
	queueCfg.Model = cfg.OpenAIModel
	proc := queue.NewProcessor(jobRepo, chunkRepo, provider, translationCache, builder, queueCfg)

	svc := jobs.NewService(jobRepo, chunkRepo, objects, provider, builder, cfg.MaxChunkChars, cfg.MaxUploadBytes)
	api := httpapi.NewServer(svc, proc, cfg.TickSecret, cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.Handler(),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
