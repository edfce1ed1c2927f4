// Package app wires configuration into a ready pipeline for the commands.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/artifact"
	"rasviz/backend/internal/cache"
	"rasviz/backend/internal/client"
	"rasviz/backend/internal/config"
	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/pipeline"
	"rasviz/backend/internal/repository"
)

// App holds the long-lived dependencies of a command
type App struct {
	Config   *config.Config
	Store    *artifact.Store
	Pipeline *pipeline.Pipeline
	DB       *repository.Database
	cache    *cache.RedisCache
}

// SetupLogger configures the global zerolog logger
func SetupLogger(cfg *config.Config) {
	// Pretty console logging in development
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}

// New builds the pipeline. The Redis cache is optional and a failed
// connection only logs a warning; a configured database must connect.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Store:  artifact.NewStore(cfg.BackendDir, cfg.FrontendDataDir),
	}

	aliases, err := ingest.LoadAliases(cfg.AliasesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load column aliases: %w", err)
	}

	pageClient := client.NewClient(cfg.UserAgent, cfg.HTTPTimeout)
	if cfg.EnableCache {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTLPages,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			a.cache = redisCache
			pageClient.WithCache(redisCache)
			log.Info().Msg("Redis page cache connected")
		}
	}

	if cfg.EnableDatabase {
		db, err := repository.NewDatabase(ctx, repository.Config{
			Host:     cfg.DatabaseHost,
			Port:     cfg.DatabasePort,
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		log.Info().Msg("Database connection established")
	}

	a.Pipeline = pipeline.New(cfg, a.Store, pageClient, aliases, a.DB)
	return a, nil
}

// Close releases the cache and database connections
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis cache")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
