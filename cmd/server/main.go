package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fathomdata/batchsource/internal/api"
	"github.com/fathomdata/batchsource/internal/api/handlers"
	"github.com/fathomdata/batchsource/internal/cache"
	"github.com/fathomdata/batchsource/internal/catalog"
	"github.com/fathomdata/batchsource/internal/config"
	"github.com/fathomdata/batchsource/internal/connector"
	"github.com/fathomdata/batchsource/internal/storage"
	"github.com/fathomdata/batchsource/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if cfg.Server.Mode == "debug" {
		logger.SetLevel("debug")
		gin.SetMode(gin.DebugMode)
	} else {
		logger.SetLevel("info")
		gin.SetMode(gin.ReleaseMode)
	}

	connectors := buildConnectors(cfg)
	if len(connectors) == 0 {
		logger.Log.Fatal().Msg("no storage backend configured")
	}

	discoveryCache, err := cache.NewDiscoveryCache(cfg.Cache)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize discovery cache")
	}

	var runs *catalog.Repository
	if cfg.Catalog.Enabled {
		db, err := catalog.NewDB(&cfg.Catalog)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to catalog database")
		}
		defer db.Close()
		runs = catalog.NewRepository(db.DB)
	}

	discoverHandler := handlers.NewDiscoverHandler(connectors, discoveryCache, runs)
	router := api.NewRouter(discoverHandler, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

// buildConnectors wires one connector per configured backend. Backends
// without credentials are simply absent from the map.
func buildConnectors(cfg *config.Config) map[string]*connector.Connector {
	opts := []connector.Option{
		connector.WithLogger(logger.Log),
		connector.WithParallelism(cfg.Discovery.Parallelism),
		connector.WithTimeout(time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second),
	}

	connectors := make(map[string]*connector.Connector)

	if cfg.S3.Endpoint != "" {
		s3, err := storage.NewS3Lister(storage.S3Config{
			Endpoint:    cfg.S3.Endpoint,
			AccessKey:   cfg.S3.AccessKey,
			SecretKey:   cfg.S3.SecretKey,
			Region:      cfg.S3.Region,
			UseSSL:      cfg.S3.UseSSL,
			PageTimeout: time.Duration(cfg.S3.PageTimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize s3 lister")
		}
		connectors[s3.Name()] = connector.New(s3, opts...)
	}

	if cfg.Azure.ConnectionString != "" {
		azure, err := storage.NewAzureLister(cfg.Azure.ConnectionString,
			time.Duration(cfg.Azure.PageTimeoutSeconds)*time.Second)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize azure lister")
		}
		connectors[azure.Name()] = connector.New(azure, opts...)
	}

	if cfg.Drive.CredentialsJSON != "" {
		drive, err := storage.NewDriveLister(cfg.Drive.CredentialsJSON,
			time.Duration(cfg.Drive.PageTimeoutSeconds)*time.Second)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize drive lister")
		}
		connectors[drive.Name()] = connector.New(drive, opts...)
	}

	return connectors
}
