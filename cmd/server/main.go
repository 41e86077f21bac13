package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dfryer1193/imgcrud/gallery/application"
	"github.com/dfryer1193/imgcrud/gallery/cache"
	"github.com/dfryer1193/imgcrud/gallery/domain"
	"github.com/dfryer1193/imgcrud/gallery/persistence"
	"github.com/dfryer1193/imgcrud/internal/config"
	"github.com/dfryer1193/imgcrud/internal/logging"
	"github.com/dfryer1193/imgcrud/internal/metrics"
	"github.com/dfryer1193/imgcrud/internal/middleware"
	"github.com/dfryer1193/imgcrud/internal/rest"
	"github.com/dfryer1193/imgcrud/shared/db/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const connectTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open image store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("Failed to close image store")
		}
	}()

	reg := metrics.NewRegistry()
	imageCache := cache.New(store, cfg.Cache.TTL,
		cache.WithLoadTimeout(cfg.Cache.LoadTimeout),
		cache.WithMetrics(metrics.NewCacheMetrics(reg)),
	)
	imageService := application.NewImageService(store, imageCache)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	router.Use(middleware.LoggingMiddleware(reg))
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	rest.NewApi(router, imageService, reg, cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("driver", cfg.Store.Driver).
			Dur("cache_ttl", imageCache.TTL()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
	}

	log.Info().Msg("Server stopped")
}

// openStore builds the image store selected by cfg and returns a func that
// releases it.
func openStore(cfg config.Config) (domain.ImageStore, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		client, err := persistence.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		store := persistence.NewMongoImageStore(client, cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		closeFn := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			return client.Disconnect(ctx)
		}
		return store, closeFn, nil

	default:
		database := sqlite.NewSQLiteDB(&cfg.SQLite)
		if err := database.Connect(); err != nil {
			return nil, nil, err
		}
		return persistence.NewSQLiteImageStore(database.DB()), database.Close, nil
	}
}
