package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/config"
	"obstacle-detection-system/internal/infrastructure/migrations"
	"obstacle-detection-system/internal/infrastructure/repositories"
	"obstacle-detection-system/internal/infrastructure/storage"
	"obstacle-detection-system/internal/ports/api"
	"obstacle-detection-system/internal/ports/ws"
	"obstacle-detection-system/pkg/fusion"
)

// runCacheSize кількість завершених запусків у кеші
const runCacheSize = 1024

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	env, err := config.LoadServiceConfig()
	if err != nil {
		logger.Fatal("error loading environment", zap.Error(err))
	}

	var (
		addr           = flag.String("addr", env.HTTPAddr, "HTTP server address")
		dbURL          = flag.String("db", env.DatabaseURL, "Database URL")
		minioEndpoint  = flag.String("minio-endpoint", env.MinioEndpoint, "MinIO server endpoint")
		minioAccessKey = flag.String("minio-access-key", env.MinioAccessKey, "MinIO access key")
		minioSecretKey = flag.String("minio-secret-key", env.MinioSecretKey, "MinIO secret key")
		minioBucket    = flag.String("minio-bucket", env.MinioBucket, "MinIO bucket for detection sets and results")
		minioUseSSL    = flag.Bool("minio-use-ssl", env.MinioUseSSL, "Use SSL for MinIO connection")
		fusionConfig   = flag.String("config", env.FusionConfig, "Fusion tuning JSON file")
	)
	flag.Parse()

	fusionCfg := fusion.DefaultConfig()
	if *fusionConfig != "" {
		fc, err := config.LoadFusionConfig(*fusionConfig)
		if err != nil {
			logger.Fatal("error loading fusion config", zap.Error(err))
		}
		fusionCfg = fc.ToFusionConfig()
	}

	// Підключення до БД
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.Fatal("error connecting to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Up(db, migrations.Postgres, logger); err != nil {
		logger.Fatal("error applying migrations", zap.Error(err))
	}

	// Репозиторії та сховище
	unitRepo := repositories.NewPostgresSensorUnitRepository(db)
	runRepo := repositories.NewPostgresFusionRunRepository(db)
	objectRepo := repositories.NewPostgresFusedObjectRepository(db)
	detectionRepo := repositories.NewPostgresDetectionRepository(db)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	detectionStorage, err := storage.NewDetectionStorage(initCtx, *minioEndpoint, *minioAccessKey, *minioSecretKey, *minioBucket, *minioUseSSL, logger)
	initCancel()
	if err != nil {
		logger.Fatal("error initializing detection storage", zap.Error(err))
	}

	runCache, err := application.NewRunCache(runCacheSize)
	if err != nil {
		logger.Fatal("error creating run cache", zap.Error(err))
	}
	defer runCache.Close()

	// Сервіси
	unitService := application.NewSensorUnitService(unitRepo, logger)
	setService := application.NewDetectionSetService(detectionStorage, logger)
	fusionService := application.NewFusionService(runRepo, objectRepo, detectionRepo,
		application.WithFusionConfig(fusionCfg),
		application.WithRunCache(runCache),
		application.WithResultStorage(detectionStorage),
		application.WithDetectionSets(setService),
		application.WithServiceLogger(logger),
	)

	sensorHandler := api.NewSensorHandler(unitService, logger)
	setHandler := api.NewDetectionSetHandler(setService, logger)
	fusionHandler := api.NewFusionHandler(fusionService, logger)
	sensorWSHandler := ws.NewSensorHandler(unitService, setService, fusionService, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			// WebSocket поза Timeout: з'єднання довготривале
			r.Get("/ws/sensors", sensorWSHandler.HandleConnection)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				sensorHandler.RegisterRoutes(r)
				setHandler.RegisterRoutes(r)
				fusionHandler.RegisterRoutes(r)
			})
		})
	})

	srv := &http.Server{
		Addr:    *addr,
		Handler: r,
	}
	go func() {
		logger.Info("starting server", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("error starting server", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
		return
	}

	logger.Info("server gracefully stopped")
}
