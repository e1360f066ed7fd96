// Точка входа Export Module — модуль массовой выгрузки системы Artstore.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// помечает прерванные рестартом задания, создаёт сервисный слой и API handlers,
// запускает фоновые компоненты (worker pool, result poller, expiry, topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/export-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/export-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/export-module/internal/catalog"
	"github.com/bigkaa/goartstore/export-module/internal/config"
	"github.com/bigkaa/goartstore/export-module/internal/database"
	"github.com/bigkaa/goartstore/export-module/internal/queue"
	"github.com/bigkaa/goartstore/export-module/internal/repository"
	"github.com/bigkaa/goartstore/export-module/internal/server"
	"github.com/bigkaa/goartstore/export-module/internal/service"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
	"github.com/bigkaa/goartstore/export-module/internal/worker"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Export Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Scratch-хранилище сборки архивов
	scratchStore, err := scratch.New(cfg.ScratchDir)
	if err != nil {
		logger.Error("Ошибка инициализации scratch-хранилища",
			slog.String("dir", cfg.ScratchDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 6. Объектное хранилище и брокер очередей
	objects, err := objectstore.NewS3Store(ctx, cfg)
	if err != nil {
		logger.Error("Ошибка создания S3-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	broker, err := queue.NewSQSQueue(ctx, cfg)
	if err != nil {
		logger.Error("Ошибка создания SQS-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Repositories и каталог ассетов
	jobRepo := repository.NewJobRepository(pool)
	assetCatalog := catalog.New(pool, cfg.CatalogCacheSize, cfg.CatalogCacheTTL)

	// 8. Workflow-компоненты
	pending := queue.NewPendingTable()
	manifests := service.NewManifestBuilder(scratchStore)
	coordinator := service.NewMultipartCoordinator(
		objects, scratchStore, manifests, broker, pending,
		cfg.ManifestBatchSize, cfg.PartConcurrency, cfg.PartTimeout,
		logger,
	)
	classifier := service.NewClassifier(assetCatalog, cfg.SmallFileThresholdBytes, logger)
	links := service.NewLinkGenerator(objects, cfg.LargeAssetConcurrency, cfg.LinkTTL, logger)
	orchestrator := service.NewOrchestrator(
		jobRepo, classifier, links, coordinator, objects, scratchStore,
		cfg.ChunkSizeBytes, cfg.JobTimeout,
		logger,
	)

	// 9. Восстановление после рестарта: задания, прерванные посреди
	// workflow, переводятся в failed до приёма нового трафика.
	if err := orchestrator.RecoverInterrupted(ctx); err != nil {
		logger.Error("Ошибка восстановления прерванных заданий", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Сервисный слой API
	jobsSvc := service.NewJobService(jobRepo, orchestrator, objects, cfg.JobTTL, cfg.LinkTTL, logger)

	// 11. Фоновые компоненты: worker pool частей, poller результатов, expiry
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	workerPool := worker.NewPool(broker, scratchStore, objects, cfg.WorkerCount, logger)
	workerPool.Start(bgCtx)

	poller := queue.NewResultPoller(broker, pending, logger)
	poller.Start(bgCtx)

	expiry := service.NewExpiryService(jobRepo, scratchStore, objects, cfg.ExpiryInterval, logger)
	expiry.Start(bgCtx)

	// 11.1 topologymetrics — мониторинг зависимостей (PostgreSQL + S3)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"export-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.S3Endpoint,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Readiness checkers (PostgreSQL + S3 + SQS)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, objects, broker)

	// 13. API handler (реализует generated.ServerInterface)
	apiHandler := handlers.NewAPIHandler(healthHandler, jobsSvc, logger)

	// 14. JWT middleware
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled {
		jwtAuth, err = middleware.NewJWTAuth(
			cfg.JWKSURL,
			cfg.JWKSCACertPath,
			cfg.JWTIssuer,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer jwtAuth.Close()
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("Аутентификация выключена (EM_AUTH_ENABLED=false) — только локальная разработка")
	}

	// 15. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 16. Graceful shutdown фоновых компонентов.
	// Сначала дожидаемся выполняющихся заданий, потом останавливаем
	// worker pool и poller: задания зависят от них.
	logger.Info("Останавливаем фоновые компоненты...")

	orchestrator.Wait()

	bgCancel()
	workerPool.Wait()
	poller.Wait()
	expiry.Wait()

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Export Module остановлен")
}
