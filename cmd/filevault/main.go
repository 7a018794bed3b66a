// Точка входа FileVault — сервис хранения файлов с метаданными.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует хранилище, сервисный слой и API handlers,
// запускает мониторинг зависимостей (topologymetrics),
// HTTP-сервер с API-key middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofilevault/internal/api/handlers"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/config"
	"github.com/bigkaa/gofilevault/internal/database"
	"github.com/bigkaa/gofilevault/internal/repository"
	"github.com/bigkaa/gofilevault/internal/server"
	"github.com/bigkaa/gofilevault/internal/service"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
	"github.com/bigkaa/gofilevault/internal/storage/pathguard"
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
	logger.Info("FileVault запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_dir", cfg.StorageDir),
	)

	if os.Getenv("FV_DEPHEALTH_GROUP") == "" {
		logger.Warn("FV_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

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
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Файловое хранилище: корневая директория и валидатор путей
	store, err := filestore.New(cfg.StorageDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	guard, err := pathguard.New(cfg.StorageDir)
	if err != nil {
		logger.Error("Ошибка инициализации pathguard", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repository и сервисный слой
	fileRepo := repository.NewFileMetaRepository(pool)
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	filesSvc := service.NewFileService(fileRepo, store, guard, cache, logger)

	// 7. Readiness checker и handlers
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)
	filesHandler := handlers.NewFilesHandler(filesSvc, cfg.MaxFileSize, logger)

	// 8. API-key middleware
	auth := middleware.NewAPIKeyAuth(cfg.APIKeyHeader, cfg.APIKey, logger)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"filevault",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
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

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, filesHandler, healthHandler, auth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("FileVault остановлен")
}
