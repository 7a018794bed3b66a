// Пакет server — HTTP-сервер FileVault с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на внешнем балансировщике.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gofilevault/internal/api/handlers"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/config"
)

// Server — HTTP-сервер FileVault.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// auth — middleware аутентификации по API-ключу
// (может быть nil для тестирования без auth).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	filesHandler *handlers.FilesHandler,
	healthHandler *handlers.HealthHandler,
	auth *middleware.APIKeyAuth,
) *Server {
	router := NewRouter(logger, filesHandler, healthHandler, auth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер с middleware и маршрутами.
// Вынесен отдельно для использования в httptest.
//
// Health и metrics — без аутентификации: их опрашивают Kubernetes
// и Prometheus напрямую.
func NewRouter(
	logger *slog.Logger,
	filesHandler *handlers.FilesHandler,
	healthHandler *handlers.HealthHandler,
	auth *middleware.APIKeyAuth,
) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints
	router.Get("/health", healthHandler.Health)
	router.Get("/health/live", healthHandler.HealthLive)
	router.Get("/health/ready", healthHandler.HealthReady)
	router.Get("/metrics", healthHandler.GetMetrics)

	// Файловые endpoints — под API-ключом
	router.Route("/files", func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Middleware())
		}

		r.Post("/", filesHandler.UploadFile)
		r.Get("/", filesHandler.ListFiles)
		r.Get("/{file_id}", filesHandler.GetFile)
		r.Put("/{file_id}/metadata", filesHandler.UpdateMetadata)
		r.Get("/{file_id}/download", filesHandler.DownloadFile)
		r.Delete("/{file_id}", filesHandler.DeleteFile)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
