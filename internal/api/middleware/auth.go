// auth.go — middleware аутентификации по общему секрету (API-ключ).
// Ключ передаётся в настраиваемом заголовке (по умолчанию X-API-Key)
// и сравнивается с FV_API_KEY за константное время.
// Публичные endpoints (health, metrics) — без аутентификации.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
)

// APIKeyAuth — middleware для аутентификации по API-ключу.
type APIKeyAuth struct {
	header string
	key    string
	logger *slog.Logger
}

// NewAPIKeyAuth создаёт middleware аутентификации.
// header — имя заголовка с ключом, key — ожидаемое значение.
func NewAPIKeyAuth(header, key string, logger *slog.Logger) *APIKeyAuth {
	return &APIKeyAuth{
		header: header,
		key:    key,
		logger: logger.With(slog.String("component", "api_key_auth")),
	}
}

// Middleware возвращает HTTP middleware, проверяющий API-ключ.
// Отсутствующий или неверный ключ — 403 FORBIDDEN.
func (a *APIKeyAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(a.header)
			if provided == "" {
				a.logger.Debug("Запрос без API-ключа",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Forbidden(w, "Отсутствует заголовок "+a.header)
				return
			}

			// Сравнение за константное время, чтобы не раскрывать длину
			// совпадающего префикса по времени ответа.
			if subtle.ConstantTimeCompare([]byte(provided), []byte(a.key)) != 1 {
				a.logger.Warn("Неверный API-ключ",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Forbidden(w, "Неверный API-ключ")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
