package config

import (
	"log/slog"
	"testing"
	"time"
)

// minimalEnvs задаёт минимальный набор обязательных переменных окружения.
func minimalEnvs(t *testing.T) {
	t.Helper()
	t.Setenv("FV_STORAGE_DIR", "/var/lib/filevault")
	t.Setenv("FV_API_KEY", "test-secret")
	t.Setenv("FV_DB_HOST", "localhost")
	t.Setenv("FV_DB_NAME", "filevault")
	t.Setenv("FV_DB_USER", "filevault")
	t.Setenv("FV_DB_PASSWORD", "secret")
}

func TestLoad_MinimalConfig(t *testing.T) {
	minimalEnvs(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидалось 8080", cfg.Port)
	}
	if cfg.StorageDir != "/var/lib/filevault" {
		t.Errorf("StorageDir = %q, ожидалось /var/lib/filevault", cfg.StorageDir)
	}
	if cfg.APIKeyHeader != "X-API-Key" {
		t.Errorf("APIKeyHeader = %q, ожидалось X-API-Key", cfg.APIKeyHeader)
	}
	if cfg.MaxFileSize != 1073741824 {
		t.Errorf("MaxFileSize = %d, ожидалось 1073741824", cfg.MaxFileSize)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидалось 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидалось disable", cfg.DBSSLMode)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидалось info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидалось json", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидалось 10s", cfg.ShutdownTimeout)
	}
	if cfg.CacheSize != 1024 {
		t.Errorf("CacheSize = %d, ожидалось 1024", cfg.CacheSize)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, ожидалось 30s", cfg.CacheTTL)
	}
	if cfg.DephealthGroup != "filevault" {
		t.Errorf("DephealthGroup = %q, ожидалось filevault", cfg.DephealthGroup)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	minimalEnvs(t)
	t.Setenv("FV_PORT", "9090")
	t.Setenv("FV_API_KEY_HEADER", "Authorization")
	t.Setenv("FV_MAX_FILE_SIZE", "10485760")
	t.Setenv("FV_DB_PORT", "15432")
	t.Setenv("FV_DB_SSL_MODE", "require")
	t.Setenv("FV_LOG_LEVEL", "debug")
	t.Setenv("FV_LOG_FORMAT", "text")
	t.Setenv("FV_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("FV_CACHE_SIZE", "256")
	t.Setenv("FV_CACHE_TTL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидалось 9090", cfg.Port)
	}
	if cfg.APIKeyHeader != "Authorization" {
		t.Errorf("APIKeyHeader = %q, ожидалось Authorization", cfg.APIKeyHeader)
	}
	if cfg.MaxFileSize != 10485760 {
		t.Errorf("MaxFileSize = %d, ожидалось 10485760", cfg.MaxFileSize)
	}
	if cfg.DBPort != 15432 {
		t.Errorf("DBPort = %d, ожидалось 15432", cfg.DBPort)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидалось debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидалось text", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидалось 30s", cfg.ShutdownTimeout)
	}
	if cfg.CacheSize != 256 {
		t.Errorf("CacheSize = %d, ожидалось 256", cfg.CacheSize)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, ожидалось 1m", cfg.CacheTTL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		skip string
	}{
		{"без FV_STORAGE_DIR", "FV_STORAGE_DIR"},
		{"без FV_API_KEY", "FV_API_KEY"},
		{"без FV_DB_HOST", "FV_DB_HOST"},
		{"без FV_DB_NAME", "FV_DB_NAME"},
		{"без FV_DB_USER", "FV_DB_USER"},
		{"без FV_DB_PASSWORD", "FV_DB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minimalEnvs(t)
			t.Setenv(tt.skip, "")

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен вернуть ошибку", tt.skip)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"порт не число", "FV_PORT", "abc"},
		{"порт вне диапазона", "FV_PORT", "70000"},
		{"нулевой максимальный размер", "FV_MAX_FILE_SIZE", "0"},
		{"некорректный уровень логов", "FV_LOG_LEVEL", "verbose"},
		{"некорректный формат логов", "FV_LOG_FORMAT", "xml"},
		{"некорректный таймаут", "FV_SHUTDOWN_TIMEOUT", "10"},
		{"нулевой размер кэша", "FV_CACHE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minimalEnvs(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.value)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "filevault",
		DBUser:     "fv",
		DBPassword: "secret",
		DBSSLMode:  "disable",
	}

	want := "host=db.example.com port=5432 dbname=filevault user=fv password=secret sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидалось %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"ERROR", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLogLevel(%q) должен вернуть ошибку", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLogLevel(%q) вернул ошибку: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидалось %v", tt.input, got, tt.want)
		}
	}
}
