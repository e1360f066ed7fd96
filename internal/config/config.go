// Пакет config — загрузка и валидация конфигурации Export Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Export Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown (по умолчанию 30s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Auth (JWT) ---

	// AuthEnabled — выключение только для локальной разработки.
	AuthEnabled bool
	// JWKSURL — URL JWKS endpoint Keycloak.
	JWKSURL string
	// JWTIssuer — ожидаемый issuer JWT (пустой — не проверяется).
	JWTIssuer string
	// JWTLeeway — допустимое отклонение времени при проверке exp/nbf.
	JWTLeeway time.Duration
	// JWKSClientTimeout — таймаут HTTP-клиента JWKS.
	JWKSClientTimeout time.Duration
	// JWKSRefreshInterval — интервал фонового обновления JWKS-ключей.
	JWKSRefreshInterval time.Duration
	// JWKSCACertPath — опциональный CA-сертификат для TLS к Keycloak.
	JWKSCACertPath string

	// --- Объектное хранилище (S3-совместимое) ---

	S3Endpoint       string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool
	// S3AssetBucket — бакет с исходными ассетами.
	S3AssetBucket string
	// S3ExportBucket — бакет готовых артефактов export.
	S3ExportBucket string

	// --- Очередь сообщений (SQS-совместимая) ---

	SQSEndpoint string
	// SQSTaskQueueURL — очередь задач на загрузку частей.
	SQSTaskQueueURL string
	// SQSResultQueueURL — очередь подтверждений (completion tokens).
	SQSResultQueueURL string
	// SQSVisibilityTimeout — должен быть не меньше максимального времени
	// обработки части worker-ом, иначе возможны дубли загрузок.
	SQSVisibilityTimeout time.Duration

	// --- Оркестрация ---

	// ScratchDir — общая scratch-директория сборки архивов.
	ScratchDir string
	// SmallFileThresholdBytes — порог классификации small/large (100 MiB).
	SmallFileThresholdBytes int64
	// ChunkSizeBytes — размер части multipart upload (100 MiB).
	ChunkSizeBytes int64
	// SmallAssetConcurrency — fan-out сборки архива. Должен быть 1:
	// инвариант single-writer scratch-файла (корректность, не throughput).
	SmallAssetConcurrency int
	// LargeAssetConcurrency — fan-out генерации прямых ссылок (5).
	LargeAssetConcurrency int
	// ManifestBatchSize — размер батча чтения манифеста (5).
	ManifestBatchSize int
	// PartConcurrency — частей multipart одновременно в полёте (10).
	PartConcurrency int
	// PartTimeout — потолок ожидания подтверждения одной части (5m).
	PartTimeout time.Duration
	// JobTimeout — потолок выполнения задания целиком (6h).
	JobTimeout time.Duration
	// LinkTTL — время жизни прямых ссылок и result URL (1h).
	LinkTTL time.Duration
	// WorkerCount — количество worker-горутин загрузки частей (10).
	WorkerCount int

	// --- Жизненный цикл заданий ---

	// JobTTL — срок хранения задания и его артефактов (168h).
	JobTTL time.Duration
	// ExpiryInterval — период фоновой очистки истёкших заданий (1h).
	ExpiryInterval time.Duration

	// --- Кэш каталога ---

	// CatalogCacheSize — максимальное число записей LRU-кэша каталога.
	CatalogCacheSize int
	// CatalogCacheTTL — TTL записи кэша каталога.
	CatalogCacheTTL time.Duration

	// --- Dependency health (topologymetrics) ---

	// DephealthGroup — имя группы в метриках графа зависимостей.
	DephealthGroup string
	// DephealthCheckInterval — интервал проверки зависимостей.
	DephealthCheckInterval time.Duration
	// DephealthIsEntry — лейбл isentry=yes для entry-сервисов.
	DephealthIsEntry bool
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// EM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("EM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("EM_PORT: %w", err)
	}
	if cfg.Port < 8040 || cfg.Port > 8049 {
		return nil, fmt.Errorf("EM_PORT: значение %d вне диапазона 8040-8049", cfg.Port)
	}

	// EM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("EM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("EM_LOG_LEVEL: %w", err)
	}

	// EM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("EM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("EM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("EM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("EM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("EM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("EM_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("EM_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("EM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("EM_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("EM_DB_NAME", "artstore")
	cfg.DBUser = getEnvDefault("EM_DB_USER", "artstore")
	cfg.DBPassword, err = getEnvRequired("EM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("EM_DB_SSL_MODE", "disable")

	// --- Auth ---

	cfg.AuthEnabled, err = getEnvBool("EM_AUTH_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("EM_AUTH_ENABLED: %w", err)
	}
	if cfg.AuthEnabled {
		cfg.JWKSURL, err = getEnvRequired("EM_JWKS_URL")
		if err != nil {
			return nil, err
		}
	}
	cfg.JWTIssuer = getEnvDefault("EM_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("EM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("EM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("EM_JWKS_REFRESH_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("EM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWKSCACertPath = getEnvDefault("EM_JWKS_CA_CERT_PATH", "")

	// --- Объектное хранилище ---

	cfg.S3Endpoint, err = getEnvRequired("EM_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}
	cfg.S3Region = getEnvDefault("EM_S3_REGION", "us-east-1")
	cfg.S3AccessKey, err = getEnvRequired("EM_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}
	cfg.S3SecretKey, err = getEnvRequired("EM_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}
	cfg.S3ForcePathStyle, err = getEnvBool("EM_S3_FORCE_PATH_STYLE", true)
	if err != nil {
		return nil, fmt.Errorf("EM_S3_FORCE_PATH_STYLE: %w", err)
	}
	cfg.S3AssetBucket, err = getEnvRequired("EM_S3_ASSET_BUCKET")
	if err != nil {
		return nil, err
	}
	cfg.S3ExportBucket, err = getEnvRequired("EM_S3_EXPORT_BUCKET")
	if err != nil {
		return nil, err
	}

	// --- Очередь сообщений ---

	cfg.SQSEndpoint = getEnvDefault("EM_SQS_ENDPOINT", "")
	cfg.SQSTaskQueueURL, err = getEnvRequired("EM_SQS_TASK_QUEUE_URL")
	if err != nil {
		return nil, err
	}
	cfg.SQSResultQueueURL, err = getEnvRequired("EM_SQS_RESULT_QUEUE_URL")
	if err != nil {
		return nil, err
	}
	cfg.SQSVisibilityTimeout, err = getEnvDuration("EM_SQS_VISIBILITY_TIMEOUT", 6*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("EM_SQS_VISIBILITY_TIMEOUT: %w", err)
	}

	// --- Оркестрация ---

	cfg.ScratchDir = getEnvDefault("EM_SCRATCH_DIR", "/var/lib/artstore/export-scratch")

	cfg.SmallFileThresholdBytes, err = getEnvInt64("EM_SMALL_FILE_THRESHOLD_BYTES", 100*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("EM_SMALL_FILE_THRESHOLD_BYTES: %w", err)
	}
	cfg.ChunkSizeBytes, err = getEnvInt64("EM_CHUNK_SIZE_BYTES", 100*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("EM_CHUNK_SIZE_BYTES: %w", err)
	}
	// Минимум для multipart upload большинства S3-совместимых хранилищ
	if cfg.ChunkSizeBytes < 5*1024*1024 {
		return nil, fmt.Errorf("EM_CHUNK_SIZE_BYTES: значение %d меньше минимума 5 MiB", cfg.ChunkSizeBytes)
	}

	cfg.SmallAssetConcurrency, err = getEnvInt("EM_SMALL_ASSET_CONCURRENCY", 1)
	if err != nil {
		return nil, fmt.Errorf("EM_SMALL_ASSET_CONCURRENCY: %w", err)
	}
	if cfg.SmallAssetConcurrency != 1 {
		return nil, fmt.Errorf("EM_SMALL_ASSET_CONCURRENCY: значение %d нарушает инвариант single-writer архива, допустимо только 1", cfg.SmallAssetConcurrency)
	}

	cfg.LargeAssetConcurrency, err = getEnvInt("EM_LARGE_ASSET_CONCURRENCY", 5)
	if err != nil {
		return nil, fmt.Errorf("EM_LARGE_ASSET_CONCURRENCY: %w", err)
	}
	cfg.ManifestBatchSize, err = getEnvInt("EM_MANIFEST_BATCH_SIZE", 5)
	if err != nil {
		return nil, fmt.Errorf("EM_MANIFEST_BATCH_SIZE: %w", err)
	}
	cfg.PartConcurrency, err = getEnvInt("EM_PART_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("EM_PART_CONCURRENCY: %w", err)
	}
	cfg.PartTimeout, err = getEnvDuration("EM_PART_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("EM_PART_TIMEOUT: %w", err)
	}
	cfg.JobTimeout, err = getEnvDuration("EM_JOB_TIMEOUT", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("EM_JOB_TIMEOUT: %w", err)
	}
	cfg.LinkTTL, err = getEnvDuration("EM_LINK_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("EM_LINK_TTL: %w", err)
	}
	cfg.WorkerCount, err = getEnvInt("EM_WORKER_COUNT", 10)
	if err != nil {
		return nil, fmt.Errorf("EM_WORKER_COUNT: %w", err)
	}

	if cfg.SQSVisibilityTimeout < cfg.PartTimeout {
		return nil, fmt.Errorf("EM_SQS_VISIBILITY_TIMEOUT: %s меньше EM_PART_TIMEOUT %s — возможны дублирующиеся загрузки частей",
			cfg.SQSVisibilityTimeout, cfg.PartTimeout)
	}

	// --- Жизненный цикл заданий ---

	cfg.JobTTL, err = getEnvDuration("EM_JOB_TTL", 168*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("EM_JOB_TTL: %w", err)
	}
	cfg.ExpiryInterval, err = getEnvDuration("EM_EXPIRY_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("EM_EXPIRY_INTERVAL: %w", err)
	}

	// --- Кэш каталога ---

	cfg.CatalogCacheSize, err = getEnvInt("EM_CATALOG_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("EM_CATALOG_CACHE_SIZE: %w", err)
	}
	cfg.CatalogCacheTTL, err = getEnvDuration("EM_CATALOG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("EM_CATALOG_CACHE_TTL: %w", err)
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("EM_DEPHEALTH_GROUP", "artstore")
	cfg.DephealthCheckInterval, err = getEnvDuration("EM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("EM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 из переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	if n <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
