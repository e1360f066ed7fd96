// Пакет catalog — разрешение ассетов из файлового реестра Artstore.
// EM — read-only потребитель таблицы file_registry (owned by Admin Module).
// Перед БД стоит LRU-кэш с TTL (hashicorp/golang-lru/v2/expirable):
// классификация одного задания может запрашивать сотни ассетов.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/repository"
)

// ErrNotFound — ассет отсутствует в каталоге либо не в статусе active.
var ErrNotFound = errors.New("ассет не найден в каталоге")

// Prometheus-метрики кэша каталога.
var (
	catalogCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "em_catalog_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш каталога.",
	})
	catalogCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "em_catalog_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша каталога.",
	})
)

// Resolver — контракт разрешения ассета для Scale Classifier.
type Resolver interface {
	// Resolve возвращает AssetRef по идентификатору ассета.
	// ErrNotFound — промах каталога (записывается в missingAssetIds,
	// не фатален для задания).
	Resolve(ctx context.Context, assetID string) (*model.AssetRef, error)
}

// Catalog — разрешение ассетов через file_registry с LRU-кэшем.
type Catalog struct {
	db    repository.DBTX
	cache *expirable.LRU[string, *model.AssetRef]
}

// New создаёт каталог с кэшем указанного размера и TTL.
func New(db repository.DBTX, cacheSize int, cacheTTL time.Duration) *Catalog {
	return &Catalog{
		db:    db,
		cache: expirable.NewLRU[string, *model.AssetRef](cacheSize, nil, cacheTTL),
	}
}

// Resolve возвращает AssetRef по идентификатору ассета.
// Ключ объекта в asset-бакете — конвенция ingestion-пайплайна: assets/{file_id}.
func (c *Catalog) Resolve(ctx context.Context, assetID string) (*model.AssetRef, error) {
	if ref, ok := c.cache.Get(assetID); ok {
		catalogCacheHitsTotal.Inc()
		return ref, nil
	}
	catalogCacheMissesTotal.Inc()

	query := `
		SELECT file_id, original_filename, size
		FROM file_registry
		WHERE file_id = $1 AND status = 'active'`

	ref := &model.AssetRef{}
	err := c.db.QueryRow(ctx, query, assetID).Scan(&ref.AssetID, &ref.Filename, &ref.SizeBytes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка запроса каталога: %w", err)
	}
	ref.StorageLocator = ObjectKey(ref.AssetID)

	c.cache.Add(assetID, ref)
	return ref, nil
}

// ObjectKey возвращает ключ объекта ассета в asset-бакете.
func ObjectKey(assetID string) string {
	return "assets/" + assetID
}
