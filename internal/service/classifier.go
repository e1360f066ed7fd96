// Пакет service — оркестрация export-заданий: классификация,
// генерация ссылок, манифест частей, multipart-координатор,
// workflow-движок и пользовательские операции над заданиями.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/export-module/internal/catalog"
	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
)

var classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "em_classifications_total",
	Help: "Количество классификаций заданий по типу.",
}, []string{"job_type"})

// Classification — результат работы Scale Classifier.
type Classification struct {
	JobType model.JobType
	// Found — разрешённые ассеты в порядке исходного запроса.
	Found []*model.AssetRef
	// MissingIDs — промахи каталога, не блокируют задание.
	MissingIDs []string
	// Small и Large — разбиение Found по порогу. Объединение равно Found,
	// пересечение пусто.
	Small []*model.AssetRef
	Large []*model.AssetRef
	// TotalSizeBytes — суммарный размер найденных ассетов.
	TotalSizeBytes int64
}

// Classifier — Scale Classifier: разрешает ассеты через каталог
// и выбирает один из трёх путей исполнения задания.
type Classifier struct {
	resolver         catalog.Resolver
	defaultThreshold int64
	logger           *slog.Logger
}

// NewClassifier создаёт классификатор с глобальным порогом small/large.
func NewClassifier(resolver catalog.Resolver, defaultThreshold int64, logger *slog.Logger) *Classifier {
	return &Classifier{
		resolver:         resolver,
		defaultThreshold: defaultThreshold,
		logger:           logger.With(slog.String("component", "classifier")),
	}
}

// Classify разрешает запрошенные ассеты и классифицирует задание.
// Правила: ровно один найденный ассет размером ≤ порога — single_file;
// ровно один размером > порога — large_individual; иначе standard
// с разбиением по порогу. Промахи каталога записываются в MissingIDs
// и не мешают классификации найденных.
func (c *Classifier) Classify(ctx context.Context, job *model.Job) (*Classification, error) {
	threshold := c.defaultThreshold
	if job.Options.SmallFileThresholdBytes > 0 {
		threshold = job.Options.SmallFileThresholdBytes
	}

	result := &Classification{}
	for _, assetID := range job.RequestedAssetIDs {
		ref, err := c.resolver.Resolve(ctx, assetID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				result.MissingIDs = append(result.MissingIDs, assetID)
				continue
			}
			return nil, fmt.Errorf("ошибка разрешения ассета %s: %w", assetID, err)
		}
		result.Found = append(result.Found, ref)
		result.TotalSizeBytes += ref.SizeBytes
	}

	if len(result.Found) == 0 {
		return nil, fmt.Errorf("ни один из %d запрошенных ассетов не найден в каталоге", len(job.RequestedAssetIDs))
	}

	switch {
	case len(result.Found) == 1 && result.Found[0].SizeBytes <= threshold:
		result.JobType = model.JobTypeSingleFile
	case len(result.Found) == 1:
		result.JobType = model.JobTypeLargeIndividual
	default:
		result.JobType = model.JobTypeStandard
	}

	for _, ref := range result.Found {
		if ref.SizeBytes <= threshold {
			result.Small = append(result.Small, ref)
		} else {
			result.Large = append(result.Large, ref)
		}
	}

	classificationsTotal.WithLabelValues(string(result.JobType)).Inc()
	c.logger.Debug("Задание классифицировано",
		slog.String("job_id", job.JobID),
		slog.String("job_type", string(result.JobType)),
		slog.Int("found", len(result.Found)),
		slog.Int("missing", len(result.MissingIDs)),
		slog.Int64("total_size_bytes", result.TotalSizeBytes))
	return result, nil
}

// FoundIDs возвращает идентификаторы найденных ассетов в исходном порядке.
func (cl *Classification) FoundIDs() []string {
	ids := make([]string, 0, len(cl.Found))
	for _, ref := range cl.Found {
		ids = append(ids, ref.AssetID)
	}
	return ids
}
