package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/queue"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

var (
	multipartUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "em_multipart_uploads_total",
		Help: "Количество multipart upload по исходу.",
	}, []string{"status"})

	partWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "em_part_wait_duration_seconds",
		Help:    "Время ожидания подтверждения одной части координатором.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
)

// PartTimeoutError — часть не подтвердилась за отведённое время.
// Фатальна для multipart-стадии; какая именно часть истекла, попадает
// в причину провала задания.
type PartTimeoutError struct {
	JobID      string
	PartNumber int32
	Timeout    time.Duration
}

func (e *PartTimeoutError) Error() string {
	return fmt.Sprintf("часть %d задания %s не подтверждена за %s", e.PartNumber, e.JobID, e.Timeout)
}

// MultipartCoordinator — Multipart Upload Coordinator: превращает готовый
// файл на scratch в артефакт export-бакета через chunked multipart upload.
// Части диспетчеризуются worker-ам через очередь с корреляционными
// токенами; координатор приостанавливается до подтверждения каждой части
// либо до её таймаута.
//
// При провале стадии незавершённый upload НЕ прерывается автоматически:
// его вместе со scratch-артефактами реклаймит фоновая очистка задания.
type MultipartCoordinator struct {
	objects   objectstore.ObjectStore
	store     *scratch.Store
	manifests *ManifestBuilder
	broker    queue.Queue
	pending   *queue.PendingTable

	batchSize       int32
	partConcurrency int
	partTimeout     time.Duration
	logger          *slog.Logger
}

// NewMultipartCoordinator создаёт координатор multipart upload.
func NewMultipartCoordinator(
	objects objectstore.ObjectStore,
	store *scratch.Store,
	manifests *ManifestBuilder,
	broker queue.Queue,
	pending *queue.PendingTable,
	batchSize int,
	partConcurrency int,
	partTimeout time.Duration,
	logger *slog.Logger,
) *MultipartCoordinator {
	return &MultipartCoordinator{
		objects:         objects,
		store:           store,
		manifests:       manifests,
		broker:          broker,
		pending:         pending,
		batchSize:       int32(batchSize),
		partConcurrency: partConcurrency,
		partTimeout:     partTimeout,
		logger:          logger.With(slog.String("component", "multipart_coordinator")),
	}
}

// InitSession начинает multipart upload: вычисляет разбиение источника
// на части, персистит манифест на scratch и открывает upload в export-бакете.
func (c *MultipartCoordinator) InitSession(ctx context.Context, jobID, sourcePath, targetKey string, chunkSize int64) (model.MultipartUploadSession, error) {
	fileSize, err := c.store.Size(sourcePath)
	if err != nil {
		return model.MultipartUploadSession{}, fmt.Errorf("ошибка определения размера источника: %w", err)
	}

	manifestKey, totalParts, err := c.manifests.WriteManifest(jobID, sourcePath, fileSize, chunkSize)
	if err != nil {
		return model.MultipartUploadSession{}, err
	}

	uploadID, err := c.objects.CreateMultipartUpload(ctx, targetKey)
	if err != nil {
		return model.MultipartUploadSession{}, fmt.Errorf("ошибка инициализации multipart upload: %w", err)
	}

	session := model.MultipartUploadSession{
		UploadID:      uploadID,
		TargetKey:     targetKey,
		ManifestKey:   manifestKey,
		SourcePath:    sourcePath,
		TotalParts:    totalParts,
		PartSizeBytes: chunkSize,
		FileSizeBytes: fileSize,
	}

	c.logger.Info("Multipart upload инициализирован",
		slog.String("job_id", jobID),
		slog.String("upload_id", uploadID),
		slog.Int("total_parts", int(totalParts)),
		slog.Int64("file_size_bytes", fileSize))
	return session, nil
}

// Drive прогоняет все части сессии через очередь и возвращает полный
// набор подтверждений. Манифест читается батчами; внутри батча части
// уходят worker-ам с ограниченным параллелизмом. Любой провал или
// таймаут части фатален для всей стадии.
func (c *MultipartCoordinator) Drive(ctx context.Context, jobID string, session model.MultipartUploadSession) ([]model.CompletedPart, error) {
	completed := make([]model.CompletedPart, 0, session.TotalParts)
	var mu sync.Mutex

	for batchStart := int32(1); batchStart <= session.TotalParts; batchStart += c.batchSize {
		batchEnd := batchStart + c.batchSize - 1
		if batchEnd > session.TotalParts {
			batchEnd = session.TotalParts
		}

		batch, err := c.manifests.GetManifestBatch(session.ManifestKey, batchStart, batchEnd)
		if err != nil {
			return nil, err
		}

		grp, grpCtx := errgroup.WithContext(ctx)
		grp.SetLimit(c.partConcurrency)
		for _, part := range batch {
			grp.Go(func() error {
				done, err := c.dispatchPart(grpCtx, jobID, session, part)
				if err != nil {
					return err
				}
				mu.Lock()
				completed = append(completed, done)
				mu.Unlock()
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			multipartUploadsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	return completed, nil
}

// dispatchPart отправляет одну часть в очередь задач и приостанавливается
// до подтверждения из таблицы ожидания либо до таймаута части.
func (c *MultipartCoordinator) dispatchPart(ctx context.Context, jobID string, session model.MultipartUploadSession, part model.PartDescriptor) (model.CompletedPart, error) {
	correlationID := uuid.NewString()
	wait := c.pending.Register(correlationID)
	start := time.Now()

	task := queue.PartTask{
		CorrelationID: correlationID,
		JobID:         jobID,
		UploadID:      session.UploadID,
		TargetKey:     session.TargetKey,
		Part:          part,
	}
	if err := c.broker.SendTask(ctx, task); err != nil {
		c.pending.Cancel(correlationID)
		return model.CompletedPart{}, fmt.Errorf("ошибка диспетчеризации части %d: %w", part.PartNumber, err)
	}

	timer := time.NewTimer(c.partTimeout)
	defer timer.Stop()

	select {
	case result := <-wait:
		partWaitDuration.Observe(time.Since(start).Seconds())
		if result.Error != "" {
			return model.CompletedPart{}, fmt.Errorf("ошибка загрузки части %d: %s", part.PartNumber, result.Error)
		}
		return model.CompletedPart{PartNumber: result.PartNumber, ETag: result.ETag}, nil
	case <-timer.C:
		c.pending.Cancel(correlationID)
		return model.CompletedPart{}, &PartTimeoutError{JobID: jobID, PartNumber: part.PartNumber, Timeout: c.partTimeout}
	case <-ctx.Done():
		c.pending.Cancel(correlationID)
		return model.CompletedPart{}, ctx.Err()
	}
}

// Complete финализирует upload. Инвариант полноты: подтверждения обязаны
// покрывать номера частей {1, …, TotalParts} ровно по одному разу —
// иначе финализация не вызывается и стадия проваливается.
func (c *MultipartCoordinator) Complete(ctx context.Context, session model.MultipartUploadSession, parts []model.CompletedPart) (string, error) {
	if err := verifyCompletion(session.TotalParts, parts); err != nil {
		multipartUploadsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	locator, err := c.objects.CompleteMultipartUpload(ctx, session.TargetKey, session.UploadID, parts)
	if err != nil {
		multipartUploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("ошибка финализации multipart upload: %w", err)
	}

	multipartUploadsTotal.WithLabelValues("ok").Inc()
	c.logger.Info("Multipart upload финализирован",
		slog.String("upload_id", session.UploadID),
		slog.String("target_key", session.TargetKey),
		slog.Int("parts", len(parts)))
	return locator, nil
}

// verifyCompletion проверяет, что подтверждения покрывают [1, totalParts]
// без пропусков и дублей.
func verifyCompletion(totalParts int32, parts []model.CompletedPart) error {
	if int32(len(parts)) != totalParts {
		return fmt.Errorf("подтверждено %d частей из %d", len(parts), totalParts)
	}
	seen := make(map[int32]bool, len(parts))
	for _, p := range parts {
		if p.PartNumber < 1 || p.PartNumber > totalParts {
			return fmt.Errorf("подтверждение с номером части %d вне диапазона [1, %d]", p.PartNumber, totalParts)
		}
		if seen[p.PartNumber] {
			return fmt.Errorf("дублирующееся подтверждение части %d", p.PartNumber)
		}
		seen[p.PartNumber] = true
	}
	return nil
}
