package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/export-module/internal/repository"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

// expiryBatchSize — истёкших заданий за один проход очистки.
const expiryBatchSize = 100

var expiredJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "em_expired_jobs_total",
	Help: "Задания, удалённые фоновой очисткой по истечении срока хранения.",
})

// ExpiryService — фоновая очистка истёкших заданий. Реклаймит всё,
// что оставил workflow: Job-запись, scratch-директорию, артефакт
// export-бакета и незавершённый multipart upload провалившегося задания.
type ExpiryService struct {
	repo     repository.JobRepository
	store    *scratch.Store
	objects  objectstore.ObjectStore
	interval time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewExpiryService создаёт сервис фоновой очистки.
func NewExpiryService(
	repo repository.JobRepository,
	store *scratch.Store,
	objects objectstore.ObjectStore,
	interval time.Duration,
	logger *slog.Logger,
) *ExpiryService {
	return &ExpiryService{
		repo:     repo,
		store:    store,
		objects:  objects,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry")),
	}
}

// Start запускает периодическую очистку. Останавливается отменой ctx.
func (s *ExpiryService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Запуск фоновой очистки истёкших заданий",
			slog.String("interval", s.interval.String()))

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait блокируется до остановки очистки.
func (s *ExpiryService) Wait() {
	s.wg.Wait()
}

// Sweep выполняет один проход очистки: удаляет все истёкшие задания
// вместе с их артефактами. Ошибка по одному заданию не прерывает проход.
// Пакет без единой успешной очистки завершает проход: неочищенные задания
// остаются истёкшими, и без этой проверки выборка вернула бы тот же пакет.
func (s *ExpiryService) Sweep(ctx context.Context) {
	for {
		jobs, err := s.repo.ListExpired(ctx, time.Now().UTC(), expiryBatchSize)
		if err != nil {
			s.logger.Error("Ошибка выборки истёкших заданий", slog.String("error", err.Error()))
			return
		}
		if len(jobs) == 0 {
			return
		}

		reclaimed := 0
		for _, job := range jobs {
			if err := s.reclaim(ctx, job.JobID); err != nil {
				s.logger.Error("Ошибка очистки истёкшего задания",
					slog.String("job_id", job.JobID),
					slog.String("error", err.Error()))
				continue
			}
			reclaimed++
			expiredJobsTotal.Inc()
		}

		if reclaimed == 0 {
			s.logger.Warn("Проход очистки не удалил ни одного задания, повтор на следующем интервале",
				slog.Int("jobs", len(jobs)))
			return
		}
		if len(jobs) < expiryBatchSize {
			return
		}
	}
}

// reclaim удаляет артефакты и Job-запись одного истёкшего задания.
// Порядок значим: запись удаляется последней, чтобы проваленная очистка
// артефактов повторилась на следующем проходе.
func (s *ExpiryService) reclaim(ctx context.Context, jobID string) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	if session, err := s.repo.GetMultipartSession(ctx, jobID); err == nil && session != nil && session.UploadID != "" && job.ExportKey == "" {
		// Upload так и не финализировался: прерываем, чтобы хранилище
		// освободило накопленные части.
		if err := s.objects.AbortMultipartUpload(ctx, session.TargetKey, session.UploadID); err != nil {
			s.logger.Warn("Ошибка прерывания multipart upload",
				slog.String("job_id", jobID),
				slog.String("upload_id", session.UploadID),
				slog.String("error", err.Error()))
		}
	}

	if job.ExportKey != "" {
		if err := s.objects.DeleteObject(ctx, job.ExportKey); err != nil {
			return err
		}
	}
	if err := s.store.RemoveJob(jobID); err != nil {
		return err
	}

	s.logger.Info("Истёкшее задание удалено", slog.String("job_id", jobID))
	return s.repo.DeleteByID(ctx, jobID)
}
