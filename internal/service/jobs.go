package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/domain/workflow"
	"github.com/bigkaa/goartstore/export-module/internal/repository"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
)

// MaxAssetsPerJob — потолок размера запроса. Защита от заданий,
// которые заведомо не уложатся в потолок времени выполнения.
const MaxAssetsPerJob = 10000

// Ошибки пользовательских операций над заданиями.
var (
	// ErrJobNotFound — задание отсутствует либо принадлежит другому
	// пользователю: наружу эти случаи неразличимы.
	ErrJobNotFound = errors.New("задание не найдено")
	// ErrJobNotReady — артефакт ещё не готов к скачиванию.
	ErrJobNotReady = errors.New("задание ещё не завершено")
	// ErrEmptyRequest — пустой список ассетов.
	ErrEmptyRequest = errors.New("список ассетов пуст")
	// ErrTooManyAssets — запрос превышает потолок размера.
	ErrTooManyAssets = fmt.Errorf("запрос превышает потолок в %d ассетов", MaxAssetsPerJob)
)

// JobResult — задание вместе с result URL готового артефакта.
type JobResult struct {
	Job *model.Job
	// ResultURL — время-ограниченная ссылка на артефакт export-бакета.
	// Пуста, пока артефакт не готов, и для large_individual-заданий
	// (их результат — DirectLinks).
	ResultURL string
}

// JobService — пользовательские операции над export-заданиями:
// создание, статус, подтверждение скачивания, удаление.
type JobService struct {
	repo         repository.JobRepository
	orchestrator *Orchestrator
	objects      objectstore.ObjectStore
	jobTTL       time.Duration
	linkTTL      time.Duration
	logger       *slog.Logger
}

// NewJobService создаёт сервис заданий.
func NewJobService(
	repo repository.JobRepository,
	orchestrator *Orchestrator,
	objects objectstore.ObjectStore,
	jobTTL time.Duration,
	linkTTL time.Duration,
	logger *slog.Logger,
) *JobService {
	return &JobService{
		repo:         repo,
		orchestrator: orchestrator,
		objects:      objects,
		jobTTL:       jobTTL,
		linkTTL:      linkTTL,
		logger:       logger.With(slog.String("service", "jobs")),
	}
}

// CreateJob создаёт задание в статусе pending и запускает его workflow.
// Порядок ассетов в запросе значим: он определяет порядок entries архива.
func (s *JobService) CreateJob(ctx context.Context, userID string, assetIDs []string, opts model.JobOptions) (*model.Job, error) {
	if len(assetIDs) == 0 {
		return nil, ErrEmptyRequest
	}
	if len(assetIDs) > MaxAssetsPerJob {
		return nil, ErrTooManyAssets
	}

	now := time.Now().UTC()
	job := &model.Job{
		JobID:             uuid.NewString(),
		UserID:            userID,
		Status:            model.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(s.jobTTL),
		RequestedAssetIDs: assetIDs,
		Options:           opts,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("ошибка создания задания: %w", err)
	}

	s.logger.Info("Задание создано",
		slog.String("job_id", job.JobID),
		slog.String("user_id", userID),
		slog.Int("assets", len(assetIDs)))

	// Workflow живёт дольше HTTP-запроса: его контекст не наследуется
	// от запросного.
	s.orchestrator.Submit(context.WithoutCancel(ctx), job)
	return job, nil
}

// GetJob возвращает задание пользователя. Для готового артефакта
// дополнительно выдаётся presigned result URL.
func (s *JobService) GetJob(ctx context.Context, userID, jobID string) (*JobResult, error) {
	job, err := s.getOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	result := &JobResult{Job: job}
	if job.ExportKey != "" && (job.Status == model.StatusCompleted || job.Status == model.StatusDownloaded) {
		url, err := s.objects.PresignExportGet(ctx, job.ExportKey, s.linkTTL)
		if err != nil {
			return nil, fmt.Errorf("ошибка генерации result URL: %w", err)
		}
		result.ResultURL = url
	}
	return result, nil
}

// ListJobs возвращает страницу заданий пользователя, новые первыми.
func (s *JobService) ListJobs(ctx context.Context, userID string, limit, offset int) ([]*model.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	jobs, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заданий: %w", err)
	}
	return jobs, nil
}

// MarkDownloaded фиксирует подтверждение скачивания клиентом.
// Допустим только из статуса completed: единственная мутация Job-записи
// вне оркестратора.
func (s *JobService) MarkDownloaded(ctx context.Context, userID, jobID string) error {
	err := s.repo.MarkDownloaded(ctx, jobID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrJobNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return ErrJobNotReady
	case err != nil:
		return fmt.Errorf("ошибка подтверждения скачивания: %w", err)
	}
	return nil
}

// DeleteJob удаляет задание по явному запросу клиента: Job-запись,
// scratch-директорию и артефакт export-бакета. Выполняющееся задание
// удалить нельзя.
func (s *JobService) DeleteJob(ctx context.Context, userID, jobID string) error {
	job, err := s.getOwned(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.StatusPending || job.Status == model.StatusProcessing {
		return fmt.Errorf("задание в статусе %s: %w", job.Status, ErrJobNotReady)
	}

	if _, err := s.repo.Delete(ctx, jobID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("ошибка удаления задания: %w", err)
	}

	s.cleanupArtifacts(ctx, job)
	s.logger.Info("Задание удалено по запросу клиента",
		slog.String("job_id", jobID),
		slog.String("user_id", userID))
	return nil
}

// cleanupArtifacts удаляет артефакты задания: scratch-директорию,
// объект export-бакета и незавершённый multipart upload, если он остался
// после провала. Ошибки очистки не фатальны, только логируются.
func (s *JobService) cleanupArtifacts(ctx context.Context, job *model.Job) {
	if err := s.orchestrator.store.RemoveJob(job.JobID); err != nil {
		s.logger.Warn("Ошибка очистки scratch-директории",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()))
	}

	if job.ExportKey != "" {
		if err := s.objects.DeleteObject(ctx, job.ExportKey); err != nil {
			s.logger.Warn("Ошибка удаления артефакта",
				slog.String("job_id", job.JobID),
				slog.String("export_key", job.ExportKey),
				slog.String("error", err.Error()))
		}
	}

	if job.Status == model.StatusFailed && job.WorkflowState != string(workflow.StateClassify) {
		session, err := s.repo.GetMultipartSession(ctx, job.JobID)
		if err == nil && session != nil && session.UploadID != "" {
			if err := s.objects.AbortMultipartUpload(ctx, session.TargetKey, session.UploadID); err != nil {
				s.logger.Warn("Ошибка прерывания multipart upload",
					slog.String("job_id", job.JobID),
					slog.String("upload_id", session.UploadID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// getOwned возвращает задание, если оно принадлежит пользователю.
func (s *JobService) getOwned(ctx context.Context, userID, jobID string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("ошибка получения задания: %w", err)
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}
