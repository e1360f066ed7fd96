package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
)

// JobRepository — интерфейс CRUD и атомарных переходов для таблицы export_jobs.
type JobRepository interface {
	// Create создаёт новую запись задания.
	Create(ctx context.Context, job *model.Job) error
	// GetByID возвращает задание по UUID.
	GetByID(ctx context.Context, jobID string) (*model.Job, error)
	// ListByUser возвращает задания пользователя (новые первыми).
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Job, error)
	// SaveClassification записывает результат Scale Classifier на Job-запись.
	SaveClassification(ctx context.Context, job *model.Job) error
	// TransitionState атомарно обновляет workflow_state и status.
	// Переход из терминального статуса отвергается (ErrInvalidTransition) —
	// status монотонен по построению.
	TransitionState(ctx context.Context, jobID, workflowState string, status model.JobStatus, failureCause string) error
	// SetExportKey записывает ключ готового артефакта.
	SetExportKey(ctx context.Context, jobID, exportKey string) error
	// SetDirectLinks записывает прямые ссылки задания.
	SetDirectLinks(ctx context.Context, jobID string, links []model.DirectLink) error
	// SetMultipartSession персистит multipart-сессию задания.
	SetMultipartSession(ctx context.Context, jobID string, session *model.MultipartUploadSession) error
	// GetMultipartSession возвращает персистированную multipart-сессию (nil — нет).
	GetMultipartSession(ctx context.Context, jobID string) (*model.MultipartUploadSession, error)
	// MarkDownloaded переводит completed → downloaded.
	MarkDownloaded(ctx context.Context, jobID, userID string) error
	// Delete удаляет задание пользователя. Возвращает удалённую запись.
	Delete(ctx context.Context, jobID, userID string) (*model.Job, error)
	// ListExpired возвращает задания с истёкшим expires_at.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)
	// DeleteByID удаляет запись без проверки владельца (фоновая очистка).
	DeleteByID(ctx context.Context, jobID string) error
	// FailInterrupted помечает processing-задания как failed при старте
	// (восстановление после рестарта процесса).
	FailInterrupted(ctx context.Context, cause string) (int, error)
}

// jobRepo — реализация JobRepository.
type jobRepo struct {
	db DBTX
}

// NewJobRepository создаёт репозиторий export-заданий.
func NewJobRepository(db DBTX) JobRepository {
	return &jobRepo{db: db}
}

// jobColumns — список колонок для SELECT (порядок совпадает со scanJob).
const jobColumns = `job_id, user_id, status, job_type, created_at, updated_at, expires_at,
	requested_asset_ids, found_asset_ids, missing_asset_ids, total_size_bytes,
	options, workflow_state, failure_cause, export_key, direct_links`

// scanJob читает одну строку export_jobs в model.Job.
func scanJob(row pgx.Row) (*model.Job, error) {
	j := &model.Job{}
	var options, directLinks []byte

	err := row.Scan(
		&j.JobID, &j.UserID, &j.Status, &j.JobType, &j.CreatedAt, &j.UpdatedAt, &j.ExpiresAt,
		&j.RequestedAssetIDs, &j.FoundAssetIDs, &j.MissingAssetIDs, &j.TotalSizeBytes,
		&options, &j.WorkflowState, &j.FailureCause, &j.ExportKey, &directLinks,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &j.Options); err != nil {
		return nil, fmt.Errorf("ошибка десериализации options: %w", err)
	}
	if err := json.Unmarshal(directLinks, &j.DirectLinks); err != nil {
		return nil, fmt.Errorf("ошибка десериализации direct_links: %w", err)
	}
	return j, nil
}

func (r *jobRepo) Create(ctx context.Context, job *model.Job) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("ошибка сериализации options: %w", err)
	}

	query := `
		INSERT INTO export_jobs (job_id, user_id, status, job_type, expires_at,
			requested_asset_ids, options, workflow_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		job.JobID, job.UserID, job.Status, job.JobType, job.ExpiresAt,
		job.RequestedAssetIDs, options, job.WorkflowState,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: задание с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания задания: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, jobID string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs WHERE job_id = $1`

	j, err := scanJob(r.db.QueryRow(ctx, query, jobID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения задания: %w", err)
	}
	return j, nil
}

func (r *jobRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM export_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заданий: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения задания: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода заданий: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) SaveClassification(ctx context.Context, job *model.Job) error {
	query := `
		UPDATE export_jobs
		SET job_type = $2, found_asset_ids = $3, missing_asset_ids = $4,
			total_size_bytes = $5, updated_at = now()
		WHERE job_id = $1`

	tag, err := r.db.Exec(ctx, query,
		job.JobID, job.JobType, job.FoundAssetIDs, job.MissingAssetIDs, job.TotalSizeBytes)
	if err != nil {
		return fmt.Errorf("ошибка записи классификации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepo) TransitionState(ctx context.Context, jobID, workflowState string, status model.JobStatus, failureCause string) error {
	// Guard в WHERE гарантирует монотонность: терминальный статус
	// (downloaded, failed) не перезаписывается.
	query := `
		UPDATE export_jobs
		SET workflow_state = $2, status = $3, failure_cause = $4, updated_at = now()
		WHERE job_id = $1 AND status NOT IN ('downloaded', 'failed')`

	tag, err := r.db.Exec(ctx, query, jobID, workflowState, status, failureCause)
	if err != nil {
		return fmt.Errorf("ошибка перехода состояния: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо задания нет, либо оно в терминальном статусе.
		if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *jobRepo) SetExportKey(ctx context.Context, jobID, exportKey string) error {
	query := `UPDATE export_jobs SET export_key = $2, updated_at = now() WHERE job_id = $1`
	tag, err := r.db.Exec(ctx, query, jobID, exportKey)
	if err != nil {
		return fmt.Errorf("ошибка записи export_key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepo) SetDirectLinks(ctx context.Context, jobID string, links []model.DirectLink) error {
	if links == nil {
		links = []model.DirectLink{}
	}
	payload, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("ошибка сериализации direct_links: %w", err)
	}

	query := `UPDATE export_jobs SET direct_links = $2, updated_at = now() WHERE job_id = $1`
	tag, err := r.db.Exec(ctx, query, jobID, payload)
	if err != nil {
		return fmt.Errorf("ошибка записи direct_links: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepo) SetMultipartSession(ctx context.Context, jobID string, session *model.MultipartUploadSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("ошибка сериализации multipart-сессии: %w", err)
	}

	query := `UPDATE export_jobs SET multipart_session = $2, updated_at = now() WHERE job_id = $1`
	tag, err := r.db.Exec(ctx, query, jobID, payload)
	if err != nil {
		return fmt.Errorf("ошибка записи multipart-сессии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepo) GetMultipartSession(ctx context.Context, jobID string) (*model.MultipartUploadSession, error) {
	query := `SELECT multipart_session FROM export_jobs WHERE job_id = $1`

	var payload []byte
	err := r.db.QueryRow(ctx, query, jobID).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения multipart-сессии: %w", err)
	}
	if payload == nil {
		return nil, nil
	}

	session := &model.MultipartUploadSession{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("ошибка десериализации multipart-сессии: %w", err)
	}
	return session, nil
}

func (r *jobRepo) MarkDownloaded(ctx context.Context, jobID, userID string) error {
	// Переход допустим только из completed — иначе нарушается монотонность.
	query := `
		UPDATE export_jobs
		SET status = 'downloaded', updated_at = now()
		WHERE job_id = $1 AND user_id = $2 AND status = 'completed'`

	tag, err := r.db.Exec(ctx, query, jobID, userID)
	if err != nil {
		return fmt.Errorf("ошибка подтверждения скачивания: %w", err)
	}
	if tag.RowsAffected() == 0 {
		j, getErr := r.GetByID(ctx, jobID)
		if getErr != nil {
			return getErr
		}
		if j.UserID != userID {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *jobRepo) Delete(ctx context.Context, jobID, userID string) (*model.Job, error) {
	query := `DELETE FROM export_jobs WHERE job_id = $1 AND user_id = $2 RETURNING ` + jobColumns

	j, err := scanJob(r.db.QueryRow(ctx, query, jobID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка удаления задания: %w", err)
	}
	return j, nil
}

func (r *jobRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM export_jobs
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истёкших заданий: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения задания: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода заданий: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) DeleteByID(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM export_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("ошибка удаления задания: %w", err)
	}
	return nil
}

func (r *jobRepo) FailInterrupted(ctx context.Context, cause string) (int, error) {
	query := `
		UPDATE export_jobs
		SET status = 'failed', workflow_state = 'failed', failure_cause = $1, updated_at = now()
		WHERE status IN ('pending', 'processing')`

	tag, err := r.db.Exec(ctx, query, cause)
	if err != nil {
		return 0, fmt.Errorf("ошибка пометки прерванных заданий: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
