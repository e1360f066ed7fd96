// jobs.go — обработчики /api/v1/jobs endpoints.
// Создание export-задания, статус, список, подтверждение скачивания, удаление.
// Авторизация по владению: субъект видит только собственные задания.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/goartstore/export-module/internal/api/errors"
	"github.com/bigkaa/goartstore/export-module/internal/api/generated"
	"github.com/bigkaa/goartstore/export-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/service"
)

// anonymousSubject — владелец заданий при выключенной аутентификации
// (только локальная разработка).
const anonymousSubject = "anonymous"

// subject возвращает идентификатор владельца из JWT claims.
func subject(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return anonymousSubject
}

// CreateJob — POST /api/v1/jobs.
// Принимает список ассетов, создаёт задание и немедленно возвращает 202:
// классификация и сборка выполняются асинхронно.
func (h *APIHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req generated.ExportJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	opts := mapOptions(req.Options)

	job, err := h.jobs.CreateJob(r.Context(), subject(r), req.AssetIds, opts)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyRequest),
			errors.Is(err, service.ErrTooManyAssets):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка создания задания", "error", err)
			apierrors.InternalError(w, "Ошибка создания задания")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, mapJob(job, ""))
}

// ListJobs — GET /api/v1/jobs.
// Возвращает задания текущего субъекта с пагинацией.
func (h *APIHandler) ListJobs(w http.ResponseWriter, r *http.Request, params generated.ListJobsParams) {
	limit, offset := paginationDefaults(params.Limit, params.Offset)

	jobs, err := h.jobs.ListJobs(r.Context(), subject(r), limit, offset)
	if err != nil {
		h.logger.Error("Ошибка списка заданий", "error", err)
		apierrors.InternalError(w, "Ошибка получения списка заданий")
		return
	}

	resp := generated.ExportJobListResponse{
		Items:  make([]generated.ExportJob, 0, len(jobs)),
		Limit:  limit,
		Offset: offset,
	}
	for _, job := range jobs {
		resp.Items = append(resp.Items, mapJob(job, ""))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJob — GET /api/v1/jobs/{job_id}.
// Статус задания; для завершённых — result_url с presigned-ссылкой.
func (h *APIHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID generated.JobId) {
	res, err := h.jobs.GetJob(r.Context(), subject(r), jobID.String())
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			apierrors.NotFound(w, "Задание не найдено")
			return
		}
		h.logger.Error("Ошибка получения задания", "job_id", jobID.String(), "error", err)
		apierrors.InternalError(w, "Ошибка получения задания")
		return
	}

	writeJSON(w, http.StatusOK, mapJob(res.Job, res.ResultURL))
}

// MarkJobDownloaded — POST /api/v1/jobs/{job_id}/downloaded.
// Подтверждение скачивания артефакта клиентом.
func (h *APIHandler) MarkJobDownloaded(w http.ResponseWriter, r *http.Request, jobID generated.JobId) {
	err := h.jobs.MarkDownloaded(r.Context(), subject(r), jobID.String())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			apierrors.NotFound(w, "Задание не найдено")
		case errors.Is(err, service.ErrJobNotReady):
			apierrors.JobNotReady(w, "Артефакт задания ещё не готов")
		default:
			h.logger.Error("Ошибка подтверждения скачивания", "job_id", jobID.String(), "error", err)
			apierrors.InternalError(w, "Ошибка подтверждения скачивания")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteJob — DELETE /api/v1/jobs/{job_id}.
// Удаляет задание и освобождает его артефакты. Выполняющееся задание
// удалить нельзя — 409.
func (h *APIHandler) DeleteJob(w http.ResponseWriter, r *http.Request, jobID generated.JobId) {
	err := h.jobs.DeleteJob(r.Context(), subject(r), jobID.String())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			apierrors.NotFound(w, "Задание не найдено")
		case errors.Is(err, service.ErrJobNotReady):
			apierrors.Conflict(w, "Задание выполняется, удаление невозможно")
		default:
			h.logger.Error("Ошибка удаления задания", "job_id", jobID.String(), "error", err)
			apierrors.InternalError(w, "Ошибка удаления задания")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Маппинг domain model → generated ---

// mapOptions конвертирует опциональные параметры запроса в domain model.
func mapOptions(o *generated.ExportJobOptions) model.JobOptions {
	var opts model.JobOptions
	if o == nil {
		return opts
	}
	if o.SmallFileThresholdBytes != nil {
		opts.SmallFileThresholdBytes = *o.SmallFileThresholdBytes
	}
	if o.ChunkSizeBytes != nil {
		opts.ChunkSizeBytes = *o.ChunkSizeBytes
	}
	if o.LinkTtlSeconds != nil {
		opts.LinkTTL = time.Duration(*o.LinkTtlSeconds) * time.Second
	}
	return opts
}

// mapJob конвертирует domain model в API-представление.
// resultURL передаётся отдельно: presigned-ссылка генерируется только
// при выдаче одиночного задания.
func mapJob(job *model.Job, resultURL string) generated.ExportJob {
	jobUUID, _ := uuid.Parse(job.JobID)

	out := generated.ExportJob{
		JobId:     jobUUID,
		Status:    generated.ExportJobStatus(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: ptr(job.UpdatedAt),
		ExpiresAt: ptr(job.ExpiresAt),
	}

	if job.JobType != "" {
		out.JobType = ptr(generated.ExportJobJobType(job.JobType))
	}
	if job.FailureCause != "" {
		out.FailureCause = ptr(job.FailureCause)
	}
	if resultURL != "" {
		out.ResultUrl = ptr(resultURL)
	}
	if len(job.RequestedAssetIDs) > 0 {
		out.RequestedAssetIds = ptr(job.RequestedAssetIDs)
	}
	if len(job.FoundAssetIDs) > 0 {
		out.FoundAssetIds = ptr(job.FoundAssetIDs)
	}
	if len(job.MissingAssetIDs) > 0 {
		out.MissingAssetIds = ptr(job.MissingAssetIDs)
	}
	if job.TotalSizeBytes > 0 {
		out.TotalSizeBytes = ptr(job.TotalSizeBytes)
	}
	if job.DirectLinks != nil {
		links := make([]generated.DirectLink, 0, len(job.DirectLinks))
		for _, l := range job.DirectLinks {
			links = append(links, generated.DirectLink{
				AssetId:   l.AssetID,
				Url:       l.URL,
				ExpiresAt: l.ExpiresAt,
			})
		}
		out.DirectLinks = &links
	}

	return out
}

// ptr возвращает указатель на значение (для optional-полей generated).
func ptr[T any](v T) *T {
	return &v
}
