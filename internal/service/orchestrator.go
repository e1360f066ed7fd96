package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/export-module/internal/archive"
	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/domain/workflow"
	"github.com/bigkaa/goartstore/export-module/internal/repository"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "em_jobs_total",
		Help: "Завершённые задания по типу и исходу.",
	}, []string{"job_type", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "em_job_duration_seconds",
		Help:    "Длительность выполнения задания от classify до терминального состояния.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 21600},
	}, []string{"job_type"})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "em_jobs_in_flight",
		Help: "Задания, выполняемые оркестратором в данный момент.",
	})
)

// timeoutCause — причина провала при превышении потолка задания.
const timeoutCause = "timeout"

// Orchestrator — workflow-движок export-заданий: единственный писатель
// Job.status. Прогоняет задание через конечный автомат, персистя каждый
// переход, поэтому после рестарта процесса прерванные задания
// детектируются по нетерминальному статусу.
type Orchestrator struct {
	repo        repository.JobRepository
	classifier  *Classifier
	links       *LinkGenerator
	coordinator *MultipartCoordinator
	objects     objectstore.ObjectStore
	store       *scratch.Store

	chunkSize  int64
	jobTimeout time.Duration
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewOrchestrator создаёт workflow-движок.
func NewOrchestrator(
	repo repository.JobRepository,
	classifier *Classifier,
	links *LinkGenerator,
	coordinator *MultipartCoordinator,
	objects objectstore.ObjectStore,
	store *scratch.Store,
	chunkSize int64,
	jobTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		classifier:  classifier,
		links:       links,
		coordinator: coordinator,
		objects:     objects,
		store:       store,
		chunkSize:   chunkSize,
		jobTimeout:  jobTimeout,
		logger:      logger.With(slog.String("component", "orchestrator")),
	}
}

// Submit запускает выполнение задания в отдельной горутине.
func (o *Orchestrator) Submit(ctx context.Context, job *model.Job) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Execute(ctx, job)
	}()
}

// Wait блокируется до завершения всех выполняющихся заданий.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// RecoverInterrupted помечает задания, прерванные рестартом процесса,
// как проваленные. Вызывается один раз при старте, до приёма трафика:
// нетерминальный статус на этот момент означает оборванный workflow.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) error {
	n, err := o.repo.FailInterrupted(ctx, "interrupted by restart")
	if err != nil {
		return fmt.Errorf("ошибка восстановления после рестарта: %w", err)
	}
	if n > 0 {
		o.logger.Warn("Прерванные рестартом задания помечены проваленными", slog.Int("count", n))
	}
	return nil
}

// execution — изменяемое состояние одного прогона workflow,
// передаётся между шагами.
type execution struct {
	job            *model.Job
	classification *Classification
	assembler      *archive.Assembler
	handle         model.ArchiveHandle
	directLinks    []model.DirectLink
	session        model.MultipartUploadSession
	completed      []model.CompletedPart
}

// Execute прогоняет задание от classify до терминального состояния.
// Потолок задания (6 часов по умолчанию) отсчитывается отсюда; его
// превышение проваливает задание с причиной timeout, не обрезая вывод.
func (o *Orchestrator) Execute(ctx context.Context, job *model.Job) {
	ctx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()
	start := time.Now()
	logger := o.logger.With(slog.String("job_id", job.JobID))

	exec := &execution{job: job}
	state := workflow.StateClassify
	if err := o.transition(ctx, job, state); err != nil {
		logger.Error("Ошибка старта workflow", slog.String("error", err.Error()))
		return
	}

	for !state.IsTerminal() {
		if err := o.step(ctx, state, exec); err != nil {
			o.fail(job, state, err, logger)
			jobsTotal.WithLabelValues(string(job.JobType), string(model.StatusFailed)).Inc()
			jobDuration.WithLabelValues(string(job.JobType)).Observe(time.Since(start).Seconds())
			return
		}

		next, err := workflow.Next(state, job.JobType)
		if err != nil {
			o.fail(job, state, err, logger)
			return
		}
		if err := o.transition(ctx, job, next); err != nil {
			o.fail(job, state, err, logger)
			return
		}
		state = next
	}

	o.cleanupScratch(job.JobID, logger)
	jobsTotal.WithLabelValues(string(job.JobType), string(model.StatusCompleted)).Inc()
	jobDuration.WithLabelValues(string(job.JobType)).Observe(time.Since(start).Seconds())
	logger.Info("Задание завершено",
		slog.String("job_type", string(job.JobType)),
		slog.String("duration", time.Since(start).String()))
}

// step выполняет действие одного состояния workflow.
func (o *Orchestrator) step(ctx context.Context, state workflow.State, exec *execution) error {
	switch state {
	case workflow.StateClassify:
		return o.stepClassify(ctx, exec)
	case workflow.StateSingleFileTransfer:
		return o.stepSingleFileTransfer(ctx, exec)
	case workflow.StateLargeIndividualLink:
		return o.stepLargeIndividualLink(ctx, exec)
	case workflow.StateInitArchive:
		return o.stepInitArchive(exec)
	case workflow.StateParallelFanOut:
		return o.stepParallelFanOut(ctx, exec)
	case workflow.StateMergeResults:
		return o.stepMergeResults(ctx, exec)
	case workflow.StateInitMultipart:
		return o.stepInitMultipart(ctx, exec)
	case workflow.StateManifestLoop:
		return o.stepManifestLoop(ctx, exec)
	case workflow.StateCompleteMultipart:
		return o.stepCompleteMultipart(ctx, exec)
	default:
		return fmt.Errorf("состояние %s не имеет действия", state)
	}
}

// stepClassify разрешает ассеты и записывает классификацию на Job-запись.
func (o *Orchestrator) stepClassify(ctx context.Context, exec *execution) error {
	classification, err := o.classifier.Classify(ctx, exec.job)
	if err != nil {
		return err
	}
	exec.classification = classification

	job := exec.job
	job.JobType = classification.JobType
	job.FoundAssetIDs = classification.FoundIDs()
	job.MissingAssetIDs = classification.MissingIDs
	job.TotalSizeBytes = classification.TotalSizeBytes
	if err := o.repo.SaveClassification(ctx, job); err != nil {
		return fmt.Errorf("ошибка записи классификации: %w", err)
	}
	return nil
}

// stepSingleFileTransfer копирует единственный мелкий файл в export-бакет.
func (o *Orchestrator) stepSingleFileTransfer(ctx context.Context, exec *execution) error {
	ref := exec.classification.Found[0]

	body, err := o.objects.GetObject(ctx, ref.StorageLocator)
	if err != nil {
		return fmt.Errorf("ошибка чтения ассета %s: %w", ref.AssetID, err)
	}
	defer body.Close()

	exportKey := ExportObjectKey(exec.job.JobID, ref.Filename)
	if err := o.objects.PutObject(ctx, exportKey, body, ref.SizeBytes); err != nil {
		return fmt.Errorf("ошибка записи артефакта %s: %w", exportKey, err)
	}
	exec.job.ExportKey = exportKey
	return o.repo.SetExportKey(ctx, exec.job.JobID, exportKey)
}

// stepLargeIndividualLink выдаёт прямую ссылку на единственный крупный файл.
// Архив не создаётся, артефакт в export-бакет не пишется.
func (o *Orchestrator) stepLargeIndividualLink(ctx context.Context, exec *execution) error {
	links, err := o.links.Generate(ctx, exec.classification.Found, exec.job.Options)
	if err != nil {
		return err
	}
	exec.job.DirectLinks = links
	return o.repo.SetDirectLinks(ctx, exec.job.JobID, links)
}

// stepInitArchive создаёт пустой архив на свежем scratch-пути.
func (o *Orchestrator) stepInitArchive(exec *execution) error {
	exec.assembler = archive.NewAssembler(o.store, o.objects)
	handle, err := exec.assembler.Initialize(exec.job.JobID)
	if err != nil {
		return err
	}
	exec.handle = handle
	return nil
}

// stepParallelFanOut выполняет две параллельные ветки: сборку архива из
// мелких ассетов и генерацию прямых ссылок на крупные. Append'ы архива
// строго последовательны в порядке запроса (single-writer инвариант);
// ветка ссылок ограничена собственным параллелизмом. Ошибка любой ветки
// проваливает стадию целиком, частичный архив не финализируется.
func (o *Orchestrator) stepParallelFanOut(ctx context.Context, exec *execution) error {
	grp, grpCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		handle := exec.handle
		var err error
		for _, ref := range exec.classification.Small {
			if handle, err = exec.assembler.Append(grpCtx, handle, ref); err != nil {
				return err
			}
		}
		return nil
	})

	grp.Go(func() error {
		links, err := o.links.Generate(grpCtx, exec.classification.Large, exec.job.Options)
		if err != nil {
			return err
		}
		exec.directLinks = links
		return nil
	})

	if err := grp.Wait(); err != nil {
		exec.assembler.Discard()
		return err
	}
	return nil
}

// stepMergeResults сливает результаты параллельных веток: финализирует
// архив и персистит ссылки. Пустая ветка крупных ассетов — валидный
// результат ("empty, not absent"): персистится пустой список, а не NULL.
func (o *Orchestrator) stepMergeResults(ctx context.Context, exec *execution) error {
	if err := exec.assembler.Finalize(); err != nil {
		return err
	}

	if exec.directLinks == nil {
		exec.directLinks = []model.DirectLink{}
	}
	exec.job.DirectLinks = exec.directLinks
	if err := o.repo.SetDirectLinks(ctx, exec.job.JobID, exec.directLinks); err != nil {
		return fmt.Errorf("ошибка записи прямых ссылок: %w", err)
	}
	return nil
}

// stepInitMultipart открывает multipart upload архива и персистит сессию.
func (o *Orchestrator) stepInitMultipart(ctx context.Context, exec *execution) error {
	chunkSize := o.chunkSize
	if exec.job.Options.ChunkSizeBytes > 0 {
		chunkSize = exec.job.Options.ChunkSizeBytes
	}

	targetKey := ExportObjectKey(exec.job.JobID, ArchiveArtifactName)
	session, err := o.coordinator.InitSession(ctx, exec.job.JobID, exec.handle.ScratchPath, targetKey, chunkSize)
	if err != nil {
		return err
	}
	exec.session = session
	return o.repo.SetMultipartSession(ctx, exec.job.JobID, &session)
}

// stepManifestLoop прогоняет все части сессии через очередь worker-ов.
func (o *Orchestrator) stepManifestLoop(ctx context.Context, exec *execution) error {
	completed, err := o.coordinator.Drive(ctx, exec.job.JobID, exec.session)
	if err != nil {
		return err
	}
	exec.completed = completed
	return nil
}

// stepCompleteMultipart финализирует upload и записывает ключ артефакта.
func (o *Orchestrator) stepCompleteMultipart(ctx context.Context, exec *execution) error {
	locator, err := o.coordinator.Complete(ctx, exec.session, exec.completed)
	if err != nil {
		return err
	}
	exec.job.ExportKey = locator
	return o.repo.SetExportKey(ctx, exec.job.JobID, locator)
}

// transition персистит переход workflow вместе с соответствующим статусом.
func (o *Orchestrator) transition(ctx context.Context, job *model.Job, state workflow.State) error {
	status := workflow.StatusFor(state)
	if err := o.repo.TransitionState(ctx, job.JobID, string(state), status, ""); err != nil {
		return fmt.Errorf("ошибка перехода в %s: %w", state, err)
	}
	job.WorkflowState = string(state)
	job.Status = status
	return nil
}

// fail переводит задание в failed с человекочитаемой причиной.
// Незавершённый multipart upload и scratch-артефакты не зачищаются:
// их реклаймит фоновая очистка по истечении задания.
func (o *Orchestrator) fail(job *model.Job, state workflow.State, cause error, logger *slog.Logger) {
	causeText := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		causeText = timeoutCause
	}

	logger.Error("Задание провалено",
		slog.String("state", string(state)),
		slog.String("cause", causeText))

	// Свежий контекст: исходный мог истечь, а провал персистить обязательно.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.repo.TransitionState(ctx, job.JobID, string(workflow.StateFailed), model.StatusFailed, causeText); err != nil {
		logger.Error("Ошибка записи провала задания", slog.String("error", err.Error()))
	}
	job.Status = model.StatusFailed
	job.FailureCause = causeText
}

// cleanupScratch удаляет scratch-директорию успешно завершённого задания:
// архив и манифест уже загружены в export-бакет.
func (o *Orchestrator) cleanupScratch(jobID string, logger *slog.Logger) {
	if err := o.store.RemoveJob(jobID); err != nil {
		logger.Warn("Ошибка очистки scratch-директории", slog.String("error", err.Error()))
	}
}

// ArchiveArtifactName — имя архива-артефакта в export-бакете.
const ArchiveArtifactName = "archive.zip"

// ExportObjectKey возвращает ключ артефакта задания в export-бакете.
func ExportObjectKey(jobID, filename string) string {
	if filename == "" {
		filename = "artifact"
	}
	return "exports/" + jobID + "/" + filename
}
