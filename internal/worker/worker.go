// Пакет worker — пул загрузчиков частей multipart upload.
// Worker'ы забирают задачи из очереди, читают байтовый диапазон
// источника на scratch, загружают часть в export-бакет и публикуют
// подтверждение (completion token) в очередь результатов.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/export-module/internal/queue"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

// receiveBatchSize — задач за один long poll очереди.
const receiveBatchSize = 10

var (
	partUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "em_part_uploads_total",
		Help: "Количество загрузок частей worker-ами по исходу.",
	}, []string{"status"})

	partUploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "em_part_upload_duration_seconds",
		Help:    "Длительность загрузки одной части в export-бакет.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
)

// Pool — пул worker-горутин загрузки частей.
type Pool struct {
	broker  queue.Queue
	store   *scratch.Store
	objects objectstore.ObjectStore
	size    int
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewPool создаёт пул из size worker-ов.
func NewPool(broker queue.Queue, store *scratch.Store, objects objectstore.ObjectStore, size int, logger *slog.Logger) *Pool {
	return &Pool{
		broker:  broker,
		store:   store,
		objects: objects,
		size:    size,
		logger:  logger.With(slog.String("component", "part_worker")),
	}
}

// Start запускает worker-горутины. Останавливаются отменой ctx.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Запуск пула загрузчиков частей", slog.Int("workers", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

// Wait блокируется до завершения всех worker-ов.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	logger := p.logger.With(slog.Int("worker", id))
	for {
		tasks, err := p.broker.ReceiveTasks(ctx, receiveBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Ошибка чтения очереди задач", slog.String("error", err.Error()))
			// Пауза перед повтором, чтобы не крутить горячий цикл
			// при недоступном брокере.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, received := range tasks {
			p.process(ctx, logger, received)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// process выполняет одну задачу: загружает часть и публикует результат.
// Задача удаляется из очереди в любом исходе, кроме обрыва контекста:
// провал части доставляется координатору через очередь результатов,
// повторная доставка задачи ничего не добавит.
func (p *Pool) process(ctx context.Context, logger *slog.Logger, received queue.ReceivedTask) {
	task := received.Task
	start := time.Now()

	etag, err := p.uploadPart(ctx, task)

	result := queue.PartResult{
		CorrelationID: task.CorrelationID,
		JobID:         task.JobID,
		PartNumber:    task.Part.PartNumber,
	}
	switch {
	case err != nil && ctx.Err() != nil:
		// Остановка процесса: задачу не удаляем, она вернётся в очередь
		// по visibility timeout и достанется другому worker-у.
		return
	case err != nil:
		result.Error = err.Error()
		partUploadsTotal.WithLabelValues("error").Inc()
		logger.Error("Ошибка загрузки части",
			slog.String("job_id", task.JobID),
			slog.Int("part_number", int(task.Part.PartNumber)),
			slog.String("error", err.Error()))
	default:
		result.ETag = etag
		partUploadsTotal.WithLabelValues("ok").Inc()
		partUploadDuration.Observe(time.Since(start).Seconds())
	}

	if err := p.broker.SendResult(ctx, result); err != nil {
		logger.Error("Ошибка публикации результата",
			slog.String("job_id", task.JobID),
			slog.Int("part_number", int(task.Part.PartNumber)),
			slog.String("error", err.Error()))
		// Результат не доставлен: задачу оставляем в очереди на повтор.
		return
	}
	if err := p.broker.DeleteTask(ctx, received.Receipt); err != nil {
		logger.Warn("Ошибка удаления задачи из очереди", slog.String("error", err.Error()))
	}
}

func (p *Pool) uploadPart(ctx context.Context, task queue.PartTask) (string, error) {
	body, err := p.store.OpenRange(task.Part.SourceLocator, task.Part.StartByte, task.Part.EndByte)
	if err != nil {
		return "", err
	}
	defer body.Close()

	return p.objects.UploadPart(ctx, task.TargetKey, task.UploadID, task.Part.PartNumber, body, task.Part.Size())
}
