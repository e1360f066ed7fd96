package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lateResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "em_late_part_results_total",
	Help: "Подтверждения частей, пришедшие после таймаута и отброшенные.",
})

// ResultPoller — фоновый поллер очереди результатов: резолвит записи
// таблицы ожидания по корреляционному идентификатору.
type ResultPoller struct {
	broker  Queue
	pending *PendingTable
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewResultPoller создаёт поллер результатов.
func NewResultPoller(broker Queue, pending *PendingTable, logger *slog.Logger) *ResultPoller {
	return &ResultPoller{
		broker:  broker,
		pending: pending,
		logger:  logger.With(slog.String("component", "result_poller")),
	}
}

// Start запускает цикл опроса. Останавливается отменой ctx.
func (p *ResultPoller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Wait блокируется до остановки поллера.
func (p *ResultPoller) Wait() {
	p.wg.Wait()
}

func (p *ResultPoller) run(ctx context.Context) {
	p.logger.Info("Запуск поллера результатов")
	for {
		results, err := p.broker.ReceiveResults(ctx, 10)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("Ошибка чтения очереди результатов", slog.String("error", err.Error()))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, received := range results {
			if !p.pending.Resolve(received.Result) {
				// Запоздавшее подтверждение: координатор уже снял
				// ожидание по таймауту.
				lateResultsTotal.Inc()
				p.logger.Warn("Отброшено запоздавшее подтверждение части",
					slog.String("job_id", received.Result.JobID),
					slog.Int("part_number", int(received.Result.PartNumber)))
			}
			if err := p.broker.DeleteResult(ctx, received.Receipt); err != nil {
				p.logger.Warn("Ошибка удаления результата из очереди", slog.String("error", err.Error()))
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}
