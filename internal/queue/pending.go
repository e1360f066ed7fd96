package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pendingParts = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "em_pending_parts",
	Help: "Количество частей, ожидающих подтверждения из очереди результатов.",
})

// PendingTable — таблица ожидания подтверждений по корреляционному
// идентификатору. Запись создаётся диспетчером до отправки задачи,
// резолвится поллером результатов.
type PendingTable struct {
	mu      sync.Mutex
	waiters map[string]chan PartResult
}

// NewPendingTable создаёт пустую таблицу ожидания.
func NewPendingTable() *PendingTable {
	return &PendingTable{waiters: make(map[string]chan PartResult)}
}

// Register регистрирует корреляционный идентификатор и возвращает канал,
// в который будет доставлен результат. Канал буферизован: Resolve не
// блокируется, даже если ожидающая горутина уже отвалилась по таймауту.
func (p *PendingTable) Register(correlationID string) <-chan PartResult {
	ch := make(chan PartResult, 1)
	p.mu.Lock()
	p.waiters[correlationID] = ch
	p.mu.Unlock()
	pendingParts.Inc()
	return ch
}

// Resolve доставляет результат ожидающей горутине. Возвращает false,
// если идентификатор неизвестен: запоздавшее подтверждение после
// таймаута части, такой результат отбрасывается.
func (p *PendingTable) Resolve(result PartResult) bool {
	p.mu.Lock()
	ch, ok := p.waiters[result.CorrelationID]
	if ok {
		delete(p.waiters, result.CorrelationID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result
	pendingParts.Dec()
	return true
}

// Cancel снимает регистрацию без доставки результата (таймаут части
// или отмена задания).
func (p *PendingTable) Cancel(correlationID string) {
	p.mu.Lock()
	_, ok := p.waiters[correlationID]
	if ok {
		delete(p.waiters, correlationID)
	}
	p.mu.Unlock()
	if ok {
		pendingParts.Dec()
	}
}

// Len возвращает количество ожидающих записей.
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
