// Пакет queue — обмен задачами и подтверждениями загрузки частей
// через SQS-совместимую очередь.
//
// Схема: диспетчер регистрирует корреляционный идентификатор части
// в таблице ожидания (PendingTable), публикует PartTask в очередь задач
// и ждёт PartResult. Worker'ы забирают задачи, выполняют загрузку части
// и публикуют результат в очередь подтверждений. Поллер результатов
// резолвит таблицу ожидания по корреляционному идентификатору.
package queue

import (
	"context"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
)

// PartTask — задача на загрузку одной части multipart upload.
type PartTask struct {
	// CorrelationID связывает задачу с записью таблицы ожидания.
	CorrelationID string `json:"correlation_id"`
	// JobID — задание, которому принадлежит часть.
	JobID string `json:"job_id"`
	// UploadID — идентификатор multipart upload в объектном хранилище.
	UploadID string `json:"upload_id"`
	// TargetKey — ключ артефакта в export-бакете.
	TargetKey string `json:"target_key"`
	// Part — дескриптор части: номер и байтовый диапазон источника.
	Part model.PartDescriptor `json:"part"`
}

// PartResult — подтверждение загрузки части (completion token).
type PartResult struct {
	CorrelationID string `json:"correlation_id"`
	JobID         string `json:"job_id"`
	PartNumber    int32  `json:"part_number"`
	// ETag заполнен при успехе.
	ETag string `json:"etag,omitempty"`
	// Error заполнен при провале загрузки, eTag при этом пуст.
	Error string `json:"error,omitempty"`
}

// ReceivedTask — задача вместе с квитанцией очереди для удаления.
type ReceivedTask struct {
	Task    PartTask
	Receipt string
}

// ReceivedResult — результат вместе с квитанцией очереди.
type ReceivedResult struct {
	Result  PartResult
	Receipt string
}

// Queue — контракт брокера задач и подтверждений.
type Queue interface {
	// SendTask публикует задачу в очередь задач.
	SendTask(ctx context.Context, task PartTask) error
	// ReceiveTasks забирает из очереди задач до max задач (long poll).
	// Пустой срез без ошибки — очередь пуста.
	ReceiveTasks(ctx context.Context, max int32) ([]ReceivedTask, error)
	// DeleteTask удаляет обработанную задачу по квитанции.
	DeleteTask(ctx context.Context, receipt string) error
	// SendResult публикует подтверждение в очередь результатов.
	SendResult(ctx context.Context, result PartResult) error
	// ReceiveResults забирает из очереди результатов до max подтверждений.
	ReceiveResults(ctx context.Context, max int32) ([]ReceivedResult, error)
	// DeleteResult удаляет обработанное подтверждение по квитанции.
	DeleteResult(ctx context.Context, receipt string) error
}
