// Пакет model — доменные модели Export Module.
// Job и сопутствующие структуры bulk-download: классификация, архив,
// multipart-сессия, дескрипторы частей.
package model

import (
	"time"
)

// JobType — тип export-задания, определяется Scale Classifier.
type JobType string

const (
	// JobTypeSingleFile — ровно один найденный ассет, размер ≤ порога.
	JobTypeSingleFile JobType = "single_file"
	// JobTypeLargeIndividual — ровно один найденный ассет, размер > порога.
	JobTypeLargeIndividual JobType = "large_individual"
	// JobTypeStandard — общий случай: архив мелких + прямые ссылки на крупные.
	JobTypeStandard JobType = "standard"
)

// JobStatus — статус жизненного цикла задания.
// Переходы монотонны: из терминального статуса (failed, downloaded)
// возврат невозможен; downloaded достижим только из completed.
type JobStatus string

const (
	// StatusPending — задание создано, оркестратор ещё не взял его в работу.
	StatusPending JobStatus = "pending"
	// StatusProcessing — workflow выполняется.
	StatusProcessing JobStatus = "processing"
	// StatusCompleted — артефакт готов к скачиванию.
	StatusCompleted JobStatus = "completed"
	// StatusDownloaded — клиент подтвердил скачивание (markDownloaded).
	StatusDownloaded JobStatus = "downloaded"
	// StatusFailed — задание завершилось с ошибкой (см. Job.FailureCause).
	StatusFailed JobStatus = "failed"
)

// IsTerminal сообщает, является ли статус конечным.
func (s JobStatus) IsTerminal() bool {
	return s == StatusDownloaded || s == StatusFailed
}

// JobOptions — распознаваемые опции задания, переопределяют глобальные
// настройки оркестрации для конкретного задания.
type JobOptions struct {
	// SmallFileThresholdBytes — порог классификации small/large (0 — глобальный).
	SmallFileThresholdBytes int64 `json:"small_file_threshold_bytes,omitempty"`
	// ChunkSizeBytes — размер части multipart upload (0 — глобальный).
	ChunkSizeBytes int64 `json:"chunk_size_bytes,omitempty"`
	// LinkTTL — время жизни прямых ссылок (0 — глобальное).
	LinkTTL time.Duration `json:"link_ttl,omitempty"`
}

// Job — одно задание bulk-download и его lifecycle-запись.
// JobID глобально уникален и неизменен; status пишет только оркестратор
// (плюс явный markDownloaded от клиента).
type Job struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	Status    JobStatus `json:"status"`
	JobType   JobType   `json:"job_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// ExpiresAt — момент фоновой очистки задания и его артефактов.
	ExpiresAt time.Time `json:"expires_at"`

	// RequestedAssetIDs — исходный список ассетов из запроса, порядок значим.
	RequestedAssetIDs []string `json:"requested_asset_ids"`
	// FoundAssetIDs — ассеты, найденные в каталоге при классификации.
	FoundAssetIDs []string `json:"found_asset_ids,omitempty"`
	// MissingAssetIDs — ассеты, отсутствующие в каталоге (не блокируют задание).
	MissingAssetIDs []string `json:"missing_asset_ids,omitempty"`
	// TotalSizeBytes — суммарный размер найденных ассетов.
	TotalSizeBytes int64 `json:"total_size_bytes"`

	Options JobOptions `json:"options"`

	// WorkflowState — текущее состояние workflow-движка (персистится
	// после каждого перехода, переживает рестарт процесса).
	WorkflowState string `json:"workflow_state,omitempty"`
	// FailureCause — человекочитаемая причина при status = failed.
	FailureCause string `json:"failure_cause,omitempty"`

	// ExportKey — ключ готового артефакта в export-бакете (archive либо
	// копия единственного файла). Пуст для large_individual.
	ExportKey string `json:"export_key,omitempty"`
	// DirectLinks — прямые ссылки на крупные ассеты.
	DirectLinks []DirectLink `json:"direct_links,omitempty"`
}

// AssetRef — ссылка на ассет, разрешённая из каталога при классификации.
// Неизменяема после разрешения.
type AssetRef struct {
	AssetID string `json:"asset_id"`
	// SizeBytes — размер объекта в байтах.
	SizeBytes int64 `json:"size_bytes"`
	// StorageLocator — ключ объекта в asset-бакете.
	StorageLocator string `json:"storage_locator"`
	// Filename — оригинальное имя файла (имя entry в архиве).
	Filename string `json:"filename"`
}

// DirectLink — время-ограниченная прямая ссылка на крупный ассет.
type DirectLink struct {
	AssetID   string    `json:"asset_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveHandle — идентификатор растущего архива задания на scratch-хранилище.
// Инвариант single-writer: в любой момент времени append выполняет не более
// одного актора; компонент архива внутренних блокировок не держит.
type ArchiveHandle struct {
	JobID string `json:"job_id"`
	// ScratchPath — относительный путь архива в scratch-директории.
	ScratchPath string `json:"scratch_path"`
}

// MultipartUploadSession — сессия multipart upload готового артефакта.
// Создаётся один раз на задание, достигшее multipart-стадии; неизменяема,
// кроме накапливаемого набора подтверждённых частей.
type MultipartUploadSession struct {
	// UploadID — идентификатор multipart upload в объектном хранилище.
	UploadID string `json:"upload_id"`
	// TargetKey — ключ итогового объекта в export-бакете.
	TargetKey string `json:"target_key"`
	// ManifestKey — путь манифеста частей на scratch-хранилище.
	ManifestKey string `json:"manifest_key"`
	// SourcePath — путь исходного файла на scratch-хранилище.
	SourcePath string `json:"source_path"`
	// TotalParts — количество частей, вычисленное из размера файла.
	TotalParts int32 `json:"total_parts"`
	// PartSizeBytes — размер части (последняя может быть короче).
	PartSizeBytes int64 `json:"part_size_bytes"`
	// FileSizeBytes — полный размер загружаемого файла.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// PartDescriptor — один физический chunk multipart upload.
// PartNumber ∈ [1, TotalParts]; диапазоны [StartByte, EndByte) смежны
// и не пересекаются, их объединение — [0, FileSizeBytes).
type PartDescriptor struct {
	PartNumber int32 `json:"part_number"`
	StartByte  int64 `json:"start_byte"`
	// EndByte — эксклюзивная граница диапазона.
	EndByte int64 `json:"end_byte"`
	// SourceLocator — путь исходного файла на scratch-хранилище.
	SourceLocator string `json:"source_locator"`
}

// Size возвращает размер части в байтах.
func (p PartDescriptor) Size() int64 {
	return p.EndByte - p.StartByte
}

// CompletedPart — подтверждение загрузки одной части worker-ом.
// Финализация multipart upload допустима только при наличии CompletedPart
// для каждого PartNumber из [1, TotalParts].
type CompletedPart struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}
