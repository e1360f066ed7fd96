package service

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

// ManifestName — имя манифеста частей в поддиректории задания.
const ManifestName = "manifest.json"

// maxUploadParts — предел числа частей multipart upload в S3 API.
const maxUploadParts = 10000

// partManifest — формат манифеста на scratch-хранилище.
// Пишется один раз при инициализации multipart-стадии, читается
// батчами; безопасен для конкурентных читателей.
type partManifest struct {
	JobID         string                 `json:"job_id"`
	SourcePath    string                 `json:"source_path"`
	FileSizeBytes int64                  `json:"file_size_bytes"`
	PartSizeBytes int64                  `json:"part_size_bytes"`
	TotalParts    int32                  `json:"total_parts"`
	Parts         []model.PartDescriptor `json:"parts"`
}

// ManifestBuilder — Part/Manifest Builder: вычисляет смежные байтовые
// диапазоны частей multipart upload и хранит их манифест на scratch.
type ManifestBuilder struct {
	store *scratch.Store
}

// NewManifestBuilder создаёт построитель манифестов поверх scratch-хранилища.
func NewManifestBuilder(store *scratch.Store) *ManifestBuilder {
	return &ManifestBuilder{store: store}
}

// ComputeParts детерминированно разбивает [0, fileSize) на смежные
// непересекающиеся диапазоны размера chunkSize (последняя часть может
// быть короче). Номера частей — [1, totalParts], totalParts не превышает
// maxUploadParts: при необходимости размер части масштабируется вверх.
func ComputeParts(sourceLocator string, fileSize, chunkSize int64) []model.PartDescriptor {
	if fileSize <= 0 || chunkSize <= 0 {
		return nil
	}
	chunkSize = clampChunkSize(fileSize, chunkSize)

	totalParts := fileSize / chunkSize
	if fileSize%chunkSize != 0 {
		totalParts++
	}

	parts := make([]model.PartDescriptor, 0, totalParts)
	for n := int64(1); n <= totalParts; n++ {
		start := (n - 1) * chunkSize
		end := start + chunkSize
		if end > fileSize {
			end = fileSize
		}
		parts = append(parts, model.PartDescriptor{
			PartNumber:    int32(n),
			StartByte:     start,
			EndByte:       end,
			SourceLocator: sourceLocator,
		})
	}
	return parts
}

// clampChunkSize масштабирует размер части вверх, если разбиение
// исходным размером дало бы больше maxUploadParts частей — хранилище
// отвергает финализацию такого upload.
func clampChunkSize(fileSize, chunkSize int64) int64 {
	if (fileSize+chunkSize-1)/chunkSize <= maxUploadParts {
		return chunkSize
	}
	scaled := fileSize / maxUploadParts
	if fileSize%maxUploadParts != 0 {
		scaled++
	}
	return scaled
}

// WriteManifest вычисляет разбиение источника на части и персистит
// манифест на scratch. Возвращает путь манифеста и количество частей.
func (b *ManifestBuilder) WriteManifest(jobID, sourcePath string, fileSize, chunkSize int64) (string, int32, error) {
	if fileSize > 0 && chunkSize > 0 {
		chunkSize = clampChunkSize(fileSize, chunkSize)
	}
	parts := ComputeParts(sourcePath, fileSize, chunkSize)
	if len(parts) == 0 {
		return "", 0, fmt.Errorf("пустое разбиение: размер файла %d, размер части %d", fileSize, chunkSize)
	}

	manifest := partManifest{
		JobID:         jobID,
		SourcePath:    sourcePath,
		FileSizeBytes: fileSize,
		PartSizeBytes: chunkSize,
		TotalParts:    int32(len(parts)),
		Parts:         parts,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка сериализации манифеста: %w", err)
	}

	manifestKey := scratch.JobPath(jobID, ManifestName)
	if err := b.store.WriteFile(manifestKey, data); err != nil {
		return "", 0, fmt.Errorf("ошибка записи манифеста: %w", err)
	}
	return manifestKey, manifest.TotalParts, nil
}

// GetManifestBatch читает из манифеста части с номерами
// [rangeStart, rangeEnd] включительно. Чтение идемпотентно:
// одинаковые аргументы дают одинаковые дескрипторы.
func (b *ManifestBuilder) GetManifestBatch(manifestKey string, rangeStart, rangeEnd int32) ([]model.PartDescriptor, error) {
	if rangeStart < 1 || rangeEnd < rangeStart {
		return nil, fmt.Errorf("недопустимый диапазон частей [%d, %d]", rangeStart, rangeEnd)
	}

	data, err := b.store.ReadFile(manifestKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста: %w", err)
	}
	var manifest partManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("ошибка разбора манифеста: %w", err)
	}

	if rangeEnd > manifest.TotalParts {
		return nil, fmt.Errorf("диапазон [%d, %d] выходит за пределы манифеста из %d частей",
			rangeStart, rangeEnd, manifest.TotalParts)
	}

	batch := make([]model.PartDescriptor, 0, rangeEnd-rangeStart+1)
	for _, part := range manifest.Parts {
		if part.PartNumber >= rangeStart && part.PartNumber <= rangeEnd {
			batch = append(batch, part)
		}
	}
	return batch, nil
}
