package service

import (
	"reflect"
	"testing"

	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

func TestComputePartsPartition(t *testing.T) {
	tests := []struct {
		name      string
		fileSize  int64
		chunkSize int64
		wantParts int
	}{
		{"файл меньше части", 10, 100, 1},
		{"файл ровно в одну часть", 100, 100, 1},
		{"ровное деление", 300, 100, 3},
		{"последняя часть короче", 250, 100, 3},
		{"один байт", 1, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := ComputeParts("src", tt.fileSize, tt.chunkSize)
			if len(parts) != tt.wantParts {
				t.Fatalf("Ожидалось %d частей, получено %d", tt.wantParts, len(parts))
			}

			// Диапазоны смежны, не пересекаются и покрывают [0, fileSize).
			var offset, total int64
			for i, part := range parts {
				if part.PartNumber != int32(i+1) {
					t.Errorf("Часть %d имеет номер %d", i, part.PartNumber)
				}
				if part.StartByte != offset {
					t.Errorf("Часть %d начинается с %d, ожидалось %d", part.PartNumber, part.StartByte, offset)
				}
				if part.Size() <= 0 || part.Size() > tt.chunkSize {
					t.Errorf("Часть %d имеет размер %d при размере части %d", part.PartNumber, part.Size(), tt.chunkSize)
				}
				offset = part.EndByte
				total += part.Size()
			}
			if total != tt.fileSize {
				t.Errorf("Сумма размеров частей %d не равна размеру файла %d", total, tt.fileSize)
			}
			if parts[len(parts)-1].EndByte != tt.fileSize {
				t.Errorf("Последняя часть заканчивается на %d, ожидалось %d", parts[len(parts)-1].EndByte, tt.fileSize)
			}
		})
	}
}

func TestComputePartsDegenerate(t *testing.T) {
	if parts := ComputeParts("src", 0, 100); parts != nil {
		t.Errorf("Для пустого файла ожидалось nil, получено %d частей", len(parts))
	}
	if parts := ComputeParts("src", 100, 0); parts != nil {
		t.Errorf("Для нулевого размера части ожидалось nil, получено %d частей", len(parts))
	}
}

// Разбиение никогда не превышает предел хранилища в 10000 частей:
// размер части масштабируется вверх, покрытие [0, fileSize) сохраняется.
func TestComputePartsCapsAtUploadLimit(t *testing.T) {
	const fileSize = 60007
	parts := ComputeParts("src", fileSize, 1)

	if len(parts) > maxUploadParts {
		t.Fatalf("Получено %d частей, предел %d", len(parts), maxUploadParts)
	}

	var offset, total int64
	for i, part := range parts {
		if part.PartNumber != int32(i+1) {
			t.Errorf("Часть %d имеет номер %d", i, part.PartNumber)
		}
		if part.StartByte != offset {
			t.Errorf("Часть %d начинается с %d, ожидалось %d", part.PartNumber, part.StartByte, offset)
		}
		offset = part.EndByte
		total += part.Size()
	}
	if total != fileSize {
		t.Errorf("Сумма размеров частей %d не равна размеру файла %d", total, fileSize)
	}

	// Разбиение, укладывающееся в предел, не масштабируется.
	exact := ComputeParts("src", 1000, 1)
	if len(exact) != 1000 {
		t.Errorf("Ожидалось 1000 частей без масштабирования, получено %d", len(exact))
	}
}

// Манифест отражает масштабированный размер частей: дескрипторы батчей
// согласованы с total_parts, и финализация upload не упрётся в предел.
func TestWriteManifestCapsAtUploadLimit(t *testing.T) {
	store, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания scratch-хранилища: %v", err)
	}
	builder := NewManifestBuilder(store)

	manifestKey, totalParts, err := builder.WriteManifest("job-1", "job-1/archive.zip", 25000, 1)
	if err != nil {
		t.Fatalf("Ошибка записи манифеста: %v", err)
	}
	if totalParts > maxUploadParts {
		t.Fatalf("Манифест из %d частей превышает предел %d", totalParts, maxUploadParts)
	}

	batch, err := builder.GetManifestBatch(manifestKey, 1, totalParts)
	if err != nil {
		t.Fatalf("Ошибка чтения батча: %v", err)
	}
	if int32(len(batch)) != totalParts {
		t.Errorf("Батч из %d дескрипторов не совпадает с total_parts %d", len(batch), totalParts)
	}
	if batch[len(batch)-1].EndByte != 25000 {
		t.Errorf("Последняя часть заканчивается на %d, ожидалось 25000", batch[len(batch)-1].EndByte)
	}
}

func TestManifestBatchIdempotent(t *testing.T) {
	store, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания scratch-хранилища: %v", err)
	}
	builder := NewManifestBuilder(store)

	manifestKey, totalParts, err := builder.WriteManifest("job-1", "job-1/archive.zip", 1050, 100)
	if err != nil {
		t.Fatalf("Ошибка записи манифеста: %v", err)
	}
	if totalParts != 11 {
		t.Fatalf("Ожидалось 11 частей, получено %d", totalParts)
	}

	first, err := builder.GetManifestBatch(manifestKey, 3, 7)
	if err != nil {
		t.Fatalf("Ошибка чтения батча: %v", err)
	}
	second, err := builder.GetManifestBatch(manifestKey, 3, 7)
	if err != nil {
		t.Fatalf("Ошибка повторного чтения батча: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Повторное чтение батча дало другие дескрипторы")
	}
	if len(first) != 5 {
		t.Fatalf("Ожидалось 5 дескрипторов в батче, получено %d", len(first))
	}
	for i, part := range first {
		if part.PartNumber != int32(i+3) {
			t.Errorf("Дескриптор %d имеет номер части %d", i, part.PartNumber)
		}
	}
}

func TestManifestBatchValidation(t *testing.T) {
	store, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания scratch-хранилища: %v", err)
	}
	builder := NewManifestBuilder(store)

	manifestKey, _, err := builder.WriteManifest("job-1", "job-1/archive.zip", 500, 100)
	if err != nil {
		t.Fatalf("Ошибка записи манифеста: %v", err)
	}

	if _, err := builder.GetManifestBatch(manifestKey, 0, 3); err == nil {
		t.Error("Ожидалась ошибка для номера части меньше 1")
	}
	if _, err := builder.GetManifestBatch(manifestKey, 3, 2); err == nil {
		t.Error("Ожидалась ошибка для перевёрнутого диапазона")
	}
	if _, err := builder.GetManifestBatch(manifestKey, 1, 6); err == nil {
		t.Error("Ожидалась ошибка для диапазона за пределами манифеста")
	}
	if _, err := builder.GetManifestBatch("job-1/нет-такого.json", 1, 2); err == nil {
		t.Error("Ожидалась ошибка для отсутствующего манифеста")
	}
}

func TestWriteManifestEmptySource(t *testing.T) {
	store, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания scratch-хранилища: %v", err)
	}
	if _, _, err := NewManifestBuilder(store).WriteManifest("job-1", "src", 0, 100); err == nil {
		t.Error("Ожидалась ошибка для пустого источника")
	}
}
