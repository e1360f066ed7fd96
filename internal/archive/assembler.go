// Пакет archive — сборка zip-архива задания на scratch-хранилище.
//
// Контракт single-writer: все вызовы Append для одного Assembler обязан
// сериализовать вызывающий код (оркестратор выполняет fan-out мелких
// ассетов с concurrency = 1). Внутренних блокировок пакет не держит.
// Ошибка любого Append фатальна для всей стадии сборки: частичный архив
// не финализируется.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

// ArchiveName — имя архива в поддиректории задания.
const ArchiveName = "archive.zip"

// Prometheus-метрики сборки архивов.
var (
	archiveAppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "em_archive_appends_total",
		Help: "Общее количество append-операций сборки архивов (по статусу).",
	}, []string{"status"})

	archiveAppendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "em_archive_append_duration_seconds",
		Help:    "Длительность добавления одного ассета в архив.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Assembler — однозадачный сборщик архива: создаётся на задание,
// живёт от Initialize до Finalize/Discard.
type Assembler struct {
	store   *scratch.Store
	objects objectstore.ObjectStore

	handle model.ArchiveHandle
	file   *os.File
	zw     *zip.Writer
}

// NewAssembler создаёт сборщик архива поверх scratch-хранилища.
func NewAssembler(store *scratch.Store, objects objectstore.ObjectStore) *Assembler {
	return &Assembler{store: store, objects: objects}
}

// Initialize создаёт пустой архив на свежем scratch-пути задания
// и возвращает ArchiveHandle.
func (a *Assembler) Initialize(jobID string) (model.ArchiveHandle, error) {
	relPath := scratch.JobPath(jobID, ArchiveName)

	f, err := a.store.Create(relPath)
	if err != nil {
		return model.ArchiveHandle{}, fmt.Errorf("ошибка инициализации архива: %w", err)
	}

	a.handle = model.ArchiveHandle{JobID: jobID, ScratchPath: relPath}
	a.file = f
	a.zw = zip.NewWriter(f)
	return a.handle, nil
}

// Append дописывает один ассет в архив и возвращает handle для чейнинга.
// Порядок entries — строго порядок вызовов Append.
func (a *Assembler) Append(ctx context.Context, handle model.ArchiveHandle, ref *model.AssetRef) (model.ArchiveHandle, error) {
	if a.zw == nil {
		return handle, fmt.Errorf("архив не инициализирован")
	}
	if handle.JobID != a.handle.JobID {
		return handle, fmt.Errorf("handle чужого задания: %s", handle.JobID)
	}

	start := time.Now()

	body, err := a.objects.GetObject(ctx, ref.StorageLocator)
	if err != nil {
		archiveAppendsTotal.WithLabelValues("error").Inc()
		return handle, fmt.Errorf("ошибка чтения ассета %s: %w", ref.AssetID, err)
	}
	defer body.Close()

	entry, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     entryName(ref),
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	})
	if err != nil {
		archiveAppendsTotal.WithLabelValues("error").Inc()
		return handle, fmt.Errorf("ошибка создания entry %s: %w", ref.AssetID, err)
	}

	if _, err := io.Copy(entry, body); err != nil {
		archiveAppendsTotal.WithLabelValues("error").Inc()
		return handle, fmt.Errorf("ошибка записи ассета %s в архив: %w", ref.AssetID, err)
	}

	archiveAppendsTotal.WithLabelValues("ok").Inc()
	archiveAppendDuration.Observe(time.Since(start).Seconds())
	return handle, nil
}

// Finalize закрывает central directory архива и сам файл.
// После Finalize архив готов к multipart upload.
func (a *Assembler) Finalize() error {
	if a.zw == nil {
		return fmt.Errorf("архив не инициализирован")
	}

	if err := a.zw.Close(); err != nil {
		a.file.Close()
		return fmt.Errorf("ошибка финализации архива: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		a.file.Close()
		return fmt.Errorf("ошибка fsync архива: %w", err)
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия архива: %w", err)
	}

	a.zw = nil
	a.file = nil
	return nil
}

// Discard закрывает файл без финализации (стадия сборки провалилась).
// Частичный архив остаётся на scratch до фоновой очистки задания.
func (a *Assembler) Discard() {
	if a.file != nil {
		a.file.Close()
		a.file = nil
		a.zw = nil
	}
}

// entryName возвращает имя entry в архиве: оригинальное имя файла,
// при его отсутствии — id ассета.
func entryName(ref *model.AssetRef) string {
	if ref.Filename != "" {
		return ref.Filename
	}
	return ref.AssetID
}
