package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/repository"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

// countingRepo подсчитывает выборки истёкших заданий.
type countingRepo struct {
	repository.JobRepository
	listCalls int
}

func (r *countingRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	r.listCalls++
	return r.JobRepository.ListExpired(ctx, now, limit)
}

// failingDeleteStore эмулирует отказ хранилища на удалении артефактов.
type failingDeleteStore struct {
	objectstore.ObjectStore
}

func (s *failingDeleteStore) DeleteObject(context.Context, string) error {
	return fmt.Errorf("эмулированный отказ хранилища")
}

func expiredJob(i int, now time.Time, exportKey string) *model.Job {
	return &model.Job{
		JobID:     fmt.Sprintf("expired-%d", i),
		UserID:    "u",
		Status:    model.StatusCompleted,
		ExpiresAt: now.Add(-time.Hour),
		ExportKey: exportKey,
	}
}

func TestExpirySweep(t *testing.T) {
	h := newHarness(t, map[string]*model.AssetRef{}, harnessOptions{})
	svc := NewExpiryService(h.repo, h.store, h.objects, time.Hour, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	// Истёкшее задание с артефактом и scratch-остатками.
	expired := &model.Job{
		JobID:     "expired-1",
		UserID:    "u",
		Status:    model.StatusCompleted,
		ExpiresAt: now.Add(-time.Hour),
		ExportKey: "exports/expired-1/archive.zip",
	}
	if err := h.repo.Create(ctx, expired); err != nil {
		t.Fatalf("Ошибка создания задания: %v", err)
	}
	h.objects.objects[expired.ExportKey] = []byte("артефакт")
	if err := h.store.WriteFile(scratch.JobPath("expired-1", "archive.zip"), []byte("мусор")); err != nil {
		t.Fatalf("Ошибка записи scratch-файла: %v", err)
	}

	// Живое задание.
	alive := &model.Job{
		JobID:     "alive-1",
		UserID:    "u",
		Status:    model.StatusCompleted,
		ExpiresAt: now.Add(time.Hour),
		ExportKey: "exports/alive-1/archive.zip",
	}
	if err := h.repo.Create(ctx, alive); err != nil {
		t.Fatalf("Ошибка создания задания: %v", err)
	}
	h.objects.objects[alive.ExportKey] = []byte("артефакт")

	svc.Sweep(ctx)

	if _, err := h.repo.GetByID(ctx, "expired-1"); err == nil {
		t.Error("Истёкшее задание не удалено")
	}
	if _, ok := h.objects.object(expired.ExportKey); ok {
		t.Error("Артефакт истёкшего задания не удалён")
	}
	if _, err := h.store.Size(scratch.JobPath("expired-1", "archive.zip")); err == nil {
		t.Error("Scratch-файл истёкшего задания не удалён")
	}

	if _, err := h.repo.GetByID(ctx, "alive-1"); err != nil {
		t.Error("Живое задание удалено очисткой")
	}
	if _, ok := h.objects.object(alive.ExportKey); !ok {
		t.Error("Артефакт живого задания удалён очисткой")
	}
}

// Пакет истёкших заданий без единой успешной очистки завершает проход:
// повторная выборка вернула бы тот же пакет, и до восстановления
// хранилища проход превратился бы в горячий цикл по БД и S3.
func TestExpirySweepStopsWithoutProgress(t *testing.T) {
	h := newHarness(t, map[string]*model.AssetRef{}, harnessOptions{})
	repo := &countingRepo{JobRepository: h.repo}
	objects := &failingDeleteStore{ObjectStore: h.objects}
	svc := NewExpiryService(repo, h.store, objects, time.Hour, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 150; i++ {
		job := expiredJob(i, now, fmt.Sprintf("exports/expired-%d/archive.zip", i))
		if err := h.repo.Create(ctx, job); err != nil {
			t.Fatalf("Ошибка создания задания: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		svc.Sweep(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sweep не завершился на пакете без прогресса")
	}

	if repo.listCalls != 1 {
		t.Errorf("Ожидалась одна выборка истёкших заданий, выполнено %d", repo.listCalls)
	}
	// Задания остаются до восстановления хранилища.
	if _, err := h.repo.GetByID(ctx, "expired-0"); err != nil {
		t.Error("Истёкшее задание удалено несмотря на отказ хранилища")
	}
}

// Успешный проход выбирает пакеты до полного опустошения.
func TestExpirySweepDrainsFullBatches(t *testing.T) {
	h := newHarness(t, map[string]*model.AssetRef{}, harnessOptions{})
	repo := &countingRepo{JobRepository: h.repo}
	svc := NewExpiryService(repo, h.store, h.objects, time.Hour, testLogger())
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 150; i++ {
		if err := h.repo.Create(ctx, expiredJob(i, now, "")); err != nil {
			t.Fatalf("Ошибка создания задания: %v", err)
		}
	}

	svc.Sweep(ctx)

	for i := 0; i < 150; i++ {
		if _, err := h.repo.GetByID(ctx, fmt.Sprintf("expired-%d", i)); err == nil {
			t.Fatalf("Истёкшее задание %d не удалено", i)
		}
	}
	if repo.listCalls != 2 {
		t.Errorf("Ожидались две выборки истёкших заданий, выполнено %d", repo.listCalls)
	}
}

// Незавершённый multipart upload провалившегося задания прерывается
// при очистке, чтобы хранилище освободило накопленные части.
func TestExpiryAbortsUnfinishedUpload(t *testing.T) {
	h := newHarness(t, map[string]*model.AssetRef{}, harnessOptions{})
	svc := NewExpiryService(h.repo, h.store, h.objects, time.Hour, testLogger())
	ctx := context.Background()

	uploadID, err := h.objects.CreateMultipartUpload(ctx, "exports/failed-1/archive.zip")
	if err != nil {
		t.Fatalf("Ошибка создания upload: %v", err)
	}

	failed := &model.Job{
		JobID:     "failed-1",
		UserID:    "u",
		Status:    model.StatusFailed,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := h.repo.Create(ctx, failed); err != nil {
		t.Fatalf("Ошибка создания задания: %v", err)
	}
	session := &model.MultipartUploadSession{
		UploadID:  uploadID,
		TargetKey: "exports/failed-1/archive.zip",
	}
	if err := h.repo.SetMultipartSession(ctx, "failed-1", session); err != nil {
		t.Fatalf("Ошибка записи сессии: %v", err)
	}

	svc.Sweep(ctx)

	if len(h.objects.aborted) != 1 || h.objects.aborted[0] != uploadID {
		t.Errorf("Upload не прерван очисткой: %v", h.objects.aborted)
	}
	if _, err := h.repo.GetByID(ctx, "failed-1"); err == nil {
		t.Error("Запись провалившегося задания не удалена")
	}
}
