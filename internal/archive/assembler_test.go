package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/storage/scratch"
)

// fakeObjectStore — тестовый двойник объектного хранилища поверх map.
type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) GetObject(_ context.Context, locator string) (io.ReadCloser, error) {
	data, ok := f.objects[locator]
	if !ok {
		return nil, fmt.Errorf("объект %s не найден", locator)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) HeadObject(_ context.Context, locator string) (int64, error) {
	data, ok := f.objects[locator]
	if !ok {
		return 0, fmt.Errorf("объект %s не найден", locator)
	}
	return int64(len(data)), nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) CreateMultipartUpload(context.Context, string) (string, error) {
	return "", fmt.Errorf("не реализовано")
}

func (f *fakeObjectStore) UploadPart(context.Context, string, string, int32, io.Reader, int64) (string, error) {
	return "", fmt.Errorf("не реализовано")
}

func (f *fakeObjectStore) CompleteMultipartUpload(context.Context, string, string, []model.CompletedPart) (string, error) {
	return "", fmt.Errorf("не реализовано")
}

func (f *fakeObjectStore) AbortMultipartUpload(context.Context, string, string) error {
	return fmt.Errorf("не реализовано")
}

func (f *fakeObjectStore) DeleteObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, locator string, _ time.Duration) (string, error) {
	return "https://example.com/" + locator, nil
}

func (f *fakeObjectStore) PresignExportGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://example.com/export/" + key, nil
}

func newTestStore(t *testing.T) *scratch.Store {
	t.Helper()
	store, err := scratch.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания scratch-хранилища: %v", err)
	}
	return store
}

func TestAssemblerBuildsArchive(t *testing.T) {
	store := newTestStore(t)
	objects := &fakeObjectStore{objects: map[string][]byte{
		"assets/a1": []byte("содержимое первого файла"),
		"assets/a2": []byte("содержимое второго файла"),
		"assets/a3": bytes.Repeat([]byte("x"), 4096),
	}}

	asm := NewAssembler(store, objects)
	handle, err := asm.Initialize("job-1")
	if err != nil {
		t.Fatalf("Ошибка инициализации архива: %v", err)
	}

	refs := []*model.AssetRef{
		{AssetID: "a1", StorageLocator: "assets/a1", Filename: "first.txt"},
		{AssetID: "a2", StorageLocator: "assets/a2", Filename: "second.txt"},
		{AssetID: "a3", StorageLocator: "assets/a3"},
	}
	for _, ref := range refs {
		if handle, err = asm.Append(context.Background(), handle, ref); err != nil {
			t.Fatalf("Ошибка добавления ассета %s: %v", ref.AssetID, err)
		}
	}

	if err := asm.Finalize(); err != nil {
		t.Fatalf("Ошибка финализации архива: %v", err)
	}

	zr, err := zip.OpenReader(store.FullPath(handle.ScratchPath))
	if err != nil {
		t.Fatalf("Ошибка открытия собранного архива: %v", err)
	}
	defer zr.Close()

	wantNames := []string{"first.txt", "second.txt", "a3"}
	if len(zr.File) != len(wantNames) {
		t.Fatalf("Ожидалось %d entries в архиве, получено %d", len(wantNames), len(zr.File))
	}
	for i, want := range wantNames {
		if zr.File[i].Name != want {
			t.Errorf("Entry %d: ожидалось имя %q, получено %q", i, want, zr.File[i].Name)
		}
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("Ошибка открытия entry: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Ошибка чтения entry: %v", err)
	}
	if string(data) != "содержимое первого файла" {
		t.Errorf("Содержимое entry не совпадает с исходным: %q", data)
	}
}

func TestAssemblerAppendMissingAsset(t *testing.T) {
	store := newTestStore(t)
	objects := &fakeObjectStore{objects: map[string][]byte{}}

	asm := NewAssembler(store, objects)
	handle, err := asm.Initialize("job-2")
	if err != nil {
		t.Fatalf("Ошибка инициализации архива: %v", err)
	}

	_, err = asm.Append(context.Background(), handle, &model.AssetRef{
		AssetID:        "missing",
		StorageLocator: "assets/missing",
	})
	if err == nil {
		t.Fatal("Ожидалась ошибка при добавлении отсутствующего ассета")
	}
	asm.Discard()
}

func TestAssemblerAppendWithoutInitialize(t *testing.T) {
	asm := NewAssembler(newTestStore(t), &fakeObjectStore{objects: map[string][]byte{}})
	_, err := asm.Append(context.Background(), model.ArchiveHandle{JobID: "job-3"}, &model.AssetRef{AssetID: "a1"})
	if err == nil {
		t.Fatal("Ожидалась ошибка Append без Initialize")
	}
}

func TestAssemblerRejectsForeignHandle(t *testing.T) {
	store := newTestStore(t)
	asm := NewAssembler(store, &fakeObjectStore{objects: map[string][]byte{}})
	if _, err := asm.Initialize("job-4"); err != nil {
		t.Fatalf("Ошибка инициализации архива: %v", err)
	}
	defer asm.Discard()

	_, err := asm.Append(context.Background(), model.ArchiveHandle{JobID: "other"}, &model.AssetRef{AssetID: "a1"})
	if err == nil {
		t.Fatal("Ожидалась ошибка для handle чужого задания")
	}
}
