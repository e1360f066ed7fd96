package scratch

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}
	return s
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "scratch")
	if _, err := New(dir); err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Error("Ожидалась директория")
	}
}

func TestCreateAndAppend(t *testing.T) {
	s := newTestStore(t)
	rel := JobPath("job-1", "archive.zip")

	f, err := s.Create(rel)
	if err != nil {
		t.Fatalf("Ошибка создания файла: %v", err)
	}
	if _, err := f.Write([]byte("первая часть;")); err != nil {
		t.Fatalf("Ошибка записи: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Ошибка закрытия: %v", err)
	}

	af, err := s.OpenAppend(rel)
	if err != nil {
		t.Fatalf("Ошибка открытия для дозаписи: %v", err)
	}
	if _, err := af.Write([]byte("вторая часть")); err != nil {
		t.Fatalf("Ошибка дозаписи: %v", err)
	}
	if err := af.Close(); err != nil {
		t.Fatalf("Ошибка закрытия: %v", err)
	}

	data, err := s.ReadFile(rel)
	if err != nil {
		t.Fatalf("Ошибка чтения: %v", err)
	}
	if string(data) != "первая часть;вторая часть" {
		t.Errorf("Неожиданное содержимое: %q", string(data))
	}
}

func TestOpenAppendMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.OpenAppend(JobPath("job-x", "missing.bin"))
	if err == nil {
		t.Fatal("Ожидалась ошибка для несуществующего файла")
	}
	if !strings.Contains(err.Error(), "не найден") {
		t.Errorf("Неожиданный текст ошибки: %v", err)
	}
}

func TestOpenRange(t *testing.T) {
	s := newTestStore(t)
	rel := JobPath("job-2", "data.bin")
	if err := s.WriteFile(rel, []byte("0123456789")); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}

	r, err := s.OpenRange(rel, 2, 7)
	if err != nil {
		t.Fatalf("Ошибка открытия диапазона: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Ошибка чтения диапазона: %v", err)
	}
	if string(data) != "23456" {
		t.Errorf("Ожидалось '23456', получено %q", string(data))
	}
}

func TestOpenRangeInvalid(t *testing.T) {
	s := newTestStore(t)
	rel := JobPath("job-2", "data.bin")
	if err := s.WriteFile(rel, []byte("abc")); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}

	if _, err := s.OpenRange(rel, -1, 2); err == nil {
		t.Error("Ожидалась ошибка для отрицательного начала диапазона")
	}
	if _, err := s.OpenRange(rel, 5, 2); err == nil {
		t.Error("Ожидалась ошибка для диапазона с end < start")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	s := newTestStore(t)
	rel := JobPath("job-3", "manifest.json")

	if err := s.WriteFile(rel, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}
	// Перезапись существующего файла.
	if err := s.WriteFile(rel, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Ошибка перезаписи файла: %v", err)
	}

	data, err := s.ReadFile(rel)
	if err != nil {
		t.Fatalf("Ошибка чтения: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("Неожиданное содержимое: %q", string(data))
	}

	// Temp файл не должен остаться.
	if _, err := os.Stat(s.FullPath(rel) + ".tmp"); !os.IsNotExist(err) {
		t.Error("Временный файл не удалён после переименования")
	}
}

func TestSize(t *testing.T) {
	s := newTestStore(t)
	rel := JobPath("job-4", "archive.zip")
	if err := s.WriteFile(rel, make([]byte, 1024)); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}

	size, err := s.Size(rel)
	if err != nil {
		t.Fatalf("Ошибка получения размера: %v", err)
	}
	if size != 1024 {
		t.Errorf("Ожидался размер 1024, получен %d", size)
	}

	if _, err := s.Size(JobPath("job-4", "missing")); err == nil {
		t.Error("Ожидалась ошибка для несуществующего файла")
	}
}

func TestRemoveJob(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile(JobPath("job-5", "a.bin"), []byte("a")); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}
	if err := s.WriteFile(JobPath("job-5", "b.bin"), []byte("b")); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}

	if err := s.RemoveJob("job-5"); err != nil {
		t.Fatalf("Ошибка удаления директории задания: %v", err)
	}
	if _, err := os.Stat(s.FullPath("job-5")); !os.IsNotExist(err) {
		t.Error("Директория задания не удалена")
	}

	// Повторное удаление — не ошибка.
	if err := s.RemoveJob("job-5"); err != nil {
		t.Errorf("Повторное удаление вернуло ошибку: %v", err)
	}

	if err := s.RemoveJob(""); err == nil {
		t.Error("Ожидалась ошибка для пустого job id")
	}
}
