// Пакет scratch — общая scratch-директория сборки export-артефактов.
// POSIX-хранилище, ключуемое job id: каждое задание владеет поддиректорией
// {scratchDir}/{jobID} на время сборки. Доступно всем worker-ам процесса.
package scratch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store — операции со scratch-файлами заданий.
type Store struct {
	// dataDir — корневая scratch-директория (EM_SCRATCH_DIR)
	dataDir string
}

// New создаёт Store. Проверяет и создаёт директорию, если она не существует.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать scratch-директорию %s: %w", dataDir, err)
	}
	return &Store{dataDir: dataDir}, nil
}

// JobPath возвращает относительный путь файла внутри поддиректории задания.
func JobPath(jobID, name string) string {
	return filepath.Join(jobID, name)
}

// FullPath возвращает абсолютный путь к scratch-файлу.
func (s *Store) FullPath(relPath string) string {
	return filepath.Join(s.dataDir, relPath)
}

// Create создаёт новый файл задания (вместе с поддиректорией).
// Существующий файл усекается. Вызывающий код обязан закрыть файл.
func (s *Store) Create(relPath string) (*os.File, error) {
	fullPath := s.FullPath(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории задания: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания scratch-файла %s: %w", relPath, err)
	}
	return f, nil
}

// OpenAppend открывает файл задания для дозаписи в конец.
// Вызывающий код обязан закрыть файл и сериализовать дозапись
// (инвариант single-writer обеспечивает оркестратор).
func (s *Store) OpenAppend(relPath string) (*os.File, error) {
	f, err := os.OpenFile(s.FullPath(relPath), os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scratch-файл не найден: %s", relPath)
		}
		return nil, fmt.Errorf("ошибка открытия scratch-файла %s: %w", relPath, err)
	}
	return f, nil
}

// Open открывает файл задания для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (s *Store) Open(relPath string) (*os.File, error) {
	f, err := os.Open(s.FullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scratch-файл не найден: %s", relPath)
		}
		return nil, fmt.Errorf("ошибка открытия scratch-файла %s: %w", relPath, err)
	}
	return f, nil
}

// OpenRange возвращает reader байтового диапазона [start, end) файла.
// Используется worker-ами загрузки частей: манифест безопасен для
// конкурентных читателей, сам файл к этому моменту уже не растёт.
func (s *Store) OpenRange(relPath string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("некорректный диапазон [%d, %d)", start, end)
	}

	f, err := s.Open(relPath)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка seek в scratch-файле %s: %w", relPath, err)
	}

	return &rangeReader{f: f, remaining: end - start}, nil
}

// rangeReader ограничивает чтение файла длиной диапазона.
type rangeReader struct {
	f         *os.File
	remaining int64
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.f.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *rangeReader) Close() error {
	return r.f.Close()
}

// WriteFile атомарно записывает файл задания.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) WriteFile(relPath string, data []byte) error {
	fullPath := s.FullPath(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("ошибка создания директории задания: %w", err)
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// ReadFile возвращает содержимое файла задания целиком.
func (s *Store) ReadFile(relPath string) ([]byte, error) {
	data, err := os.ReadFile(s.FullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scratch-файл не найден: %s", relPath)
		}
		return nil, fmt.Errorf("ошибка чтения scratch-файла %s: %w", relPath, err)
	}
	return data, nil
}

// Size возвращает размер файла задания в байтах.
func (s *Store) Size(relPath string) (int64, error) {
	info, err := os.Stat(s.FullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("scratch-файл не найден: %s", relPath)
		}
		return 0, fmt.Errorf("ошибка stat scratch-файла %s: %w", relPath, err)
	}
	return info.Size(), nil
}

// RemoveJob удаляет поддиректорию задания со всеми файлами.
// Возвращает nil, если директории уже нет.
func (s *Store) RemoveJob(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("пустой job id")
	}
	if err := os.RemoveAll(filepath.Join(s.dataDir, jobID)); err != nil {
		return fmt.Errorf("ошибка удаления scratch-директории задания %s: %w", jobID, err)
	}
	return nil
}
