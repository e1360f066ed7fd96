// Пакет objectstore — контракт объектного хранилища Export Module
// и его реализация поверх S3-совместимого API.
package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
)

// ObjectStore — операции объектного хранилища, необходимые оркестратору.
// Контракт закрывает и asset-бакет (источники), и export-бакет (артефакты).
type ObjectStore interface {
	// GetObject открывает поток чтения объекта asset-бакета.
	GetObject(ctx context.Context, locator string) (io.ReadCloser, error)
	// HeadObject возвращает размер объекта asset-бакета.
	HeadObject(ctx context.Context, locator string) (int64, error)
	// PutObject записывает объект export-бакета из потока.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error
	// CreateMultipartUpload начинает multipart upload в export-бакете.
	CreateMultipartUpload(ctx context.Context, key string) (uploadID string, err error)
	// UploadPart загружает одну часть. Возвращает eTag части.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (eTag string, err error)
	// CompleteMultipartUpload финализирует upload из полного набора частей.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []model.CompletedPart) (locator string, err error)
	// AbortMultipartUpload прерывает незавершённый upload (фоновая очистка).
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	// DeleteObject удаляет объект export-бакета.
	DeleteObject(ctx context.Context, key string) error
	// PresignGet возвращает время-ограниченную прямую ссылку на объект
	// asset-бакета.
	PresignGet(ctx context.Context, locator string, ttl time.Duration) (string, error)
	// PresignExportGet возвращает ссылку на готовый артефакт export-бакета.
	PresignExportGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
