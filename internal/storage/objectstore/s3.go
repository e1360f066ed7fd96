// s3.go — реализация ObjectStore поверх aws-sdk-go-v2 (S3-совместимое
// хранилище: MinIO, Ceph RGW, AWS S3). Endpoint и static credentials
// задаются конфигурацией; path-style для совместимости с MinIO.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bigkaa/goartstore/export-module/internal/config"
	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
)

// ErrObjectNotFound — объект отсутствует в хранилище.
var ErrObjectNotFound = errors.New("объект не найден в хранилище")

// S3Store — ObjectStore поверх S3 API: asset-бакет для чтения источников,
// export-бакет для готовых артефактов.
type S3Store struct {
	client       *s3.Client
	presigner    *s3.PresignClient
	assetBucket  string
	exportBucket string
}

// NewS3Store создаёт клиент S3 из конфигурации Export Module.
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации AWS SDK: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = cfg.S3ForcePathStyle
	})

	return &S3Store{
		client:       client,
		presigner:    s3.NewPresignClient(client),
		assetBucket:  cfg.S3AssetBucket,
		exportBucket: cfg.S3ExportBucket,
	}, nil
}

// CheckReady проверяет доступность export-бакета через HeadBucket.
// Реализует интерфейс handlers.ReadinessChecker.
func (s *S3Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.exportBucket),
	})
	if err != nil {
		return "fail", fmt.Sprintf("S3 недоступен: %v", err)
	}
	return "ok", "бакет " + s.exportBucket + " доступен"
}

func (s *S3Store) GetObject(ctx context.Context, locator string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.assetBucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, locator)
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s: %w", locator, err)
	}
	return out.Body, nil
}

func (s *S3Store) HeadObject(ctx context.Context, locator string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.assetBucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrObjectNotFound, locator)
		}
		return 0, fmt.Errorf("ошибка head объекта %s: %w", locator, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) PutObject(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.exportBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("ошибка записи объекта %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.exportBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка создания multipart upload %s: %w", key, err)
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3Store) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body io.Reader, size int64) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.exportBucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки части %d: %w", partNumber, err)
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3Store) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []model.CompletedPart) (string, error) {
	// S3 API требует части в порядке возрастания номеров; fan-out
	// подтверждает их в произвольном порядке.
	sorted := make([]model.CompletedPart, len(parts))
	copy(sorted, parts)
	slices.SortFunc(sorted, func(a, b model.CompletedPart) int {
		return int(a.PartNumber - b.PartNumber)
	})

	completed := make([]types.CompletedPart, 0, len(sorted))
	for _, p := range sorted {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.exportBucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ошибка финализации multipart upload %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Store) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.exportBucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("ошибка прерывания multipart upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.exportBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	return s.presign(ctx, s.assetBucket, locator, ttl)
}

func (s *S3Store) PresignExportGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.presign(ctx, s.exportBucket, key, ttl)
}

func (s *S3Store) presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	presigned, err := s.presigner.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации presigned URL %s: %w", key, err)
	}
	return presigned.URL, nil
}

// isNotFound распознаёт ответы NotFound/NoSuchKey S3 API.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
