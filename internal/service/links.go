package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/storage/objectstore"
)

// LinkGenerator — Direct-Link Generator: выдаёт время-ограниченные
// прямые ссылки на крупные ассеты. Чистая функция от (assetID, locator),
// общего изменяемого состояния нет, поэтому fan-out не сериализуется.
type LinkGenerator struct {
	objects     objectstore.ObjectStore
	concurrency int
	defaultTTL  time.Duration
	logger      *slog.Logger
}

// NewLinkGenerator создаёт генератор с ограничением параллелизма
// и глобальным TTL ссылок.
func NewLinkGenerator(objects objectstore.ObjectStore, concurrency int, defaultTTL time.Duration, logger *slog.Logger) *LinkGenerator {
	return &LinkGenerator{
		objects:     objects,
		concurrency: concurrency,
		defaultTTL:  defaultTTL,
		logger:      logger.With(slog.String("component", "link_generator")),
	}
}

// Generate выдаёт прямые ссылки на все переданные ассеты с ограниченным
// параллелизмом. Ошибка по любому ассету проваливает весь батч: частичный
// результат не возвращается. Порядок ссылок соответствует порядку refs.
func (g *LinkGenerator) Generate(ctx context.Context, refs []*model.AssetRef, opts model.JobOptions) ([]model.DirectLink, error) {
	if len(refs) == 0 {
		// Пустая ветвь fan-out: валидный результат, не отсутствие.
		return []model.DirectLink{}, nil
	}

	ttl := g.defaultTTL
	if opts.LinkTTL > 0 {
		ttl = opts.LinkTTL
	}

	links := make([]model.DirectLink, len(refs))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.concurrency)

	for i, ref := range refs {
		grp.Go(func() error {
			url, err := g.objects.PresignGet(grpCtx, ref.StorageLocator, ttl)
			if err != nil {
				return fmt.Errorf("ошибка генерации ссылки для ассета %s: %w", ref.AssetID, err)
			}
			links[i] = model.DirectLink{
				AssetID:   ref.AssetID,
				URL:       url,
				ExpiresAt: time.Now().UTC().Add(ttl),
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	g.logger.Debug("Прямые ссылки сгенерированы",
		slog.Int("count", len(links)),
		slog.String("ttl", ttl.String()))
	return links, nil
}
