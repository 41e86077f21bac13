package application

import (
	"context"

	"github.com/dfryer1193/imgcrud/gallery/domain"
	"github.com/rs/zerolog/log"
)

// ImageCache is the read cache the service keeps consistent with the store.
type ImageCache interface {
	GetList(ctx context.Context) ([]domain.ImageSummary, error)
	GetItem(ctx context.Context, id string) (*domain.ImageContent, error)
	InvalidateList()
	InvalidateItem(id string)
}

// ImageService serves reads from the cache and applies writes to the store,
// invalidating the affected cache keys once the store has confirmed a write.
type ImageService struct {
	store domain.ImageStore
	cache ImageCache
}

func NewImageService(store domain.ImageStore, cache ImageCache) *ImageService {
	return &ImageService{
		store: store,
		cache: cache,
	}
}

// Upload stores a new image and returns its id.
func (s *ImageService) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	img := &domain.Image{
		Name:        name,
		Data:        data,
		ContentType: contentType,
	}
	if err := img.Validate(); err != nil {
		return "", err
	}

	if err := s.store.CreateImage(ctx, img); err != nil {
		return "", err
	}
	s.cache.InvalidateList()

	log.Ctx(ctx).Info().
		Str("image_id", img.ID).
		Str("content_type", img.ContentType).
		Int("bytes", len(img.Data)).
		Msg("image uploaded")

	return img.ID, nil
}

// List returns all image summaries, newest first.
func (s *ImageService) List(ctx context.Context) ([]domain.ImageSummary, error) {
	return s.cache.GetList(ctx)
}

// View returns the bytes and content type of one image.
func (s *ImageService) View(ctx context.Context, id string) (*domain.ImageContent, error) {
	return s.cache.GetItem(ctx, id)
}

// Rename changes the name of an image. Cached bytes stay valid; only the
// list, which carries names, is invalidated.
func (s *ImageService) Rename(ctx context.Context, id string, name string) (*domain.Image, error) {
	if name == "" {
		return nil, domain.ErrInvalidImage("Name is required")
	}

	img, err := s.store.RenameImage(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateList()

	log.Ctx(ctx).Info().Str("image_id", id).Str("name", name).Msg("image renamed")

	return img, nil
}

// Delete removes an image and drops both its list and item cache entries.
func (s *ImageService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidateList()
	s.cache.InvalidateItem(id)

	log.Ctx(ctx).Info().Str("image_id", id).Msg("image deleted")

	return nil
}

// Ping reports whether the store is reachable.
func (s *ImageService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
