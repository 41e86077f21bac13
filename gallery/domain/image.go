package domain

import (
	"context"
	"time"
)

// Image is a stored image record. Everything except Name is fixed at creation.
type Image struct {
	ID          string
	Name        string
	Data        []byte
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ImageSummary is the list projection of an Image, without its bytes.
type ImageSummary struct {
	ID          string
	Name        string
	ContentType string
}

// ImageContent is the byte projection of an Image served by the view endpoint.
type ImageContent struct {
	Data        []byte
	ContentType string
}

// Summary projects out the image bytes.
func (img *Image) Summary() ImageSummary {
	return ImageSummary{
		ID:          img.ID,
		Name:        img.Name,
		ContentType: img.ContentType,
	}
}

// Content projects out the metadata.
func (img *Image) Content() *ImageContent {
	return &ImageContent{
		Data:        img.Data,
		ContentType: img.ContentType,
	}
}

// Validate checks the creation invariants of an image.
func (img *Image) Validate() error {
	if img == nil {
		return ErrInvalidImage("image cannot be nil")
	}
	if img.Name == "" {
		return ErrInvalidImage("Image name is required")
	}
	if len(img.Data) == 0 {
		return ErrInvalidImage("No file uploaded")
	}
	if img.ContentType == "" {
		return ErrInvalidImage("Image content type is required")
	}
	return nil
}

// ImageReader is the read side of ImageStore.
type ImageReader interface {
	// ListImages returns all images newest first, without their bytes.
	ListImages(ctx context.Context) ([]ImageSummary, error)

	// GetImage returns a single image, or a NotFound error.
	GetImage(ctx context.Context, id string) (*Image, error)
}

// ImageStore is the durable persistence for image records.
type ImageStore interface {
	ImageReader

	// CreateImage persists img and fills in its ID and timestamps.
	CreateImage(ctx context.Context, img *Image) error

	// RenameImage changes the name of an image and returns the updated record
	// without its bytes.
	RenameImage(ctx context.Context, id string, name string) (*Image, error)

	// DeleteImage removes an image, or returns a NotFound error.
	DeleteImage(ctx context.Context, id string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
