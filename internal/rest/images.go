package rest

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dfryer1193/imgcrud/api"
	"github.com/dfryer1193/imgcrud/gallery/domain"
	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"
)

const (
	defaultContentType = "application/octet-stream"
	healthTimeout      = 2 * time.Second
)

// ImageService is the application surface the HTTP handlers call into.
type ImageService interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
	List(ctx context.Context) ([]domain.ImageSummary, error)
	View(ctx context.Context, id string) (*domain.ImageContent, error)
	Rename(ctx context.Context, id string, name string) (*domain.Image, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type ImageHandler struct {
	service        ImageService
	maxUploadBytes int64
}

func NewImageHandler(service ImageService, maxUploadBytes int64) *ImageHandler {
	return &ImageHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /upload with a multipart "image" file and "name" field.
func (h *ImageHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			respondError(c, domain.ErrInvalidImage("File too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, domain.ErrInvalidImage("File too large"))
			return
		}
		respondError(c, domain.ErrInvalidImage("No file uploaded"))
		return
	}

	name := c.PostForm("name")
	if name == "" {
		respondError(c, domain.ErrInvalidImage("Image name is required"))
		return
	}

	data, err := readFormFile(fileHeader)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.CodeInternal, "failed to read uploaded file"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	id, err := h.service.Upload(c.Request.Context(), name, data, contentType)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.UploadResponse{
		Message: "Image uploaded successfully",
		ID:      id,
	})
}

// List handles GET /images.
func (h *ImageHandler) List(c *gin.Context) {
	images, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]api.ImageSummary, 0, len(images))
	for _, img := range images {
		out = append(out, api.ImageSummary{
			ID:          img.ID,
			Name:        img.Name,
			ContentType: img.ContentType,
		})
	}

	c.JSON(http.StatusOK, out)
}

// View handles GET /images/:id/view. With ?download=1 the browser is told to
// save the image instead of displaying it.
func (h *ImageHandler) View(c *gin.Context) {
	id := c.Param("id")

	content, err := h.service.View(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("download") != "" {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": downloadName(id, content.ContentType),
		}))
	}

	c.Data(http.StatusOK, content.ContentType, content.Data)
}

// Rename handles PUT /images/:id with a JSON {"name": ...} body.
func (h *ImageHandler) Rename(c *gin.Context) {
	var req api.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondError(c, domain.ErrInvalidImage("Name is required"))
		return
	}

	img, err := h.service.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.Image{
		ID:          img.ID,
		Name:        img.Name,
		ContentType: img.ContentType,
		CreatedAt:   img.CreatedAt,
		UpdatedAt:   img.UpdatedAt,
	})
}

// Delete handles DELETE /images/:id.
func (h *ImageHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Image deleted successfully"})
}

// Health handles GET /healthz by pinging the store.
func (h *ImageHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readFormFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func downloadName(id string, contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return id
	}
	return id + exts[0]
}
