package rest

import (
	"github.com/dfryer1193/imgcrud/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewApi registers the image routes on router. reg may be nil, in which case
// /metrics is not served. Upload bodies over maxUploadBytes are rejected; zero
// disables the limit.
func NewApi(router *gin.Engine, service ImageService, reg *metrics.Registry, maxUploadBytes int64) {
	router.Use(cors.Default())

	h := NewImageHandler(service, maxUploadBytes)

	router.POST("/upload", h.Upload)

	images := router.Group("/images")
	{
		images.GET("", h.List)
		images.GET("/:id/view", h.View)
		images.PUT("/:id", h.Rename)
		images.DELETE("/:id", h.Delete)
	}

	router.GET("/healthz", h.Health)
	if reg != nil {
		router.GET("/metrics", reg.Handler)
	}
}
