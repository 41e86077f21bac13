package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HandlePanics logs a recovered panic and answers with a generic 500.
func HandlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		event := log.Ctx(c.Request.Context()).Error()
		if err, ok := recovered.(error); ok {
			event = event.Err(err)
		} else {
			event = event.Interface("panic", recovered)
		}
		event.Msg("recovered from panic")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
