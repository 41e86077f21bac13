package rest

import (
	"context"
	"net/http"

	"github.com/dfryer1193/imgcrud/api"
	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"
	"github.com/rs/zerolog/log"
)

const (
	serverErrorMessage = "Server error"

	// statusClientClosedRequest is the nginx convention for a request the
	// client gave up on before a response was written.
	statusClientClosedRequest = 499
)

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Server-side failures are
// logged and their details withheld from the client.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("request abandoned by client")
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) && errors.GetCode(err) == errors.CodeUnknown {
		err = errors.Wrap(err, errors.CodeTimeout, "store read timed out")
	}

	resp := errors.ToJSON(err)
	status := statusFor(errors.GetCode(err))

	message := resp.Message
	if status == http.StatusGatewayTimeout {
		log.Ctx(ctx).Warn().Err(err).Str("code", resp.Code).Msg("request timed out")
		message = serverErrorMessage
	} else if status >= http.StatusInternalServerError {
		log.Ctx(ctx).Error().Err(err).Str("code", resp.Code).Msg("request failed")
		_ = c.Error(err)
		message = serverErrorMessage
	}

	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Error: message,
		Code:  resp.Code,
	})
}
