package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presence-service/internal/response"
	"presence-service/internal/util"
)

// Recovery turns a panic into a 500 response. A panic caused by the client
// hanging up (common for unload beacons) is logged at warn level and no body
// is written.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				zap.Any("error", rec),
				zap.String("error_type", fmt.Sprintf("%T", rec)),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			}
			if userID, ok := c.Get(util.ContextUserID); ok {
				fields = append(fields, zap.Any("user_id", userID))
			}

			if err, ok := rec.(error); ok && isClientGone(err) {
				logger.Warn("Client disconnected", fields...)
				c.Abort()
				return
			}

			logger.Error("Panic recovered", append(fields, zap.Stack("stacktrace"))...)
			response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, "Internal server error")
		}()

		c.Next()
	}
}

func isClientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, http.ErrAbortHandler)
}
