package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/metrics"
	"github.com/charlesng35/workpass/pkg/response"
)

// Recovery turns a handler panic into a JSON 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection as it intends.
func Recovery() gin.HandlerFunc {
	log := logger.WithModule("http")

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			metrics.PanicsRecovered.Inc()
			log.Error("handler panic",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithDetails(map[string]any{
		"route": fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path),
	}))
}

// MethodNotAllowedHandler answers known paths requested with the wrong verb.
func MethodNotAllowedHandler(c *gin.Context) {
	response.Error(c, errors.New("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed).
		WithDetails(map[string]any{"method": c.Request.Method}))
}
