package server

import (
	"errors"
	"time"

	"marketchart/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey    = "requestID"
	userKey         = "user"
	headerRequestID = "X-Request-ID"
)

// RequestLogging logs each request with a request ID, also returned in the
// X-Request-ID header.
func RequestLogging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.NewString()
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(headerRequestID, requestID)

		c.Next()

		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Verifier checks a username and password.
type Verifier interface {
	Verify(username, password string) (bool, error)
}

// BasicAuth rejects requests without valid HTTP basic credentials.
func BasicAuth(users Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if ok {
			valid, err := users.Verify(username, password)
			if err != nil {
				logger.Error("credentials check failed", zap.String("user", username), zap.Error(err))
			}
			if valid {
				c.Set(userKey, username)
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Basic realm="marketchart", charset="UTF-8"`)
		respondWithError(c, logger, apperrors.ErrUnauthorized)
	}
}

// ErrorHandler renders the last error set on the context as
// {"error":{"code","message"}}. Errors other than *AppError are logged and
// reported as internal errors.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		respondWithError(c, logger, c.Errors.Last().Err)
	}
}

func respondWithError(c *gin.Context, logger *zap.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Warn("app error",
			zap.String("code", appErr.Code),
			zap.NamedError("internal", appErr.Internal),
			zap.String("path", c.Request.URL.Path),
		)
	}

	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
