package middleware

import (
	"net/http"

	apierrors "github.com/aimerfeng/SkillStage/internal/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, err *apierrors.APIError) {
	requestID := GetRequestIDFromContext(c)
	correlationID := GetCorrelationIDFromContext(c)
	if correlationID == "" {
		correlationID = requestID
	}

	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(
		err,
		requestID,
		correlationID,
		c.Request.URL.Path,
		c.Request.Method,
	))
}

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CorrelationID propagates the upstream correlation ID, falling back to the
// request ID
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = c.GetString("request_id")
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// GetCorrelationIDFromContext extracts the correlation ID from the gin context
func GetCorrelationIDFromContext(c *gin.Context) string {
	return c.GetString("correlation_id")
}

// GetRequestIDFromContext extracts the request ID from the gin context
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString("request_id")
}

// CORS configures CORS headers
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, o := range allowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Correlation-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Correlation-ID, X-RateLimit-Remaining")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "43200")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
