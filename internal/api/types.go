package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aosanya/waterguard/internal/waterr"
)

// ErrorBody is the standard error shape from spec.md §6:
// {statusCode, timestamp, path, message, error?}.
type ErrorBody struct {
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
	Message    string    `json:"message"`
	Error      string    `json:"error,omitempty"`
}

// statusForKind maps a waterr.Kind to its HTTP status, per spec.md §6's table.
func statusForKind(kind waterr.Kind) int {
	switch kind {
	case waterr.InvalidInput:
		return 400
	case waterr.NotFound:
		return 404
	case waterr.Conflict:
		return 409
	default:
		return 500
	}
}

// RespondOK writes data as the 200 JSON body.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

// RespondCreated writes data as a 201 JSON body.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(201, data)
}

// RespondError writes err in the standard error envelope, choosing the
// status code from err's waterr.Kind when it carries one.
func RespondError(c *gin.Context, err error) {
	kind := waterr.KindOf(err)
	status := statusForKind(kind)
	body := ErrorBody{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		Path:       c.Request.URL.Path,
		Message:    err.Error(),
	}
	if kind != "" {
		body.Error = string(kind)
	}
	c.AbortWithStatusJSON(status, body)
}

// RespondValidationError writes a 400 InvalidInput-shaped error for a
// request that failed schema or bind validation before reaching service code.
func RespondValidationError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(400, ErrorBody{
		StatusCode: 400,
		Timestamp:  time.Now().UTC(),
		Path:       c.Request.URL.Path,
		Message:    message,
		Error:      string(waterr.InvalidInput),
	})
}
