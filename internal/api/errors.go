package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/queryexec/internal/model"
)

// Codes for failures raised by the HTTP layer itself.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeRateLimited = "RATE_LIMITED"
	CodeInternal    = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a core error to its HTTP status.
func statusFor(err error) (int, string) {
	code := model.CodeOf(err)
	switch code {
	case model.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case model.ErrCodeValidation, model.ErrCodeExecution:
		return http.StatusBadRequest, string(code)
	case model.ErrCodePoolSaturated:
		return http.StatusServiceUnavailable, string(code)
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// abortWithError renders err and stops the handler chain. Errors without a
// core code are logged by the request logger and hidden from the client.
func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if code == CodeInternal {
		message = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}

func abortBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Message: message})
}
