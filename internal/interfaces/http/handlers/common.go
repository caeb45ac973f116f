// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps application error codes onto HTTP statuses.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeBadRequest, errors.ErrCodeValidation,
		errors.ErrCodeEmptyTranscript, errors.ErrCodeTermSourceInvalid:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeStageBusy:
		return http.StatusConflict
	case errors.ErrCodeModelNotReady, errors.ErrCodeServiceUnavailable,
		errors.ErrCodeTermStoreNotReady:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error response.  Internal errors are
// masked; everything else keeps its code and message for the caller.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, ErrorResponse{
			Code:    errors.ErrCodeInternal.String(),
			Message: "internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    errors.GetCode(err).String(),
		Message: err.Error(),
	})
}
