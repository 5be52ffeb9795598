package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/garyellow/line-carousel-composer/internal/audience"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/gin-gonic/gin"
)

// Error codes returned in the "error" field.
const (
	codeUploadRejected    = "upload_rejected"
	codeCropFailed        = "crop_failed"
	codeStructureRejected = "structure_edit_rejected"
	codeCapacityExceeded  = "capacity_exceeded"
	codeValidationFailed  = "validation_failed"
	codeInvalidInput      = "invalid_input"
	codeNotFound          = "not_found"
	codeSuperseded        = "superseded"
	codeRateLimited       = "rate_limited"
	codeTimeout           = "timeout"
	codeInternal          = "internal"
)

const (
	msgInternal    = "系統發生錯誤，請稍後再試"
	msgBadRequest  = "請求格式不正確"
	msgRateLimited = "操作太頻繁，請稍後再試"
	msgSuperseded  = "已有較新的查詢"
	msgTimeout     = "處理逾時，請稍後再試"
)

type errorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Problems []string `json:"problems,omitempty"`
}

// classify maps err to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case domerrors.IsUploadRejected(err):
		return http.StatusBadRequest, codeUploadRejected
	case domerrors.IsCropFailed(err):
		return http.StatusUnprocessableEntity, codeCropFailed
	case domerrors.IsStructureEditRejected(err):
		return http.StatusConflict, codeStructureRejected
	case domerrors.IsCapacityExceeded(err):
		return http.StatusConflict, codeCapacityExceeded
	case domerrors.IsValidationFailed(err):
		return http.StatusUnprocessableEntity, codeValidationFailed
	case domerrors.IsInvalidInput(err):
		return http.StatusBadRequest, codeInvalidInput
	case domerrors.IsNotFound(err):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, audience.ErrSuperseded):
		return http.StatusConflict, codeSuperseded
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	}
	return http.StatusInternalServerError, codeInternal
}

// respondError writes the JSON error body for err and records it.
func (a *Application) respondError(c *gin.Context, err error) {
	status, code := classify(err)

	resp := errorResponse{Error: code, Problems: domerrors.Problems(err)}
	switch code {
	case codeInternal:
		// Raw error text stays in the logs
		msg, ok := domerrors.UserMessage(err)
		if !ok {
			msg = msgInternal
		}
		resp.Message = msg
		a.logger.WithError(err).
			WithField("http_path", c.FullPath()).
			WithField("origin", domerrors.Origin(err)).
			ErrorContext(c.Request.Context(), "Request failed")
	case codeSuperseded:
		resp.Message = msgSuperseded
	case codeTimeout:
		resp.Message = msgTimeout
	case codeValidationFailed:
		resp.Message = "尚有必填欄位未完成"
	default:
		resp.Message = domerrors.GetUserMessage(err)
	}

	a.metrics.RecordHTTPError(code, c.FullPath())
	c.AbortWithStatusJSON(status, resp)
}

// badRequest rejects a malformed body or path parameter.
func (a *Application) badRequest(c *gin.Context, field string, cause error) {
	err := domerrors.NewValidationError(field, cause.Error())
	a.respondError(c, domerrors.NewWrapper("http", "bind").Wrap(err, msgBadRequest))
}

// rateLimited answers 429 with a Retry-After rounded up to whole seconds.
func (a *Application) rateLimited(c *gin.Context, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	a.metrics.RecordHTTPError(codeRateLimited, c.FullPath())
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
		Error:   codeRateLimited,
		Message: msgRateLimited,
	})
}
