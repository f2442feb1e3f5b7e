package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/middleware"
)

// 校验规则 -> 响应消息
var validationMessages = map[string]string{
	domain.RuleMissingField:  MsgMissingField,
	domain.RuleBadEmail:      MsgInvalidEmail,
	domain.RuleInvalidStatus: MsgInvalidStatus,
	domain.RuleInvalidBody:   MsgInvalidBody,
}

// 通用响应消息
const (
	MsgAPIRunning      = "EduConsult API is running!"
	MsgContactCreated  = "Contact form submitted successfully"
	MsgStatusUpdated   = "Contact status updated successfully"
	MsgMissingField    = "All fields are required"
	MsgInvalidEmail    = "Invalid email format"
	MsgInvalidStatus   = "Invalid status"
	MsgInvalidBody     = "Invalid request body"
	MsgBodyTooLarge    = "Request body too large"
	MsgContactNotFound = "Contact not found"
	MsgRouteNotFound   = "Route not found"
	MsgInternalError   = "Internal server error"
)

// writeError 把业务错误转换为统一的失败响应
//
// 未识别的错误一律 500，细节只写日志。
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		msg, ok := validationMessages[ve.Rule]
		if !ok {
			msg = ve.Error()
		}
		BadRequest(c, msg)
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, MsgContactNotFound)
	case middleware.IsBodyTooLarge(err):
		Error(c, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		InternalError(c, MsgInternalError)
	}
}
