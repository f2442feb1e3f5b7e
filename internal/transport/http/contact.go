package httptransport

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/middleware"
	"educonsult/backend/internal/service"
)

// ContactHandler 处理联系表单相关请求
type ContactHandler struct {
	contacts *service.ContactService
	log      *zap.Logger
	now      func() time.Time
}

// NewContactHandler 创建联系表单处理器
func NewContactHandler(contacts *service.ContactService, log *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contacts: contacts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type rootResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Root 服务运行状态
// GET /
func (h *ContactHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, rootResponse{
		Status:    "success",
		Message:   MsgAPIRunning,
		Timestamp: h.now(),
	})
}

// CreateContact 提交联系表单
// POST /api/contact
func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req domain.ContactInput
	if err := bindJSON(c, &req); err != nil {
		h.bindError(c, err)
		return
	}

	contact, err := h.contacts.Create(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	Created(c, MsgContactCreated, contact.ID)
}

// ListContacts 获取全部联系记录，最新的在前
// GET /api/contacts
func (h *ContactHandler) ListContacts(c *gin.Context) {
	contacts, err := h.contacts.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	SuccessList(c, len(contacts), contacts)
}

// GetContact 获取单条联系记录
// GET /api/contacts/:id
func (h *ContactHandler) GetContact(c *gin.Context) {
	contact, err := h.contacts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	Success(c, contact)
}

// UpdateStatus 修改联系记录状态
// PATCH /api/contacts/:id/status
func (h *ContactHandler) UpdateStatus(c *gin.Context) {
	var req domain.StatusUpdate
	if err := bindJSON(c, &req); err != nil {
		h.bindError(c, err)
		return
	}

	if _, err := h.contacts.UpdateStatus(c.Request.Context(), c.Param("id"), string(req.Status)); err != nil {
		writeError(c, h.log, err)
		return
	}

	SuccessWithMsg(c, MsgStatusUpdated)
}

// bindJSON 解析 JSON 请求体，空请求体按 {} 处理
func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bindError 请求体无法解析：超限返回 413，其余视为校验失败
func (h *ContactHandler) bindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		writeError(c, h.log, err)
		return
	}
	h.log.Debug("invalid request body", zap.Error(err))
	writeError(c, h.log, &domain.ValidationError{Rule: domain.RuleInvalidBody})
}
