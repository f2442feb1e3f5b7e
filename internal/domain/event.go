package domain

import "time"

// ContactEventType 联系记录事件类型
type ContactEventType string

const (
	EventContactCreated       ContactEventType = "contact.created"
	EventContactStatusUpdated ContactEventType = "contact.status_updated"
)

// ContactEvent 在联系记录创建或状态变化后发布，用于通知运营人员。
//
// 事件投递是尽力而为的，不影响请求结果。
type ContactEvent struct {
	Type       ContactEventType `json:"type"`
	Contact    Contact          `json:"contact"`
	OccurredAt time.Time        `json:"occurredAt"`
}
