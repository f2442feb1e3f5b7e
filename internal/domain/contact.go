package domain

import "time"

// ContactStatus 表示联系记录的后台处理状态。
type ContactStatus string

const (
	StatusNew        ContactStatus = "new"
	StatusContacted  ContactStatus = "contacted"
	StatusInProgress ContactStatus = "in-progress"
	StatusCompleted  ContactStatus = "completed"
	StatusClosed     ContactStatus = "closed"
)

// ContactStatuses 按工作流顺序列出全部合法状态。
var ContactStatuses = []ContactStatus{
	StatusNew,
	StatusContacted,
	StatusInProgress,
	StatusCompleted,
	StatusClosed,
}

// Valid 判断状态是否属于固定枚举。
func (s ContactStatus) Valid() bool {
	for _, status := range ContactStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Contact 表示一次联系表单提交。
//
// ID 与 SubmittedAt 在创建后不可变；只有 Status 与 UpdatedAt 可以通过状态更新修改。
type Contact struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Service       string        `json:"service"`
	Message       string        `json:"message"`
	Status        ContactStatus `json:"status"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	UpdatedAt     *time.Time    `json:"updatedAt,omitempty"`
	SourceAddress string        `json:"sourceAddress,omitempty"`
}

// ContactInput 是创建联系记录时调用方提供的原始字段。
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// StatusUpdate 是状态更新请求体。
type StatusUpdate struct {
	Status ContactStatus `json:"status"`
}
