package storage

import (
	"context"
	"time"

	"educonsult/backend/internal/domain"
)

// ContactRepository 定义联系记录的数据存取操作。
//
// 所有实现对未知或格式错误的 ID 都返回包装了 domain.ErrNotFound 的错误。
// 不提供删除操作：联系记录一经创建永不物理删除。
type ContactRepository interface {
	// CreateContact 持久化新记录，并回填存储分配的 ID。
	CreateContact(ctx context.Context, contact *domain.Contact) error
	// ListContacts 按 SubmittedAt 倒序返回全部记录；集合为空时返回空切片。
	ListContacts(ctx context.Context) ([]domain.Contact, error)
	GetContact(ctx context.Context, id string) (*domain.Contact, error)
	// UpdateContactStatus 只修改 status 与 updatedAt 两个字段。
	UpdateContactStatus(ctx context.Context, id string, status domain.ContactStatus, updatedAt time.Time) error
}

// Store 聚合仓储接口与连接生命周期。
type Store interface {
	ContactRepository

	// Health 检查底层存储是否可用。
	Health(ctx context.Context) error
	// Close 释放连接池。
	Close(ctx context.Context) error
}
