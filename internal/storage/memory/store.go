package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/storage"
)

// Store 使用内存保存联系记录，主要用于开发验证和测试。
type Store struct {
	mu       sync.RWMutex
	contacts map[string]*entry
	seq      uint64
	closed   bool
}

// entry 记录插入序号，用于 SubmittedAt 相同时保持稳定的倒序。
type entry struct {
	contact domain.Contact
	seq     uint64
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		contacts: make(map[string]*entry),
	}
}

// CreateContact 保存联系记录并分配 ID。
func (s *Store) CreateContact(_ context.Context, contact *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory store closed")
	}

	contact.ID = uuid.NewString()
	s.seq++
	s.contacts[contact.ID] = &entry{contact: cloneContact(*contact), seq: s.seq}
	return nil
}

// ListContacts 返回全部联系记录的快照，最新的在前。
func (s *Store) ListContacts(_ context.Context) ([]domain.Contact, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.contacts))
	for _, e := range s.contacts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.contact.SubmittedAt.Equal(b.contact.SubmittedAt) {
			return a.contact.SubmittedAt.After(b.contact.SubmittedAt)
		}
		return a.seq > b.seq
	})

	result := make([]domain.Contact, 0, len(entries))
	for _, e := range entries {
		result = append(result, cloneContact(e.contact))
	}
	return result, nil
}

// GetContact 根据 ID 获取联系记录。
func (s *Store) GetContact(_ context.Context, id string) (*domain.Contact, error) {
	s.mu.RLock()
	e, ok := s.contacts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get contact %q: %w", id, domain.ErrNotFound)
	}

	contact := cloneContact(e.contact)
	return &contact, nil
}

// UpdateContactStatus 更新状态与更新时间。
func (s *Store) UpdateContactStatus(_ context.Context, id string, status domain.ContactStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.contacts[id]
	if !ok {
		return fmt.Errorf("update contact %q: %w", id, domain.ErrNotFound)
	}

	e.contact.Status = status
	e.contact.UpdatedAt = &updatedAt
	return nil
}

// Health 健康检查
func (s *Store) Health(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

// Close 内存存储不需要关闭连接，仅拒绝后续写入。
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// cloneContact 复制 UpdatedAt 指针，避免调用方修改内部状态。
func cloneContact(c domain.Contact) domain.Contact {
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}
