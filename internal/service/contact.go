package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/monitoring"
	"educonsult/backend/internal/storage"
)

// EventPublisher 接收联系记录变更事件，实现方不得阻塞调用方
type EventPublisher interface {
	Publish(event domain.ContactEvent)
}

// ContactService 封装联系表单相关业务操作。
type ContactService struct {
	repo      storage.ContactRepository
	publisher EventPublisher
	metrics   *monitoring.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// Option 配置 ContactService 的可选依赖
type Option func(*ContactService)

// WithPublisher 设置事件发布器
func WithPublisher(p EventPublisher) Option {
	return func(s *ContactService) { s.publisher = p }
}

// WithMetrics 设置监控指标
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *ContactService) { s.metrics = m }
}

// WithClock 替换时间来源，测试用
func WithClock(now func() time.Time) Option {
	return func(s *ContactService) { s.now = now }
}

// NewContactService 创建联系表单业务服务。
func NewContactService(repo storage.ContactRepository, log *zap.Logger, opts ...Option) *ContactService {
	s := &ContactService{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create 校验并保存一次表单提交，返回新记录的 ID。
//
// 所有字段先去除首尾空白再校验；email 统一转为小写。新记录状态固定为 new。
func (s *ContactService) Create(ctx context.Context, input domain.ContactInput, sourceAddress string) (*domain.Contact, error) {
	normalized, err := input.Validate()
	if err != nil {
		return nil, err
	}

	contact := &domain.Contact{
		Name:          normalized.Name,
		Email:         normalized.Email,
		Phone:         normalized.Phone,
		Service:       normalized.Service,
		Message:       normalized.Message,
		Status:        domain.StatusNew,
		SubmittedAt:   s.now(),
		SourceAddress: sourceAddress,
	}

	if err := s.repo.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}

	s.log.Info("contact submitted",
		zap.String("contact_id", contact.ID),
		zap.String("name", contact.Name),
		zap.String("email", contact.Email),
		zap.String("service", contact.Service),
		zap.Time("submitted_at", contact.SubmittedAt),
		zap.String("source_address", sourceAddress),
	)
	s.metrics.RecordContactCreated()
	s.publish(domain.EventContactCreated, *contact)

	return contact, nil
}

// List 返回全部联系记录，最新的在前。
func (s *ContactService) List(ctx context.Context) ([]domain.Contact, error) {
	contacts, err := s.repo.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	return contacts, nil
}

// Get 根据 ID 获取联系记录。
func (s *ContactService) Get(ctx context.Context, id string) (*domain.Contact, error) {
	return s.repo.GetContact(ctx, id)
}

// UpdateStatus 修改记录状态并刷新 updatedAt，返回更新后的记录。
//
// 状态先于记录查找校验：非法状态即使 ID 不存在也返回校验错误。
func (s *ContactService) UpdateStatus(ctx context.Context, id string, rawStatus string) (*domain.Contact, error) {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	updatedAt := s.now()
	if err := s.repo.UpdateContactStatus(ctx, id, status, updatedAt); err != nil {
		return nil, err
	}

	// 更新已提交，回读失败只影响事件内容，不影响结果
	contact, err := s.repo.GetContact(ctx, id)
	if err != nil {
		s.log.Warn("failed to read contact after status update",
			zap.String("contact_id", id),
			zap.Error(err),
		)
		contact = &domain.Contact{ID: id, Status: status, UpdatedAt: &updatedAt}
	}

	s.log.Info("contact status updated",
		zap.String("contact_id", id),
		zap.String("status", string(status)),
	)
	s.metrics.RecordStatusUpdate(status)
	s.publish(domain.EventContactStatusUpdated, *contact)

	return contact, nil
}

func (s *ContactService) publish(eventType domain.ContactEventType, contact domain.Contact) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.ContactEvent{
		Type:       eventType,
		Contact:    contact,
		OccurredAt: s.now(),
	})
}
