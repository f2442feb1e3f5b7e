package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/monitoring"
	"educonsult/backend/internal/storage/memory"
)

// MockRepository 模拟存储接口
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateContact(ctx context.Context, contact *domain.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *MockRepository) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Contact), args.Error(1)
}

func (m *MockRepository) GetContact(ctx context.Context, id string) (*domain.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}

func (m *MockRepository) UpdateContactStatus(ctx context.Context, id string, status domain.ContactStatus, updatedAt time.Time) error {
	args := m.Called(ctx, id, status, updatedAt)
	return args.Error(0)
}

// recordingPublisher 记录收到的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ContactEvent
}

func (p *recordingPublisher) Publish(event domain.ContactEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Minute)
		return t
	}
}

func validInput() domain.ContactInput {
	return domain.ContactInput{
		Name:    "  Priya Sharma ",
		Email:   " Priya@Example.COM ",
		Phone:   " +91 98765 43210",
		Service: "study-abroad ",
		Message: "  Looking for MS programs  ",
	}
}

func TestContactService_Create(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("规范化后保存并返回记录", func(t *testing.T) {
		store := memory.NewStore()
		pub := &recordingPublisher{}
		metrics := monitoring.NewMetrics(prometheus.NewRegistry())
		svc := NewContactService(store, zap.NewNop(),
			WithClock(fixedClock(start)),
			WithPublisher(pub),
			WithMetrics(metrics),
		)

		created, err := svc.Create(context.Background(), validInput(), "203.0.113.9")
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := svc.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Priya Sharma", got.Name)
		assert.Equal(t, "priya@example.com", got.Email)
		assert.Equal(t, "+91 98765 43210", got.Phone)
		assert.Equal(t, "study-abroad", got.Service)
		assert.Equal(t, "Looking for MS programs", got.Message)
		assert.Equal(t, domain.StatusNew, got.Status)
		assert.Equal(t, start, got.SubmittedAt)
		assert.Nil(t, got.UpdatedAt)
		assert.Equal(t, "203.0.113.9", got.SourceAddress)

		require.Len(t, pub.events, 1)
		assert.Equal(t, domain.EventContactCreated, pub.events[0].Type)
		assert.Equal(t, created.ID, pub.events[0].Contact.ID)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ContactsCreated))
	})

	t.Run("空白字段被拒绝且不保存", func(t *testing.T) {
		store := memory.NewStore()
		pub := &recordingPublisher{}
		svc := NewContactService(store, zap.NewNop(), WithPublisher(pub))

		input := validInput()
		input.Service = "   "
		_, err := svc.Create(context.Background(), input, "")

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, domain.RuleMissingField, ve.Rule)
		assert.Equal(t, "service", ve.Field)

		list, err := svc.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.Empty(t, pub.events)
	})

	t.Run("邮箱格式错误", func(t *testing.T) {
		svc := NewContactService(memory.NewStore(), zap.NewNop())

		input := validInput()
		input.Email = "priya@example"
		_, err := svc.Create(context.Background(), input, "")

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, domain.RuleBadEmail, ve.Rule)
	})

	t.Run("存储失败不发布事件", func(t *testing.T) {
		repo := new(MockRepository)
		pub := &recordingPublisher{}
		repo.On("CreateContact", mock.Anything, mock.AnythingOfType("*domain.Contact")).
			Return(errors.New("connection refused"))

		svc := NewContactService(repo, zap.NewNop(), WithPublisher(pub))
		_, err := svc.Create(context.Background(), validInput(), "")

		require.Error(t, err)
		assert.False(t, domain.IsValidationError(err))
		assert.Empty(t, pub.events)
		repo.AssertExpectations(t)
	})
}

func TestContactService_List(t *testing.T) {
	t.Run("空集合返回空切片", func(t *testing.T) {
		svc := NewContactService(memory.NewStore(), zap.NewNop())
		list, err := svc.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("按创建时间倒序", func(t *testing.T) {
		start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
		svc := NewContactService(memory.NewStore(), zap.NewNop(), WithClock(fixedClock(start)))

		var ids []string
		for _, name := range []string{"A", "B", "C"} {
			input := validInput()
			input.Name = name
			c, err := svc.Create(context.Background(), input, "")
			require.NoError(t, err)
			ids = append(ids, c.ID)
		}

		list, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"C", "B", "A"}, []string{list[0].Name, list[1].Name, list[2].Name})
		assert.Equal(t, ids[2], list[0].ID)
	})

	t.Run("nil 结果被替换为空切片", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ListContacts", mock.Anything).Return(nil, nil)

		svc := NewContactService(repo, zap.NewNop())
		list, err := svc.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, list)
	})
}

func TestContactService_UpdateStatus(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*ContactService, *recordingPublisher, string) {
		t.Helper()
		pub := &recordingPublisher{}
		svc := NewContactService(memory.NewStore(), zap.NewNop(),
			WithClock(fixedClock(start)),
			WithPublisher(pub),
		)
		c, err := svc.Create(context.Background(), validInput(), "")
		require.NoError(t, err)
		return svc, pub, c.ID
	}

	t.Run("合法状态更新", func(t *testing.T) {
		svc, pub, id := setup(t)

		updated, err := svc.UpdateStatus(context.Background(), id, "in-progress")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, updated.Status)
		require.NotNil(t, updated.UpdatedAt)
		assert.Equal(t, start.Add(2*time.Minute), *updated.UpdatedAt)

		// 其他字段保持不变
		assert.Equal(t, "Priya Sharma", updated.Name)
		assert.Equal(t, "priya@example.com", updated.Email)
		assert.Equal(t, start, updated.SubmittedAt)

		require.Len(t, pub.events, 2)
		assert.Equal(t, domain.EventContactStatusUpdated, pub.events[1].Type)
		assert.Equal(t, domain.StatusInProgress, pub.events[1].Contact.Status)
	})

	t.Run("非法状态被拒绝且不修改记录", func(t *testing.T) {
		svc, _, id := setup(t)

		_, err := svc.UpdateStatus(context.Background(), id, "archived")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, domain.RuleInvalidStatus, ve.Rule)

		got, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNew, got.Status)
		assert.Nil(t, got.UpdatedAt)
	})

	t.Run("状态校验先于记录查找", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.UpdateStatus(context.Background(), "missing", "archived")
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("记录不存在", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.UpdateStatus(context.Background(), "missing", "closed")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("更新成功后回读失败仍返回成功", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("UpdateContactStatus", mock.Anything, "c-1", domain.StatusClosed, start).Return(nil)
		repo.On("GetContact", mock.Anything, "c-1").Return(nil, errors.New("connection reset"))

		pub := &recordingPublisher{}
		svc := NewContactService(repo, zap.NewNop(),
			WithClock(fixedClock(start)),
			WithPublisher(pub),
		)

		updated, err := svc.UpdateStatus(context.Background(), "c-1", "closed")
		require.NoError(t, err)
		assert.Equal(t, "c-1", updated.ID)
		assert.Equal(t, domain.StatusClosed, updated.Status)
		require.NotNil(t, updated.UpdatedAt)
		assert.Equal(t, start, *updated.UpdatedAt)

		require.Len(t, pub.events, 1)
		assert.Equal(t, domain.EventContactStatusUpdated, pub.events[0].Type)
		assert.Equal(t, "c-1", pub.events[0].Contact.ID)
		repo.AssertExpectations(t)
	})
}
