package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/monitoring"
)

// collectingSink 记录收到的事件
type collectingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []domain.ContactEvent
}

func (s *collectingSink) Name() string { return s.name }

func (s *collectingSink) Deliver(_ context.Context, event domain.ContactEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *collectingSink) received() []domain.ContactEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ContactEvent(nil), s.events...)
}

func testEvent(id string) domain.ContactEvent {
	return domain.ContactEvent{
		Type:       domain.EventContactCreated,
		Contact:    domain.Contact{ID: id, Name: "Ravi", Status: domain.StatusNew},
		OccurredAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	ok := &collectingSink{name: "ok"}
	failing := &collectingSink{name: "failing", err: errors.New("unreachable")}

	d := NewDispatcher(config.NotifyConfig{Workers: 2, QueueSize: 8, Timeout: time.Second}, metrics, zap.NewNop(), ok)
	d.AddSink(failing)
	d.Start(context.Background())

	d.Publish(testEvent("a"))
	d.Publish(testEvent("b"))
	d.Stop()

	assert.Len(t, ok.received(), 2)
	assert.Len(t, failing.received(), 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("ok", "ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("failing", "error")))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	sink := &collectingSink{name: "slow"}

	// 未启动时没有消费者，队列容量为 1
	d := NewDispatcher(config.NotifyConfig{Workers: 1, QueueSize: 1, Timeout: time.Second}, metrics, zap.NewNop(), sink)
	d.Publish(testEvent("a"))
	d.Publish(testEvent("b"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("slow", "dropped")))

	d.Start(context.Background())
	d.Stop()

	events := sink.received()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Contact.ID)
}

func TestDispatcher_IgnoresPublishAfterStop(t *testing.T) {
	sink := &collectingSink{name: "s"}
	d := NewDispatcher(config.NotifyConfig{Workers: 1, QueueSize: 4, Timeout: time.Second}, nil, zap.NewNop(), sink)
	d.Start(context.Background())
	d.Stop()

	assert.NotPanics(t, func() { d.Publish(testEvent("late")) })
	assert.Empty(t, sink.received())
}

func TestDispatcher_AppliesTimeout(t *testing.T) {
	var deadlineSet bool
	sink := SinkFunc{SinkName: "deadline", Fn: func(ctx context.Context, _ domain.ContactEvent) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}}

	d := NewDispatcher(config.NotifyConfig{Workers: 1, QueueSize: 1, Timeout: 50 * time.Millisecond}, nil, zap.NewNop(), sink)
	d.Start(context.Background())
	d.Publish(testEvent("a"))
	d.Stop()

	assert.True(t, deadlineSet)
}
