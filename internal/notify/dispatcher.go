// Package notify 把联系记录事件分发给各个通知渠道。
//
// 投递是尽力而为的：队列满时直接丢弃，失败不重试，也不会影响请求结果。
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/domain"
	"educonsult/backend/internal/monitoring"
	"educonsult/backend/internal/pool"
)

// Sink 是一个通知渠道
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event domain.ContactEvent) error
}

// Dispatcher 在协程池上把事件投递给全部 Sink
type Dispatcher struct {
	pool    *pool.WorkerPool
	timeout time.Duration
	metrics *monitoring.Metrics
	log     *zap.Logger

	mu      sync.RWMutex
	sinks   []Sink
	stopped bool
}

// NewDispatcher 创建事件分发器，需调用 Start 后才开始投递
func NewDispatcher(cfg config.NotifyConfig, metrics *monitoring.Metrics, log *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		pool:    pool.NewWorkerPool(cfg.Workers, cfg.QueueSize, log),
		timeout: cfg.Timeout,
		metrics: metrics,
		log:     log,
		sinks:   sinks,
	}
}

// AddSink 注册通知渠道
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Start 启动投递协程
func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

// Publish 为每个 Sink 排队一次投递，从不阻塞
func (d *Dispatcher) Publish(event domain.ContactEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return
	}

	for _, sink := range d.sinks {
		sink := sink
		if !d.pool.TrySubmit(func() { d.deliver(sink, event) }) {
			d.log.Warn("notification queue full, event dropped",
				zap.String("sink", sink.Name()),
				zap.String("event", string(event.Type)),
				zap.String("contact_id", event.Contact.ID),
			)
			d.metrics.RecordNotification(sink.Name(), "dropped")
		}
	}
	d.metrics.UpdateNotificationsQueued(d.pool.Queued())
}

// Stop 停止接收事件并等待已排队的投递完成
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.pool.Stop()
	d.metrics.UpdateNotificationsQueued(0)
}

func (d *Dispatcher) deliver(sink Sink, event domain.ContactEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := sink.Deliver(ctx, event); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("sink", sink.Name()),
			zap.String("event", string(event.Type)),
			zap.String("contact_id", event.Contact.ID),
			zap.Error(err),
		)
		d.metrics.RecordNotification(sink.Name(), "error")
		return
	}

	d.log.Debug("notification delivered",
		zap.String("sink", sink.Name()),
		zap.String("event", string(event.Type)),
		zap.Duration("duration", time.Since(start)),
	)
	d.metrics.RecordNotification(sink.Name(), "ok")
}

// SinkFunc 把函数包装为 Sink
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, event domain.ContactEvent) error
}

// Name 实现 Sink
func (s SinkFunc) Name() string { return s.SinkName }

// Deliver 实现 Sink
func (s SinkFunc) Deliver(ctx context.Context, event domain.ContactEvent) error {
	return s.Fn(ctx, event)
}
