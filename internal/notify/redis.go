package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"educonsult/backend/internal/domain"
)

// relayTimeout 限制把远端事件转交给本地 Sink 的耗时
const relayTimeout = 5 * time.Second

// PubSub 是 RedisBridge 依赖的 Redis 操作
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) *goredis.PubSub
}

// envelope 是频道上的消息格式，Instance 用于忽略自己发布的事件
type envelope struct {
	Instance string              `json:"instance"`
	Event    domain.ContactEvent `json:"event"`
}

// RedisBridge 通过 Redis 频道在多个实例间同步联系事件
//
// 作为 Sink 时把本实例的事件发布到频道；Run 订阅同一频道，
// 把其他实例的事件转交给本地 Sink（例如 websocket hub）。
type RedisBridge struct {
	client   PubSub
	channel  string
	instance string
	local    []Sink
	log      *zap.Logger
}

// NewRedisBridge 创建 Redis 事件桥
func NewRedisBridge(client PubSub, channel string, log *zap.Logger, local ...Sink) *RedisBridge {
	return &RedisBridge{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		local:    local,
		log:      log,
	}
}

// Name 实现 Sink
func (b *RedisBridge) Name() string { return "redis" }

// Instance 返回本实例标识
func (b *RedisBridge) Instance() string { return b.instance }

// Deliver 把事件发布到频道
func (b *RedisBridge) Deliver(ctx context.Context, event domain.ContactEvent) error {
	payload, err := json.Marshal(envelope{Instance: b.instance, Event: event})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Run 订阅频道并转发远端事件，直到 ctx 结束
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// 等待订阅确认，连接失败时尽早返回
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.log.Info("redis event bridge subscribed",
		zap.String("channel", b.channel),
		zap.String("instance", b.instance),
	)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.handleMessage(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) handleMessage(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("discarding malformed event", zap.Error(err))
		return
	}
	if env.Instance == b.instance {
		return
	}

	for _, sink := range b.local {
		relayCtx, cancel := context.WithTimeout(ctx, relayTimeout)
		if err := sink.Deliver(relayCtx, env.Event); err != nil {
			b.log.Warn("relay of remote event failed",
				zap.String("sink", sink.Name()),
				zap.String("from_instance", env.Instance),
				zap.Error(err),
			)
		}
		cancel()
	}
}
