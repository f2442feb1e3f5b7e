//go:build integration

package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"educonsult/backend/internal/config"
	redisstore "educonsult/backend/internal/storage/redis"
)

func TestRedisBridge_RelaysBetweenInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cfg := &config.RedisConfig{Address: fmt.Sprintf("%s:%d", host, port.Int()), Channel: "educonsult:test"}
	client, err := redisstore.New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	localA := &collectingSink{name: "hub-a"}
	localB := &collectingSink{name: "hub-b"}
	bridgeA := NewRedisBridge(client, cfg.Channel, zap.NewNop(), localA)
	bridgeB := NewRedisBridge(client, cfg.Channel, zap.NewNop(), localB)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = bridgeA.Run(runCtx) }()
	go func() { _ = bridgeB.Run(runCtx) }()

	// 订阅建立需要一点时间，重复发布直到 B 收到
	require.Eventually(t, func() bool {
		_ = bridgeA.Deliver(ctx, testEvent("from-a"))
		return len(localB.received()) > 0
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, "from-a", localB.received()[0].Contact.ID)
	assert.Empty(t, localA.received())
}
