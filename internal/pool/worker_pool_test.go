package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	p := NewWorkerPool(3, 10, zap.NewNop())
	p.Start(context.Background())

	var done atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, p.TrySubmit(func() { done.Add(1) }))
	}
	p.Stop()

	assert.Equal(t, int32(10), done.Load())
}

func TestWorkerPool_TrySubmitWhenFull(t *testing.T) {
	p := NewWorkerPool(1, 1, zap.NewNop())

	// 未启动的池不会消费任务，队列容量为 1
	assert.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
	assert.Equal(t, 1, p.Queued())

	p.Start(context.Background())
	p.Stop()
	assert.Equal(t, 0, p.Queued())
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	p := NewWorkerPool(1, 2, zap.NewNop())
	p.Start(context.Background())

	var ran atomic.Bool
	require.True(t, p.TrySubmit(func() { panic("boom") }))
	require.True(t, p.TrySubmit(func() { ran.Store(true) }))
	p.Stop()

	assert.True(t, ran.Load())
}

func TestWorkerPool_StopTwice(t *testing.T) {
	p := NewWorkerPool(2, 2, zap.NewNop())
	p.Start(context.Background())
	p.Stop()
	assert.NotPanics(t, p.Stop)
}
