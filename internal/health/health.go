package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

const (
	checkTimeout       = 5 * time.Second
	goroutineThreshold = 1000
)

// Pinger 是可以探测连通性的依赖（存储、Redis 等）
type Pinger interface {
	Health(ctx context.Context) error
}

// PingerFunc 让普通函数满足 Pinger
type PingerFunc func(ctx context.Context) error

// Health 实现 Pinger
func (f PingerFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	ready  map[string]healthcheck.Check
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器，store 为必需的就绪检查
func NewHealthChecker(store Pinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		ready:  make(map[string]healthcheck.Check),
		logger: logger,
	}

	// 协程数量过多视为进程异常
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(goroutineThreshold))

	hc.AddDependency("database", store)
	return hc
}

// AddDependency 注册一个就绪检查
func (hc *HealthChecker) AddDependency(name string, dep Pinger) {
	check := healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		return dep.Health(ctx)
	}, checkTimeout)

	hc.ready[name] = check
	hc.health.AddReadinessCheck(name, check)
}

// LiveHandler 进程存活探针
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 依赖就绪探针
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行全部就绪检查并返回每项结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string, len(hc.ready))
	for name, check := range hc.ready {
		if err := check(); err != nil {
			results[name] = "ERROR: " + err.Error()
		} else {
			results[name] = "OK"
		}
	}
	return results
}

// StartPeriodicHealthCheck 定期执行就绪检查并记录失败项，直到 ctx 结束
func (hc *HealthChecker) StartPeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, result := range hc.CheckHealth() {
				if result != "OK" {
					hc.logger.Warn("dependency health check failed",
						zap.String("dependency", name),
						zap.String("result", result),
					)
				}
			}
		}
	}
}
