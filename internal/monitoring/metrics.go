package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"educonsult/backend/internal/domain"
)

// Metrics 监控指标
//
// 所有 Record 方法对 nil 接收者安全，未启用监控的组件可以直接传 nil。
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 联系记录指标
	ContactsCreated prometheus.Counter
	StatusUpdates   *prometheus.CounterVec

	// 通知指标
	NotificationsTotal  *prometheus.CounterVec
	NotificationsQueued prometheus.Gauge
	WebsocketClients    prometheus.Gauge

	// 错误指标
	PanicsTotal prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics 在指定注册表上创建监控指标
//
// 生产环境传 prometheus.DefaultRegisterer；测试传 prometheus.NewRegistry() 避免重复注册。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "educonsult_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "educonsult_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ContactsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "educonsult_contacts_created_total",
				Help: "Total number of contact submissions stored",
			},
		),

		StatusUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "educonsult_contact_status_updates_total",
				Help: "Total number of contact status updates by new status",
			},
			[]string{"status"},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "educonsult_notifications_total",
				Help: "Contact event deliveries by sink and result",
			},
			[]string{"sink", "result"},
		),

		NotificationsQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "educonsult_notifications_queued",
				Help: "Contact events waiting for a dispatch worker",
			},
		),

		WebsocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "educonsult_websocket_clients",
				Help: "Number of connected admin feed listeners",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "educonsult_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordContactCreated 记录新联系记录
func (m *Metrics) RecordContactCreated() {
	if m == nil {
		return
	}
	m.ContactsCreated.Inc()
}

// RecordStatusUpdate 记录状态更新
func (m *Metrics) RecordStatusUpdate(status domain.ContactStatus) {
	if m == nil {
		return
	}
	m.StatusUpdates.WithLabelValues(string(status)).Inc()
}

// RecordNotification 记录一次事件投递结果，result 为 "ok"、"error" 或 "dropped"
func (m *Metrics) RecordNotification(sink, result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(sink, result).Inc()
}

// UpdateNotificationsQueued 更新等待投递的事件数
func (m *Metrics) UpdateNotificationsQueued(n int) {
	if m == nil {
		return
	}
	m.NotificationsQueued.Set(float64(n))
}

// UpdateWebsocketClients 更新在线监听数
func (m *Metrics) UpdateWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Set(float64(n))
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
