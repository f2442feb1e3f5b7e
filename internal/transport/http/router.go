package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/health"
	"educonsult/backend/internal/middleware"
	"educonsult/backend/internal/monitoring"
	"educonsult/backend/internal/service"
	"educonsult/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	ContactService *service.ContactService
	HealthChecker  *health.HealthChecker // 为空时不注册 /health 探针
	Metrics        *monitoring.Metrics   // 为空时不注册 /metrics
	WebSocketHub   *websocket.Hub        // 为空时不注册实时推送
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) (*gin.Engine, error) {
	router := gin.New()

	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		return nil, err
	}

	httpLog := deps.Logger.Named("http")
	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, httpLog)

	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(httpLog))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(deps.Config.Server.BodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Max-Body-Size"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。未配置来源时同样放开，与 WebSocket 一致。
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	contactHandler := NewContactHandler(deps.ContactService, httpLog)

	router.GET("/", contactHandler.Root)

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyHandler()))
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		api.POST("/contact", contactHandler.CreateContact)
		api.GET("/contacts", contactHandler.ListContacts)

		// 静态路径优先于 :id
		if deps.WebSocketHub != nil {
			api.GET("/contacts/stream", websocket.HandleWebSocket(deps.WebSocketHub))
		}

		api.GET("/contacts/:id", contactHandler.GetContact)
		api.PATCH("/contacts/:id/status", contactHandler.UpdateStatus)
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, MsgRouteNotFound)
	})

	return router, nil
}
