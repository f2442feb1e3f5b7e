package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"educonsult/backend/internal/config"
	"educonsult/backend/internal/health"
	"educonsult/backend/internal/logger"
	"educonsult/backend/internal/monitoring"
	"educonsult/backend/internal/notify"
	"educonsult/backend/internal/service"
	"educonsult/backend/internal/storage"
	"educonsult/backend/internal/storage/memory"
	mongostore "educonsult/backend/internal/storage/mongo"
	"educonsult/backend/internal/storage/postgres"
	redisstore "educonsult/backend/internal/storage/redis"
	sqlstore "educonsult/backend/internal/storage/sql"
	httptransport "educonsult/backend/internal/transport/http"
	"educonsult/backend/internal/websocket"
)

const (
	version             = "1.0.0"
	shutdownTimeout     = 5 * time.Second
	healthCheckInterval = 30 * time.Second
)

// main 启动联系表单 API 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting educonsult server",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层：连接成功后才开始接收请求
	store, err := initializeStorage(ctx, cfg, log.Named("store"))
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := health.NewHealthChecker(store, log)

	// 事件分发
	notifyLog := log.Named("notify")
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, metrics, log.Named("websocket"))
	dispatcher := notify.NewDispatcher(cfg.Notify, metrics, notifyLog, wsHub)

	var bridge *notify.RedisBridge
	var redisClient *redisstore.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redisstore.New(ctx, &cfg.Redis, notifyLog)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		healthChecker.AddDependency("redis", redisClient)

		// 远端实例的事件只推送给本机监听者
		bridge = notify.NewRedisBridge(redisClient, cfg.Redis.Channel, notifyLog, wsHub)
		dispatcher.AddSink(bridge)
		log.Info("redis event bridge enabled",
			zap.String("address", cfg.Redis.Address),
			zap.String("channel", cfg.Redis.Channel),
		)
	}

	if cfg.SMTP.Enabled() {
		dispatcher.AddSink(notify.NewMailSink(cfg.SMTP))
		log.Info("operator mail notifications enabled",
			zap.String("smtp", cfg.SMTP.Address),
			zap.Strings("to", cfg.SMTP.To),
		)
	}

	// 投递协程不跟随信号退出，由 Stop 排空队列
	dispatcher.Start(context.Background())

	// 初始化服务层
	contactService := service.NewContactService(store, log.Named("service"),
		service.WithPublisher(dispatcher),
		service.WithMetrics(metrics),
	)

	router, err := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		ContactService: contactService,
		HealthChecker:  healthChecker,
		Metrics:        metrics,
		WebSocketHub:   wsHub,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("failed to build router", zap.Error(err))
	}

	httpAddr := cfg.Server.Addr()
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	if bridge != nil {
		group.Go(func() error {
			return bridge.Run(groupCtx)
		})
	}

	// 依赖健康巡检 goroutine
	group.Go(func() error {
		healthChecker.StartPeriodicHealthCheck(groupCtx, healthCheckInterval)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("HTTP server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	runErr := group.Wait()

	dispatcher.Stop()
	log.Info("notification dispatcher drained")

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warn("redis close warning", zap.Error(err))
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		log.Warn("storage close warning", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatal("server error", zap.Error(runErr))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据 database.type 选择存储实现
func initializeStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	switch cfg.Database.Type {
	case config.DatabaseMongoDB:
		return mongostore.New(connectCtx, &cfg.Database, log)
	case config.DatabasePostgres:
		return postgres.New(connectCtx, &cfg.Database, log)
	case config.DatabaseMySQL:
		return sqlstore.NewStore(connectCtx, &cfg.Database, log)
	default:
		log.Warn("using memory storage (development mode), data is lost on restart")
		return memory.NewStore(), nil
	}
}
