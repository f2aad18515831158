package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/config"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/middleware"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/handler"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/jobs"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/metrics"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/sse"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/storage"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/shared/feishu"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, reading configuration from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("qa compliance service starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("database unavailable", zap.Error(err))
	}
	rdb := initRedis(cfg.Redis, zapLogger)

	store, err := initStorage(cfg.MinIO, zapLogger)
	if err != nil {
		zapLogger.Fatal("init minio", zap.Error(err))
	}

	hub := sse.NewHub(zapLogger)
	deps := service.Deps{
		Repos:    repository.NewRepositories(db),
		Redis:    rdb,
		Storage:  store,
		Notifier: hub,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Logger:   zapLogger,
		Config:   cfg.Compliance,
		Clock:    service.SystemClock,
	}
	// 金封样走飞书审批
	if cfg.Feishu.AppID != "" && cfg.Feishu.GoldSealApprovalCode != "" {
		client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		deps.Approvals = feishu.NewGoldSealApprovals(client, cfg.Feishu.GoldSealApprovalCode)
		zapLogger.Info("gold seal approvals routed to feishu", zap.String("approval_code", cfg.Feishu.GoldSealApprovalCode))
	}
	services := service.NewServices(deps)

	scheduler, err := jobs.NewReconcileScheduler(cfg.Compliance.ReconcileCron, services.Link, zapLogger)
	if err != nil {
		zapLogger.Fatal("schedule link reconcile", zap.Error(err))
	}
	scheduler.Start()

	router := newRouter(cfg, db, handler.NewHandlers(services, hub, cfg.Feishu, zapLogger), zapLogger)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE长连接不设写超时
		WriteTimeout: 0,
	}

	go func() {
		zapLogger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("forced shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	zapLogger.Info("qa compliance service stopped")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = level
	}
	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(entity.AllModels()...); err != nil {
			return nil, fmt.Errorf("migrate qa tables: %w", err)
		}
	}
	return db, nil
}

// initRedis Redis只用于风险评分缓存，连不上时返回nil，服务降级为直接计算
func initRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, factory risk cache disabled", zap.String("addr", cfg.Addr()), zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// initStorage 实验室报告存储，未配置时附件接口返回503
func initStorage(cfg config.MinIOConfig, log *zap.Logger) (service.ObjectStore, error) {
	if cfg.Endpoint == "" {
		log.Warn("minio not configured, lab report attachments disabled")
		return nil, nil
	}
	store, err := storage.NewMinIOStore(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		log.Warn("ensure lab report bucket failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	return store, nil
}

func newRouter(cfg *config.Config, db *gorm.DB, h *handler.Handlers, log *zap.Logger) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.CORS(),
		middleware.RequestID(),
		// SSE响应不能压缩缓冲
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse"})),
	)

	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		pool, err := db.DB()
		if err == nil {
			err = pool.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version, "build_time": BuildTime})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(r, h, cfg.JWT.Secret)
	return r
}
