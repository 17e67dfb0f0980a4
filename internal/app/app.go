// Package app 提供应用生命周期管理
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/blockchain"
	"github.com/CodeDript/codedript-server-sub001/internal/config"
	"github.com/CodeDript/codedript-server-sub001/internal/handler"
	"github.com/CodeDript/codedript-server-sub001/internal/kafka"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/ratelimit"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/internal/router"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
	"github.com/CodeDript/codedript-server-sub001/internal/storage"
)

// App 应用实例
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	// HTTP 服务
	httpServer *http.Server
	engine     *gin.Engine

	// 依赖组件
	db       *gorm.DB
	redis    *redis.Client
	producer *kafka.EventProducer
	oracle   *blockchain.EthOracle

	// Handlers
	healthHandler    *handler.HealthHandler
	userHandler      *handler.UserHandler
	gigHandler       *handler.GigHandler
	agreementHandler *handler.AgreementHandler
	crHandler        *handler.ChangeRequestHandler
	txHandler        *handler.TransactionHandler

	// Middleware 组件
	slidingWindow *ratelimit.SlidingWindow
	userService   *service.UserService
}

// New 创建应用实例
func New(cfg *config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Start 启动应用
func (a *App) Start(ctx context.Context) error {
	// 1. 初始化依赖
	if err := a.initDependencies(ctx); err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}

	// 2. 初始化 HTTP 服务
	a.initHTTPServer()

	// 3. 启动 HTTP 服务
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Service.HTTPPort)
		a.logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止应用
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("stopping application")

	// 停止 HTTP 服务
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 关闭事件生产者
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("event producer close error", zap.Error(err))
		}
	}

	// 关闭预言机连接
	if a.oracle != nil {
		a.oracle.Close()
	}

	// 关闭 Redis
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Redis close error", zap.Error(err))
		}
	}

	// 关闭数据库连接
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.logger.Error("database close error", zap.Error(err))
			}
		}
	}

	a.logger.Info("application stopped")
	return nil
}

// WaitForShutdown 等待关闭信号
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Stop(ctx); err != nil {
		a.logger.Error("application stop error", zap.Error(err))
	}
}

// initDependencies 初始化依赖
func (a *App) initDependencies(ctx context.Context) error {
	// 初始化 PostgreSQL
	db, err := gorm.Open(postgres.Open(a.cfg.Postgres.DSN()), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(a.cfg.Postgres.MaxConnections)
	sqlDB.SetMaxIdleConns(a.cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(a.cfg.Postgres.ConnMaxLifetime) * time.Second)
	a.db = db
	a.logger.Info("postgres connected", zap.String("database", a.cfg.Postgres.Database))

	if err := db.AutoMigrate(
		&model.User{},
		&model.Gig{},
		&model.Agreement{},
		&model.Milestone{},
		&model.ChangeRequest{},
		&model.Transaction{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 初始化 Redis
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	a.logger.Info("redis connected", zap.String("addr", a.cfg.Redis.Addr))
	a.slidingWindow = ratelimit.NewSlidingWindow(a.redis)

	// 初始化事件生产者 (可选，Kafka 不可用时降级为空实现)
	var events service.EventPublisher = service.NopPublisher{}
	if a.cfg.Kafka.Enabled {
		producer, err := kafka.NewEventProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.ClientID)
		if err != nil {
			a.logger.Warn("kafka producer unavailable, events disabled", zap.Error(err))
		} else {
			a.producer = producer
			events = producer
			a.logger.Info("kafka producer connected", zap.Strings("brokers", a.cfg.Kafka.Brokers))
		}
	}

	// 初始化链上预言机
	a.oracle = blockchain.NewEthOracle(
		a.cfg.Blockchain.Networks,
		time.Duration(a.cfg.Blockchain.FetchTimeout)*time.Second,
	)

	// 初始化文件存储与固定服务
	files := storage.NewLocalStorage(a.cfg.Storage.LocalDir, a.cfg.Storage.BaseURL)
	var pinner storage.Pinner
	if a.cfg.Storage.PinningEndpoint != "" {
		pinner = storage.NewHTTPPinner(
			a.cfg.Storage.PinningEndpoint,
			a.cfg.Storage.PinningToken,
			time.Duration(a.cfg.Storage.PinTimeout)*time.Second,
		)
	}

	// 初始化 Repositories
	userRepo := repository.NewUserRepository(db)
	gigRepo := repository.NewGigRepository(db)
	agreementRepo := repository.NewAgreementRepository(db)
	crRepo := repository.NewChangeRequestRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	// 初始化 Services
	statsService := service.NewStatisticsService(userRepo)
	a.userService = service.NewUserService(
		userRepo,
		a.cfg.Auth.JWTSecret,
		time.Duration(a.cfg.Auth.TokenTTLHours)*time.Hour,
	)
	gigService := service.NewGigService(gigRepo, userRepo)
	agreementService := service.NewAgreementService(agreementRepo, gigRepo, userRepo, statsService, events)
	crService := service.NewChangeRequestService(crRepo, agreementRepo, events)
	txService := service.NewTransactionService(
		txRepo,
		agreementRepo,
		crRepo,
		statsService,
		a.oracle,
		events,
		a.cfg.Blockchain.MinConfirmations,
	)

	// 初始化 Handlers
	networks := make([]string, 0, len(a.cfg.Blockchain.Networks))
	for network := range a.cfg.Blockchain.Networks {
		networks = append(networks, network)
	}
	a.healthHandler = handler.NewHealthHandler(db, a.oracle, networks)
	a.userHandler = handler.NewUserHandler(a.userService)
	a.gigHandler = handler.NewGigHandler(gigService)
	a.agreementHandler = handler.NewAgreementHandler(agreementService, files, pinner)
	a.crHandler = handler.NewChangeRequestHandler(crService)
	a.txHandler = handler.NewTransactionHandler(txService)

	return nil
}

// initHTTPServer 初始化 HTTP 服务
func (a *App) initHTTPServer() {
	if a.cfg.Service.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	a.engine = gin.New()

	r := router.New(
		a.engine,
		a.cfg,
		a.slidingWindow,
		a.userService,
	)

	r.RegisterMiddleware()
	r.RegisterRoutes(
		a.healthHandler,
		a.userHandler,
		a.gigHandler,
		a.agreementHandler,
		a.crHandler,
		a.txHandler,
	)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Service.HTTPPort),
		Handler:      a.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Engine 返回 Gin 引擎（用于测试）
func (a *App) Engine() *gin.Engine {
	return a.engine
}
