// Package router 提供路由注册
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CodeDript/codedript-server-sub001/internal/config"
	"github.com/CodeDript/codedript-server-sub001/internal/handler"
	"github.com/CodeDript/codedript-server-sub001/internal/middleware"
	"github.com/CodeDript/codedript-server-sub001/internal/ratelimit"
)

// Router 路由管理器
type Router struct {
	engine        *gin.Engine
	cfg           *config.Config
	slidingWindow *ratelimit.SlidingWindow
	validator     middleware.TokenValidator
}

// New 创建路由管理器
func New(
	engine *gin.Engine,
	cfg *config.Config,
	sw *ratelimit.SlidingWindow,
	validator middleware.TokenValidator,
) *Router {
	return &Router{
		engine:        engine,
		cfg:           cfg,
		slidingWindow: sw,
		validator:     validator,
	}
}

// RegisterMiddleware 注册全局中间件
func (r *Router) RegisterMiddleware() {
	// 中间件链: Recovery → Logger → CORS → Metrics
	r.engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		middleware.CORS(),
		middleware.Metrics(),
	)
}

// RegisterRoutes 注册路由
func (r *Router) RegisterRoutes(
	healthHandler *handler.HealthHandler,
	userHandler *handler.UserHandler,
	gigHandler *handler.GigHandler,
	agreementHandler *handler.AgreementHandler,
	crHandler *handler.ChangeRequestHandler,
	txHandler *handler.TransactionHandler,
) {
	// ========== 健康检查（无中间件） ==========
	r.engine.GET("/healthz", healthHandler.Check)

	// ========== Prometheus 监控端点 ==========
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ========== API v1 ==========
	v1 := r.engine.Group("/api/v1")

	// 全局 IP 限流
	if r.cfg.RateLimit.Enabled && r.slidingWindow != nil {
		v1.Use(middleware.RateLimitByIP(
			r.slidingWindow,
			r.cfg.RateLimit.PerMin,
			time.Minute,
		))
	}

	// ========== 公开接口（无需认证） ==========
	public := v1.Group("")
	{
		public.POST("/auth/register", userHandler.Register)
		public.POST("/auth/login", userHandler.Login)

		// 服务列表可匿名浏览
		public.GET("/gigs", gigHandler.List)
		public.GET("/gigs/:id", gigHandler.Get)
	}

	// ========== 认证接口 ==========
	private := v1.Group("")
	private.Use(middleware.Auth(r.validator))

	if r.cfg.RateLimit.Enabled && r.slidingWindow != nil {
		private.Use(middleware.RateLimitByUser(
			r.slidingWindow,
			r.cfg.RateLimit.PerMin,
			time.Minute,
		))
	}

	// 用户
	private.GET("/users/me", userHandler.Me)

	// 服务管理
	private.POST("/gigs", gigHandler.Create)
	private.POST("/gigs/:id/pause", gigHandler.Pause)

	// 协议
	agreements := private.Group("/agreements")
	{
		agreements.POST("", agreementHandler.Create)
		agreements.GET("", agreementHandler.List)
		agreements.GET("/:id", agreementHandler.Get)
		agreements.PATCH("/:id/status", agreementHandler.TransitionStatus)
		agreements.PATCH("/:id/milestones/:position", agreementHandler.UpdateMilestone)
		agreements.POST("/:id/milestones/:position/previews", agreementHandler.AttachMilestonePreview)
		agreements.POST("/:id/documents", agreementHandler.AttachDocument)
		agreements.POST("/:id/deliverables", agreementHandler.AttachDeliverable)

		agreements.POST("/:id/change-requests", crHandler.Create)
		agreements.GET("/:id/change-requests", crHandler.List)

		agreements.GET("/:id/transactions", txHandler.List)
	}

	// 变更请求
	changeRequests := private.Group("/change-requests")
	{
		changeRequests.POST("/:id/price", crHandler.Price)
		changeRequests.POST("/:id/approve", crHandler.Approve)
		changeRequests.POST("/:id/reject", crHandler.Reject)
		changeRequests.POST("/:id/ignore", crHandler.Ignore)
	}

	// 链上交易
	transactions := private.Group("/transactions")
	{
		transactions.POST("", txHandler.Record)
		transactions.GET("/:id", txHandler.Get)
		transactions.GET("/:id/verify", txHandler.Verify)
	}
}
