package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/blockchain"
)

// HealthHandler 健康检查接口
type HealthHandler struct {
	db       *gorm.DB
	oracle   blockchain.Oracle
	networks []string
}

// NewHealthHandler 创建健康检查接口
func NewHealthHandler(db *gorm.DB, oracle blockchain.Oracle, networks []string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		oracle:   oracle,
		networks: networks,
	}
}

// Check 健康检查
// GET /healthz
func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	components := gin.H{}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		components["database"] = "down"
		healthy = false
	} else {
		components["database"] = "up"
	}

	// 预言机降级不致命，记录交易会被拒绝但可重试
	for _, network := range h.networks {
		if h.oracle.Healthy(ctx, network) {
			components["oracle:"+network] = "up"
		} else {
			components["oracle:"+network] = "down"
		}
	}

	status := http.StatusOK
	statusText := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     statusText,
		"components": components,
		"timestamp":  time.Now().UnixMilli(),
	})
}
