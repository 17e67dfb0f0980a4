package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/middleware"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
)

// GigHandler 服务列表接口
type GigHandler struct {
	gigSvc *service.GigService
}

// NewGigHandler 创建服务列表接口
func NewGigHandler(gigSvc *service.GigService) *GigHandler {
	return &GigHandler{gigSvc: gigSvc}
}

// Create 上架服务
// POST /api/v1/gigs
func (h *GigHandler) Create(c *gin.Context) {
	var req dto.CreateGigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	gig, err := h.gigSvc.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gig)
}

// List 浏览上架服务
// GET /api/v1/gigs
func (h *GigHandler) List(c *gin.Context) {
	page := bindPagination(c)
	list, err := h.gigSvc.List(c.Request.Context(), c.Query("category"), page)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessWithPagination(c, list, page)
}

// Get 服务详情
// GET /api/v1/gigs/:id
func (h *GigHandler) Get(c *gin.Context) {
	gig, err := h.gigSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gig)
}

// Pause 下架服务
// POST /api/v1/gigs/:id/pause
func (h *GigHandler) Pause(c *gin.Context) {
	gig, err := h.gigSvc.Pause(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gig)
}
