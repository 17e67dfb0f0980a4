package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/middleware"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
)

// ChangeRequestHandler 变更请求接口
type ChangeRequestHandler struct {
	crSvc *service.ChangeRequestService
}

// NewChangeRequestHandler 创建变更请求接口
func NewChangeRequestHandler(crSvc *service.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{crSvc: crSvc}
}

// Create 发起变更请求
// POST /api/v1/agreements/:id/change-requests
func (h *ChangeRequestHandler) Create(c *gin.Context) {
	var req dto.CreateChangeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cr, err := h.crSvc.Create(c.Request.Context(), middleware.UserID(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, cr)
}

// List 协议下的变更请求
// GET /api/v1/agreements/:id/change-requests
func (h *ChangeRequestHandler) List(c *gin.Context) {
	list, err := h.crSvc.ListByAgreement(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, list)
}

// Price 开发者报价
// POST /api/v1/change-requests/:id/price
func (h *ChangeRequestHandler) Price(c *gin.Context) {
	var req dto.PriceChangeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cr, err := h.crSvc.Price(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Price)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, cr)
}

// Approve 客户批准报价
// POST /api/v1/change-requests/:id/approve
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	cr, err := h.crSvc.Approve(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, cr)
}

// Reject 客户拒绝变更请求
// POST /api/v1/change-requests/:id/reject
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	var req dto.RejectChangeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cr, err := h.crSvc.Reject(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, cr)
}

// Ignore 开发者忽略变更请求
// POST /api/v1/change-requests/:id/ignore
func (h *ChangeRequestHandler) Ignore(c *gin.Context) {
	var req dto.RejectChangeRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	cr, err := h.crSvc.Ignore(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, cr)
}
