package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/metrics"
	"github.com/CodeDript/codedript-server-sub001/internal/middleware"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
)

// TransactionHandler 链上交易接口
type TransactionHandler struct {
	txSvc *service.TransactionService
}

// NewTransactionHandler 创建链上交易接口
func NewTransactionHandler(txSvc *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{txSvc: txSvc}
}

// Record 记录链上交易并结算
// POST /api/v1/transactions
func (h *TransactionHandler) Record(c *gin.Context) {
	var req dto.RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	tx, err := h.txSvc.RecordTransaction(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	metrics.RecordTransaction(req.Type, req.Network)
	Success(c, tx)
}

// Get 交易详情
// GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	tx, err := h.txSvc.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, tx)
}

// Verify 核对已记录交易与链上数据
// GET /api/v1/transactions/:id/verify
func (h *TransactionHandler) Verify(c *gin.Context) {
	result, err := h.txSvc.VerifyTransaction(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// List 协议下的交易
// GET /api/v1/agreements/:id/transactions
func (h *TransactionHandler) List(c *gin.Context) {
	list, err := h.txSvc.ListByAgreement(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, list)
}
