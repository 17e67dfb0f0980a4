package handler

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/metrics"
	"github.com/CodeDript/codedript-server-sub001/internal/middleware"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
	"github.com/CodeDript/codedript-server-sub001/internal/storage"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// AgreementHandler 协议接口
type AgreementHandler struct {
	agreementSvc *service.AgreementService
	files        storage.ObjectStorage
	pinner       storage.Pinner
}

// NewAgreementHandler 创建协议接口
func NewAgreementHandler(agreementSvc *service.AgreementService, files storage.ObjectStorage, pinner storage.Pinner) *AgreementHandler {
	return &AgreementHandler{
		agreementSvc: agreementSvc,
		files:        files,
		pinner:       pinner,
	}
}

// Create 发起协议
// POST /api/v1/agreements
func (h *AgreementHandler) Create(c *gin.Context) {
	var req dto.CreateAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	agreement, err := h.agreementSvc.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, agreement)
}

// List 我参与的协议
// GET /api/v1/agreements
func (h *AgreementHandler) List(c *gin.Context) {
	page := bindPagination(c)
	list, err := h.agreementSvc.ListByUser(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessWithPagination(c, list, page)
}

// Get 协议详情
// GET /api/v1/agreements/:id
func (h *AgreementHandler) Get(c *gin.Context) {
	agreement, err := h.agreementSvc.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, agreement)
}

// TransitionStatus 状态流转
// PATCH /api/v1/agreements/:id/status
func (h *AgreementHandler) TransitionStatus(c *gin.Context) {
	var req dto.TransitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	agreement, err := h.agreementSvc.TransitionStatus(c.Request.Context(), middleware.UserID(c), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	metrics.RecordTransition(req.Status)
	Success(c, agreement)
}

// UpdateMilestone 推进里程碑
// PATCH /api/v1/agreements/:id/milestones/:position
func (h *AgreementHandler) UpdateMilestone(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		BadRequest(c, "invalid milestone position")
		return
	}

	var req dto.UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	milestone, err := h.agreementSvc.UpdateMilestone(c.Request.Context(), middleware.UserID(c), c.Param("id"), position, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, milestone)
}

// AttachDocument 追加协议文档
// POST /api/v1/agreements/:id/documents
func (h *AgreementHandler) AttachDocument(c *gin.Context) {
	h.attachFile(c, "documents", h.agreementSvc.AttachDocument)
}

// AttachDeliverable 追加交付物
// POST /api/v1/agreements/:id/deliverables
func (h *AgreementHandler) AttachDeliverable(c *gin.Context) {
	h.attachFile(c, "deliverables", h.agreementSvc.AttachDeliverable)
}

// AttachMilestonePreview 追加里程碑预览文件
// POST /api/v1/agreements/:id/milestones/:position/previews
func (h *AgreementHandler) AttachMilestonePreview(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		BadRequest(c, "invalid milestone position")
		return
	}

	ref, ok := h.makeFileRef(c, "previews")
	if !ok {
		return
	}

	milestone, err := h.agreementSvc.AttachMilestonePreview(c.Request.Context(),
		middleware.UserID(c), c.Param("id"), position, ref)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, milestone)
}

// attachFile 产出文件引用并追加到协议
func (h *AgreementHandler) attachFile(c *gin.Context, folder string,
	attach func(ctx context.Context, actorID, id string, ref model.FileRef) (*model.Agreement, error)) {

	ref, ok := h.makeFileRef(c, folder)
	if !ok {
		return
	}

	agreement, err := attach(c.Request.Context(), middleware.UserID(c), c.Param("id"), ref)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, agreement)
}

// makeFileRef 解码上传内容、计算哈希、固定并落存储。
// 失败时响应已写出，返回 ok=false。
func (h *AgreementHandler) makeFileRef(c *gin.Context, folder string) (model.FileRef, bool) {
	var req dto.AttachFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return model.FileRef{}, false
	}

	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		BadRequest(c, "content must be base64 encoded")
		return model.FileRef{}, false
	}

	sum := sha256.Sum256(data)
	ref := model.FileRef{
		Name: req.Name,
		Hash: hex.EncodeToString(sum[:]),
	}

	ctx := c.Request.Context()
	agreementID := c.Param("id")

	upload, err := h.files.Upload(ctx, data, req.Name, folder, "application/octet-stream")
	if err != nil {
		logger.Error("file upload failed",
			zap.String("agreement_id", agreementID),
			zap.String("name", req.Name),
			zap.Error(err))
		Error(c, dto.ErrExternalService)
		return model.FileRef{}, false
	}
	ref.URL = upload.PublicURL

	// 固定失败不阻塞追加，引用缺 CID 而已
	if h.pinner != nil {
		pin, perr := h.pinner.Pin(ctx, data, req.Name, map[string]string{"agreement_id": agreementID})
		if perr != nil {
			logger.Warn("pin content failed",
				zap.String("agreement_id", agreementID),
				zap.String("name", req.Name),
				zap.Error(perr))
		} else {
			ref.CID = pin.CID
		}
	}
	return ref, true
}
