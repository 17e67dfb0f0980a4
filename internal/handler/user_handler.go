package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/middleware"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
)

// UserHandler 用户接口
type UserHandler struct {
	userSvc *service.UserService
}

// NewUserHandler 创建用户接口
func NewUserHandler(userSvc *service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// Register 注册
// POST /api/v1/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	user, err := h.userSvc.Register(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, user)
}

// Login 登录
// POST /api/v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resp, err := h.userSvc.Login(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, resp)
}

// Me 当前用户资料
// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userSvc.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, user)
}
