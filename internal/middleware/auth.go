// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/service"
)

const (
	// AuthHeader 认证头名称
	AuthHeader = "Authorization"
	// BearerScheme Bearer 认证方案
	BearerScheme = "Bearer"
	// UserIDKey context 中的用户 ID 键名
	UserIDKey = "user_id"
	// UserRoleKey context 中的用户角色键名
	UserRoleKey = "user_role"
)

// TokenValidator 令牌校验接口
type TokenValidator interface {
	ValidateToken(token string) (*service.Claims, error)
}

// Auth 返回 JWT 认证中间件
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeader)
		if header == "" {
			abortWithError(c, dto.ErrMissingAuthHeader)
			return
		}

		token, ok := strings.CutPrefix(header, BearerScheme+" ")
		if !ok || token == "" {
			abortWithError(c, dto.ErrInvalidToken)
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			abortWithError(c, dto.ErrInvalidToken)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

// abortWithError 终止请求并返回错误
func abortWithError(c *gin.Context, err *dto.BizError) {
	c.AbortWithStatusJSON(err.HTTPStatus, dto.NewErrorResponse(err))
}

// UserID 从 context 获取认证用户 ID
func UserID(c *gin.Context) string {
	v, _ := c.Get(UserIDKey)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}

// UserRole 从 context 获取认证用户角色
func UserRole(c *gin.Context) model.UserRole {
	v, _ := c.Get(UserRoleKey)
	if role, ok := v.(model.UserRole); ok {
		return role
	}
	return ""
}
