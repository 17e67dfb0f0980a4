// Package handler 提供 HTTP 请求处理
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithPagination 返回分页成功响应
func SuccessWithPagination(c *gin.Context, items interface{}, page *repository.Pagination) {
	c.JSON(http.StatusOK, dto.NewPagedResponse(items, page.Total, page.Page, page.PageSize))
}

// Error 返回业务错误响应
func Error(c *gin.Context, err *dto.BizError) {
	c.JSON(err.HTTPStatus, dto.NewErrorResponse(err))
}

// BadRequest 返回参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, dto.ErrInvalidParams.WithMessage(message))
}

// HandleError 把服务层错误翻译为 HTTP 响应。
// 未分类的错误一律折叠为 INTERNAL_ERROR，不泄漏内部细节。
func HandleError(c *gin.Context, err error) {
	var biz *dto.BizError
	if errors.As(err, &biz) {
		Error(c, biz)
		return
	}

	logger.Error("unhandled service error",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	Error(c, dto.ErrInternalError)
}

// bindPagination 从查询参数解析分页
func bindPagination(c *gin.Context) *repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return &repository.Pagination{Page: page, PageSize: pageSize}
}
