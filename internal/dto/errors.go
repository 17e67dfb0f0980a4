// Package dto 提供数据传输对象定义
package dto

import (
	"fmt"
	"net/http"
)

// BizError 业务错误
type BizError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

// Error 实现 error 接口
func (e *BizError) Error() string {
	return e.Message
}

// Is 按错误码判等，便于 errors.Is 比较带消息的副本
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 返回替换消息的副本
func (e *BizError) WithMessage(message string) *BizError {
	return &BizError{Code: e.Code, Message: message, HTTPStatus: e.HTTPStatus}
}

// WithMessagef 返回格式化消息的副本
func (e *BizError) WithMessagef(format string, args ...interface{}) *BizError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// 通用错误 (10xxx)
var (
	ErrInvalidParams     = &BizError{10001, "INVALID_PARAMS", http.StatusBadRequest}
	ErrUnauthorized      = &BizError{10002, "UNAUTHORIZED", http.StatusUnauthorized}
	ErrForbidden         = &BizError{10003, "FORBIDDEN", http.StatusForbidden}
	ErrMissingAuthHeader = &BizError{10004, "MISSING_AUTH_HEADER", http.StatusUnauthorized}
	ErrInvalidToken      = &BizError{10005, "INVALID_TOKEN", http.StatusUnauthorized}
	ErrNotFound          = &BizError{10006, "NOT_FOUND", http.StatusNotFound}
)

// 用户错误 (11xxx)
var (
	ErrUserNotFound       = &BizError{11001, "USER_NOT_FOUND", http.StatusNotFound}
	ErrUserAlreadyExists  = &BizError{11002, "USER_ALREADY_EXISTS", http.StatusConflict}
	ErrInvalidCredentials = &BizError{11003, "INVALID_CREDENTIALS", http.StatusUnauthorized}
)

// 服务列表错误 (12xxx)
var (
	ErrGigNotFound     = &BizError{12001, "GIG_NOT_FOUND", http.StatusNotFound}
	ErrPackageNotFound = &BizError{12002, "PACKAGE_NOT_FOUND", http.StatusNotFound}
)

// 协议错误 (13xxx)
var (
	ErrAgreementNotFound = &BizError{13001, "AGREEMENT_NOT_FOUND", http.StatusNotFound}
	ErrInvalidTransition = &BizError{13002, "INVALID_TRANSITION", http.StatusBadRequest}
	ErrNotAgreementParty = &BizError{13003, "NOT_AGREEMENT_PARTY", http.StatusForbidden}
	ErrMilestoneNotFound = &BizError{13004, "MILESTONE_NOT_FOUND", http.StatusNotFound}
)

// 变更请求错误 (14xxx)
var (
	ErrChangeRequestNotFound = &BizError{14001, "CHANGE_REQUEST_NOT_FOUND", http.StatusNotFound}
	ErrChangeRequestState    = &BizError{14002, "CHANGE_REQUEST_INVALID_STATE", http.StatusBadRequest}
	ErrPriceNotSet           = &BizError{14003, "PRICE_NOT_SET", http.StatusBadRequest}
)

// 链上交易错误 (15xxx)
var (
	ErrTransactionNotFound    = &BizError{15001, "TRANSACTION_NOT_FOUND", http.StatusNotFound}
	ErrDuplicateTransaction   = &BizError{15002, "DUPLICATE_TRANSACTION", http.StatusConflict}
	ErrUnconfirmedTransaction = &BizError{15003, "UNCONFIRMED_TRANSACTION", http.StatusBadRequest}
	ErrTransactionOnChain     = &BizError{15004, "TRANSACTION_NOT_ON_CHAIN", http.StatusNotFound}
)

// 系统错误 (20xxx)
var (
	ErrRateLimitExceeded = &BizError{20001, "RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests}
	ErrExternalService   = &BizError{20002, "EXTERNAL_SERVICE_ERROR", http.StatusBadGateway}
	ErrInternalError     = &BizError{20003, "INTERNAL_ERROR", http.StatusInternalServerError}
)
