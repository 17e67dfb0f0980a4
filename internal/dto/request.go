package dto

import "github.com/shopspring/decimal"

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username      string `json:"username" binding:"required,min=3,max=64"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	Role          string `json:"role" binding:"required"`
	WalletAddress string `json:"wallet_address"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateGigRequest 创建服务请求
type CreateGigRequest struct {
	Title       string              `json:"title" binding:"required,max=256"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Packages    []GigPackageRequest `json:"packages" binding:"required,min=1,dive"`
}

// GigPackageRequest 服务套餐
type GigPackageRequest struct {
	PackageID    string          `json:"package_id" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	DeliveryDays int             `json:"delivery_days"`
	Revisions    int             `json:"revisions"`
	Milestones   []string        `json:"milestones"`
}

// CreateAgreementRequest 创建协议请求
type CreateAgreementRequest struct {
	GigID      string   `json:"gig_id" binding:"required"`
	PackageID  string   `json:"package_id" binding:"required"`
	Milestones []string `json:"milestones"` // 为空时取套餐预设
}

// TransitionStatusRequest 状态流转请求
type TransitionStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// UpdateMilestoneRequest 更新里程碑请求
type UpdateMilestoneRequest struct {
	Status string `json:"status" binding:"required"`
}

// AttachFileRequest 追加文件请求
type AttachFileRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"` // base64
}

// CreateChangeRequestRequest 创建变更请求
type CreateChangeRequestRequest struct {
	Description string `json:"description" binding:"required"`
}

// PriceChangeRequestRequest 变更请求定价
type PriceChangeRequestRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}

// RejectChangeRequestRequest 拒绝变更请求
type RejectChangeRequestRequest struct {
	Reason string `json:"reason"`
}

// RecordTransactionRequest 记录链上交易请求
type RecordTransactionRequest struct {
	AgreementID string `json:"agreement_id" binding:"required"`
	Type        string `json:"type" binding:"required"`
	TxHash      string `json:"tx_hash" binding:"required"`
	Network     string `json:"network" binding:"required"`
}
