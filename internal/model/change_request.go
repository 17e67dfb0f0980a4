package model

import (
	"github.com/shopspring/decimal"
)

// ChangeRequestStatus 变更请求状态
type ChangeRequestStatus int8

const (
	ChangeRequestStatusPending  ChangeRequestStatus = 0 // 待开发者定价
	ChangeRequestStatusPriced   ChangeRequestStatus = 1 // 已定价
	ChangeRequestStatusPaid     ChangeRequestStatus = 2 // 已结算 (终态)
	ChangeRequestStatusRejected ChangeRequestStatus = 3 // 已拒绝 (终态)
)

// String 返回状态名
func (s ChangeRequestStatus) String() string {
	switch s {
	case ChangeRequestStatusPending:
		return "pending"
	case ChangeRequestStatusPriced:
		return "priced"
	case ChangeRequestStatusPaid:
		return "paid"
	case ChangeRequestStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IsTerminal 判断是否为终态
func (s ChangeRequestStatus) IsTerminal() bool {
	return s == ChangeRequestStatusPaid || s == ChangeRequestStatusRejected
}

// ChangeRequest 范围变更请求
//
// 定价后经客户批准即授权链上结算；批准本身不动账。实际入账发生在
// 对账引擎把 modification 交易关联到该请求并标记 Paid 的那一刻，
// 且同一请求的价格最多计入协议总额一次。
type ChangeRequest struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DisplayID   string `gorm:"column:display_id;type:varchar(32);uniqueIndex;not null" json:"display_id"`
	AgreementID string `gorm:"column:agreement_id;type:varchar(36);index;not null" json:"agreement_id"`

	Description string              `gorm:"column:description;type:text;not null" json:"description"`
	Status      ChangeRequestStatus `gorm:"column:status;type:smallint;index;not null;default:0" json:"status"`

	Price *decimal.Decimal `gorm:"column:price;type:decimal(32,8)" json:"price,omitempty"` // 定价前为空

	Approved   bool  `gorm:"column:approved;type:boolean;not null;default:false" json:"approved"`
	ApprovedAt int64 `gorm:"column:approved_at;type:bigint" json:"approved_at"`
	PricedAt   int64 `gorm:"column:priced_at;type:bigint" json:"priced_at"`
	PaidAt     int64 `gorm:"column:paid_at;type:bigint" json:"paid_at"`

	SettlementTxHash string `gorm:"column:settlement_tx_hash;type:varchar(66)" json:"settlement_tx_hash,omitempty"`
	RejectReason     string `gorm:"column:reject_reason;type:varchar(500)" json:"reject_reason,omitempty"`

	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64 `gorm:"column:updated_at;type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (ChangeRequest) TableName() string {
	return "codedript_change_requests"
}
