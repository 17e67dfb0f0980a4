package model

import (
	"github.com/shopspring/decimal"
)

// TransactionType 链上交易类型
type TransactionType int8

const (
	TransactionTypeCreation     TransactionType = 0 // 协议创建付款
	TransactionTypeModification TransactionType = 1 // 变更请求结算
	TransactionTypeCompletion   TransactionType = 2 // 完成放款
)

// String 返回类型名
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeCreation:
		return "creation"
	case TransactionTypeModification:
		return "modification"
	case TransactionTypeCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// ParseTransactionType 从字符串解析类型
func ParseTransactionType(s string) (TransactionType, bool) {
	switch s {
	case "creation":
		return TransactionTypeCreation, true
	case "modification":
		return TransactionTypeModification, true
	case "completion":
		return TransactionTypeCompletion, true
	}
	return 0, false
}

// Transaction 已验证链上交易的不可变记录
//
// TxHash 全局唯一，是防止同一链上事件被重复入账的唯一闸门。
// 记录创建后财务字段不再变更；派生的账本更新发生在它影响的实体
// (Agreement / ChangeRequest / User) 上。
type Transaction struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DisplayID string `gorm:"column:display_id;type:varchar(32);uniqueIndex;not null" json:"display_id"`

	AgreementID string          `gorm:"column:agreement_id;type:varchar(36);index;not null" json:"agreement_id"`
	Type        TransactionType `gorm:"column:type;type:smallint;index;not null" json:"type"`

	TxHash  string `gorm:"column:tx_hash;type:varchar(66);uniqueIndex;not null" json:"tx_hash"`
	Network string `gorm:"column:network;type:varchar(32);not null" json:"network"`

	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,8);not null" json:"amount"` // 结算金额 (零值回退后)
	Value  decimal.Decimal `gorm:"column:value;type:decimal(32,8);not null" json:"value"`   // 链上原始金额

	BlockNumber     int64           `gorm:"column:block_number;type:bigint" json:"block_number"`
	BlockHash       string          `gorm:"column:block_hash;type:varchar(66)" json:"block_hash"`
	ContractAddress string          `gorm:"column:contract_address;type:varchar(42)" json:"contract_address"`
	FromAddress     string          `gorm:"column:from_address;type:varchar(42)" json:"from_address"`
	ToAddress       string          `gorm:"column:to_address;type:varchar(42)" json:"to_address"`
	Fee             decimal.Decimal `gorm:"column:fee;type:decimal(32,8);not null;default:0" json:"fee"`
	Timestamp       int64           `gorm:"column:timestamp;type:bigint" json:"timestamp"`

	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null;autoCreateTime:milli" json:"created_at"`
}

// TableName 返回表名
func (Transaction) TableName() string {
	return "codedript_transactions"
}
