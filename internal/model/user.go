// Package model 定义持久化实体
package model

import (
	"github.com/shopspring/decimal"
)

// UserRole 用户角色
type UserRole string

const (
	UserRoleClient    UserRole = "client"
	UserRoleDeveloper UserRole = "developer"
	UserRoleBoth      UserRole = "both"
)

// Valid 判断角色是否合法
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleClient, UserRoleDeveloper, UserRoleBoth:
		return true
	}
	return false
}

// CanAct 判断能否以给定侧身份参与协议
func (r UserRole) CanAct(side UserRole) bool {
	return r == side || r == UserRoleBoth
}

// User 用户
//
// TotalEarned / TotalSpent / CompletedAgreements 为单调不减的统计计数器，
// 只由 StatisticsService 在确认的财务事件下递增，不接受用户输入。
type User struct {
	ID            string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username      string `gorm:"column:username;type:varchar(64);uniqueIndex;not null" json:"username"`
	Email         string `gorm:"column:email;type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"column:password_hash;type:varchar(128);not null" json:"-"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(64)" json:"wallet_address"`
	Role          UserRole `gorm:"column:role;type:varchar(16);not null;default:'client'" json:"role"`

	TotalEarned         decimal.Decimal `gorm:"column:total_earned;type:decimal(32,8);not null;default:0" json:"total_earned"`
	TotalSpent          decimal.Decimal `gorm:"column:total_spent;type:decimal(32,8);not null;default:0" json:"total_spent"`
	CompletedAgreements int             `gorm:"column:completed_agreements;type:int;not null;default:0" json:"completed_agreements"`

	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64 `gorm:"column:updated_at;type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (User) TableName() string {
	return "codedript_users"
}
