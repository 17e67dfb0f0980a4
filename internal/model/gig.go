package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// GigStatus 服务状态
type GigStatus int8

const (
	GigStatusActive GigStatus = 0 // 上架
	GigStatusPaused GigStatus = 1 // 下架
)

// String 返回状态名
func (s GigStatus) String() string {
	switch s {
	case GigStatusActive:
		return "active"
	case GigStatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// GigPackage 服务套餐
type GigPackage struct {
	PackageID    string          `json:"package_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DeliveryDays int             `json:"delivery_days"`
	Revisions    int             `json:"revisions"`
	Milestones   []string        `json:"milestones,omitempty"` // 套餐预设的里程碑名称
}

// Gig 服务列表项
type Gig struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DeveloperID string    `gorm:"column:developer_id;type:varchar(36);index;not null" json:"developer_id"`
	Title       string    `gorm:"column:title;type:varchar(256);not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Category    string    `gorm:"column:category;type:varchar(64);index" json:"category"`
	Status      GigStatus `gorm:"column:status;type:smallint;index;not null;default:0" json:"status"`
	Packages    string    `gorm:"column:packages;type:text;not null" json:"-"` // JSON 数组
	CreatedAt   int64     `gorm:"column:created_at;type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt   int64     `gorm:"column:updated_at;type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Gig) TableName() string {
	return "codedript_gigs"
}

// GetPackages 解析套餐列表
func (g *Gig) GetPackages() ([]GigPackage, error) {
	if g.Packages == "" {
		return nil, nil
	}
	var pkgs []GigPackage
	if err := json.Unmarshal([]byte(g.Packages), &pkgs); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// SetPackages 设置套餐列表
func (g *Gig) SetPackages(pkgs []GigPackage) error {
	data, err := json.Marshal(pkgs)
	if err != nil {
		return err
	}
	g.Packages = string(data)
	return nil
}

// FindPackage 按 ID 查找套餐
func (g *Gig) FindPackage(packageID string) (*GigPackage, error) {
	pkgs, err := g.GetPackages()
	if err != nil {
		return nil, err
	}
	for i := range pkgs {
		if pkgs[i].PackageID == packageID {
			return &pkgs[i], nil
		}
	}
	return nil, nil
}
