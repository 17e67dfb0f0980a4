package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AgreementStatus 协议状态
type AgreementStatus int8

const (
	AgreementStatusPending    AgreementStatus = 0 // 待开发者接受
	AgreementStatusActive     AgreementStatus = 1 // 已接受
	AgreementStatusInProgress AgreementStatus = 2 // 进行中
	AgreementStatusCompleted  AgreementStatus = 3 // 交付完成，待放款
	AgreementStatusPaid       AgreementStatus = 4 // 已放款 (终态)
	AgreementStatusRejected   AgreementStatus = 5 // 已拒绝 (终态)
	AgreementStatusCancelled  AgreementStatus = 6 // 已取消 (终态)
)

// String 返回状态名
func (s AgreementStatus) String() string {
	switch s {
	case AgreementStatusPending:
		return "pending"
	case AgreementStatusActive:
		return "active"
	case AgreementStatusInProgress:
		return "in_progress"
	case AgreementStatusCompleted:
		return "completed"
	case AgreementStatusPaid:
		return "paid"
	case AgreementStatusRejected:
		return "rejected"
	case AgreementStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal 判断是否为终态
func (s AgreementStatus) IsTerminal() bool {
	return s == AgreementStatusPaid || s == AgreementStatusRejected || s == AgreementStatusCancelled
}

// ParseAgreementStatus 从字符串解析状态
func ParseAgreementStatus(s string) (AgreementStatus, bool) {
	switch s {
	case "pending":
		return AgreementStatusPending, true
	case "active":
		return AgreementStatusActive, true
	case "in_progress":
		return AgreementStatusInProgress, true
	case "completed":
		return AgreementStatusCompleted, true
	case "paid":
		return AgreementStatusPaid, true
	case "rejected":
		return AgreementStatusRejected, true
	case "cancelled":
		return AgreementStatusCancelled, true
	}
	return 0, false
}

// FileRef 外部存储文件引用
type FileRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	CID  string `json:"cid,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// Agreement 客户与开发者之间就某个服务套餐达成的合约
//
// Agreement 是财务主记录: TotalValue / ReleasedAmount / RemainingAmount
// 构成托管账本，RemainingAmount 在每次财务变更后由 Recalculate 重算，
// 不变量 remaining = total - released 永远成立且不为负。
// Version 用于财务字段的乐观锁，并发对账不会丢失更新。
type Agreement struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DisplayID string `gorm:"column:display_id;type:varchar(32);uniqueIndex;not null" json:"display_id"`

	ClientID    string `gorm:"column:client_id;type:varchar(36);index;not null" json:"client_id"`
	DeveloperID string `gorm:"column:developer_id;type:varchar(36);index;not null" json:"developer_id"`
	GigID       string `gorm:"column:gig_id;type:varchar(36);index;not null" json:"gig_id"`
	PackageID   string `gorm:"column:package_id;type:varchar(64);not null" json:"package_id"`

	Status AgreementStatus `gorm:"column:status;type:smallint;index;not null;default:0" json:"status"`

	TotalValue      decimal.Decimal `gorm:"column:total_value;type:decimal(32,8);not null;default:0" json:"total_value"`
	ReleasedAmount  decimal.Decimal `gorm:"column:released_amount;type:decimal(32,8);not null;default:0" json:"released_amount"`
	RemainingAmount decimal.Decimal `gorm:"column:remaining_amount;type:decimal(32,8);not null;default:0" json:"remaining_amount"`

	Milestones []Milestone `gorm:"foreignKey:AgreementID" json:"milestones,omitempty"`

	Documents    string `gorm:"column:documents;type:text" json:"-"`    // JSON FileRef 数组, 只追加
	Deliverables string `gorm:"column:deliverables;type:text" json:"-"` // JSON FileRef 数组, 只追加

	StartDate    int64  `gorm:"column:start_date;type:bigint" json:"start_date"`
	EndDate      int64  `gorm:"column:end_date;type:bigint" json:"end_date"`
	RejectReason string `gorm:"column:reject_reason;type:varchar(500)" json:"reject_reason,omitempty"`
	CancelReason string `gorm:"column:cancel_reason;type:varchar(500)" json:"cancel_reason,omitempty"`

	Version   int   `gorm:"column:version;type:int;not null;default:0" json:"-"`
	CreatedAt int64 `gorm:"column:created_at;type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64 `gorm:"column:updated_at;type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Agreement) TableName() string {
	return "codedript_agreements"
}

// Recalculate 重算 RemainingAmount
func (a *Agreement) Recalculate() {
	a.RemainingAmount = a.TotalValue.Sub(a.ReleasedAmount)
	if a.RemainingAmount.IsNegative() {
		a.RemainingAmount = decimal.Zero
	}
}

// IsParty 判断用户是否为协议参与方
func (a *Agreement) IsParty(userID string) bool {
	return userID == a.ClientID || userID == a.DeveloperID
}

// SideOf 返回用户在协议中的角色侧
func (a *Agreement) SideOf(userID string) UserRole {
	switch userID {
	case a.ClientID:
		return UserRoleClient
	case a.DeveloperID:
		return UserRoleDeveloper
	}
	return ""
}

// Progress 返回里程碑完成进度 (0~1)，虚拟字段，读取时计算
func (a *Agreement) Progress() float64 {
	if len(a.Milestones) == 0 {
		return 0
	}
	done := 0
	for _, m := range a.Milestones {
		if m.Status == MilestoneStatusCompleted {
			done++
		}
	}
	return float64(done) / float64(len(a.Milestones))
}

// GetDocuments 解析文档列表
func (a *Agreement) GetDocuments() ([]FileRef, error) {
	return parseFileRefs(a.Documents)
}

// AppendDocument 追加文档引用
func (a *Agreement) AppendDocument(ref FileRef) error {
	s, err := appendFileRef(a.Documents, ref)
	if err != nil {
		return err
	}
	a.Documents = s
	return nil
}

// GetDeliverables 解析交付物列表
func (a *Agreement) GetDeliverables() ([]FileRef, error) {
	return parseFileRefs(a.Deliverables)
}

// AppendDeliverable 追加交付物引用
func (a *Agreement) AppendDeliverable(ref FileRef) error {
	s, err := appendFileRef(a.Deliverables, ref)
	if err != nil {
		return err
	}
	a.Deliverables = s
	return nil
}

func parseFileRefs(s string) ([]FileRef, error) {
	if s == "" {
		return nil, nil
	}
	var refs []FileRef
	if err := json.Unmarshal([]byte(s), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func appendFileRef(s string, ref FileRef) (string, error) {
	refs, err := parseFileRefs(s)
	if err != nil {
		return "", err
	}
	refs = append(refs, ref)
	data, err := json.Marshal(refs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
