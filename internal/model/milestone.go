package model

// MilestoneStatus 里程碑状态
type MilestoneStatus int8

const (
	MilestoneStatusPending    MilestoneStatus = 0 // 未开始
	MilestoneStatusInProgress MilestoneStatus = 1 // 进行中
	MilestoneStatusCompleted  MilestoneStatus = 2 // 已完成
)

// String 返回状态名
func (s MilestoneStatus) String() string {
	switch s {
	case MilestoneStatusPending:
		return "pending"
	case MilestoneStatusInProgress:
		return "in_progress"
	case MilestoneStatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseMilestoneStatus 从字符串解析状态
func ParseMilestoneStatus(s string) (MilestoneStatus, bool) {
	switch s {
	case "pending":
		return MilestoneStatusPending, true
	case "in_progress":
		return MilestoneStatusInProgress, true
	case "completed":
		return MilestoneStatusCompleted, true
	}
	return 0, false
}

// Milestone 里程碑
//
// 里程碑是进度标记，不单独持有托管金额；金额只存在于 Agreement 的
// 总账和变更请求中。
type Milestone struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AgreementID string          `gorm:"column:agreement_id;type:varchar(36);index;not null" json:"agreement_id"`
	Position    int             `gorm:"column:position;type:int;not null" json:"position"`
	Name        string          `gorm:"column:name;type:varchar(256);not null" json:"name"`
	Status      MilestoneStatus `gorm:"column:status;type:smallint;not null;default:0" json:"status"`
	PreviewFiles string         `gorm:"column:preview_files;type:text" json:"-"` // JSON FileRef 数组
	CompletedAt int64           `gorm:"column:completed_at;type:bigint" json:"completed_at"`
	CreatedAt   int64           `gorm:"column:created_at;type:bigint;not null;autoCreateTime:milli" json:"created_at"`
	UpdatedAt   int64           `gorm:"column:updated_at;type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`
}

// TableName 返回表名
func (Milestone) TableName() string {
	return "codedript_agreement_milestones"
}

// GetPreviewFiles 解析预览文件列表
func (m *Milestone) GetPreviewFiles() ([]FileRef, error) {
	return parseFileRefs(m.PreviewFiles)
}

// AppendPreviewFile 追加预览文件引用
func (m *Milestone) AppendPreviewFile(ref FileRef) error {
	s, err := appendFileRef(m.PreviewFiles, ref)
	if err != nil {
		return err
	}
	m.PreviewFiles = s
	return nil
}
