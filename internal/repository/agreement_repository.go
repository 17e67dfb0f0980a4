package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

var (
	ErrAgreementNotFound = errors.New("agreement not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrVersionConflict   = errors.New("agreement version conflict")
)

// DisplayPrefixAgreement 协议展示编号前缀
const DisplayPrefixAgreement = "AGR-"

// AgreementRepository 协议仓储接口
type AgreementRepository interface {
	Create(ctx context.Context, agreement *model.Agreement) error
	GetByID(ctx context.Context, id string) (*model.Agreement, error)
	GetByDisplayID(ctx context.Context, displayID string) (*model.Agreement, error)
	ListByUser(ctx context.Context, userID string, page *Pagination) ([]*model.Agreement, error)
	NextDisplayID(ctx context.Context) (string, error)

	// UpdateWithVersion 以乐观锁更新财务与状态字段;
	// 版本不匹配时返回 ErrVersionConflict，调用方重读后重试。
	UpdateWithVersion(ctx context.Context, agreement *model.Agreement) error

	GetMilestone(ctx context.Context, agreementID string, position int) (*model.Milestone, error)
	UpdateMilestone(ctx context.Context, milestone *model.Milestone) error
}

// agreementRepository 协议仓储实现
type agreementRepository struct {
	*Repository
}

// NewAgreementRepository 创建协议仓储
func NewAgreementRepository(db *gorm.DB) AgreementRepository {
	return &agreementRepository{Repository: NewRepository(db)}
}

func (r *agreementRepository) Create(ctx context.Context, agreement *model.Agreement) error {
	now := time.Now().UnixMilli()
	agreement.CreatedAt = now
	agreement.UpdatedAt = now
	return r.DB(ctx).Create(agreement).Error
}

func (r *agreementRepository) GetByID(ctx context.Context, id string) (*model.Agreement, error) {
	var agreement model.Agreement
	err := r.DB(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&agreement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgreementNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

func (r *agreementRepository) GetByDisplayID(ctx context.Context, displayID string) (*model.Agreement, error) {
	var agreement model.Agreement
	err := r.DB(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("display_id = ?", displayID).
		First(&agreement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgreementNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agreement, nil
}

func (r *agreementRepository) ListByUser(ctx context.Context, userID string, page *Pagination) ([]*model.Agreement, error) {
	var list []*model.Agreement
	q := r.DB(ctx).Model(&model.Agreement{}).
		Where("client_id = ? OR developer_id = ?", userID, userID)
	if page != nil {
		q.Count(&page.Total)
		q = q.Offset(page.Offset()).Limit(page.Limit())
	}
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *agreementRepository) NextDisplayID(ctx context.Context) (string, error) {
	return nextDisplayID(r.DB(ctx), &model.Agreement{}, DisplayPrefixAgreement)
}

func (r *agreementRepository) UpdateWithVersion(ctx context.Context, agreement *model.Agreement) error {
	prev := agreement.Version
	now := time.Now().UnixMilli()

	result := r.DB(ctx).Model(&model.Agreement{}).
		Where("id = ? AND version = ?", agreement.ID, prev).
		Updates(map[string]interface{}{
			"status":           agreement.Status,
			"total_value":      agreement.TotalValue,
			"released_amount":  agreement.ReleasedAmount,
			"remaining_amount": agreement.RemainingAmount,
			"start_date":       agreement.StartDate,
			"end_date":         agreement.EndDate,
			"reject_reason":    agreement.RejectReason,
			"cancel_reason":    agreement.CancelReason,
			"documents":        agreement.Documents,
			"deliverables":     agreement.Deliverables,
			"version":          prev + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	agreement.Version = prev + 1
	agreement.UpdatedAt = now
	return nil
}

func (r *agreementRepository) GetMilestone(ctx context.Context, agreementID string, position int) (*model.Milestone, error) {
	var m model.Milestone
	err := r.DB(ctx).
		Where("agreement_id = ? AND position = ?", agreementID, position).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMilestoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *agreementRepository) UpdateMilestone(ctx context.Context, milestone *model.Milestone) error {
	milestone.UpdatedAt = time.Now().UnixMilli()
	return r.DB(ctx).Save(milestone).Error
}

// nextDisplayID 按 "取最大值加一" 生成顺序展示编号。
// 展示编号零填充，字典序即数值序，直接取最大行解析即可。
func nextDisplayID(db *gorm.DB, mdl interface{}, prefix string) (string, error) {
	var last string
	err := db.Model(mdl).
		Select("display_id").
		Where("display_id LIKE ?", prefix+"%").
		Order("display_id DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	seq := int64(0)
	if last != "" {
		raw := strings.TrimPrefix(last, prefix)
		if n, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			seq = n
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq+1), nil
}
