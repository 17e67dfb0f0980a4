package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

var ErrChangeRequestNotFound = errors.New("change request not found")

// DisplayPrefixChangeRequest 变更请求展示编号前缀
const DisplayPrefixChangeRequest = "CR-"

// ChangeRequestRepository 变更请求仓储接口
type ChangeRequestRepository interface {
	Create(ctx context.Context, cr *model.ChangeRequest) error
	GetByID(ctx context.Context, id string) (*model.ChangeRequest, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]*model.ChangeRequest, error)

	// ListSettleable 返回可被 modification 交易关联的候选:
	// 状态为 priced 或 paid，最近的在前，limit 限制回溯窗口。
	ListSettleable(ctx context.Context, agreementID string, limit int) ([]*model.ChangeRequest, error)

	Update(ctx context.Context, cr *model.ChangeRequest) error

	// MarkPaid 以状态比较交换标记已结算: 仅当当前状态不是 paid 时生效，
	// 返回是否真正发生了状态变更。并发对账只有一个赢家。
	MarkPaid(ctx context.Context, id string, txHash string) (bool, error)

	NextDisplayID(ctx context.Context) (string, error)
}

// changeRequestRepository 变更请求仓储实现
type changeRequestRepository struct {
	*Repository
}

// NewChangeRequestRepository 创建变更请求仓储
func NewChangeRequestRepository(db *gorm.DB) ChangeRequestRepository {
	return &changeRequestRepository{Repository: NewRepository(db)}
}

func (r *changeRequestRepository) Create(ctx context.Context, cr *model.ChangeRequest) error {
	now := time.Now().UnixMilli()
	if cr.CreatedAt == 0 {
		cr.CreatedAt = now
	}
	cr.UpdatedAt = now
	return r.DB(ctx).Create(cr).Error
}

func (r *changeRequestRepository) GetByID(ctx context.Context, id string) (*model.ChangeRequest, error) {
	var cr model.ChangeRequest
	err := r.DB(ctx).Where("id = ?", id).First(&cr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChangeRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (r *changeRequestRepository) ListByAgreement(ctx context.Context, agreementID string) ([]*model.ChangeRequest, error) {
	var list []*model.ChangeRequest
	err := r.DB(ctx).
		Where("agreement_id = ?", agreementID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *changeRequestRepository) ListSettleable(ctx context.Context, agreementID string, limit int) ([]*model.ChangeRequest, error) {
	var list []*model.ChangeRequest
	err := r.DB(ctx).
		Where("agreement_id = ? AND status IN ?", agreementID,
			[]model.ChangeRequestStatus{model.ChangeRequestStatusPriced, model.ChangeRequestStatusPaid}).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *changeRequestRepository) Update(ctx context.Context, cr *model.ChangeRequest) error {
	cr.UpdatedAt = time.Now().UnixMilli()
	return r.DB(ctx).Save(cr).Error
}

func (r *changeRequestRepository) MarkPaid(ctx context.Context, id string, txHash string) (bool, error) {
	now := time.Now().UnixMilli()
	result := r.DB(ctx).Model(&model.ChangeRequest{}).
		Where("id = ? AND status <> ?", id, model.ChangeRequestStatusPaid).
		Updates(map[string]interface{}{
			"status":             model.ChangeRequestStatusPaid,
			"paid_at":            now,
			"settlement_tx_hash": txHash,
			"updated_at":         now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *changeRequestRepository) NextDisplayID(ctx context.Context) (string, error) {
	return nextDisplayID(r.DB(ctx), &model.ChangeRequest{}, DisplayPrefixChangeRequest)
}
