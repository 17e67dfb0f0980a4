package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

var ErrGigNotFound = errors.New("gig not found")

// GigRepository 服务列表仓储接口
type GigRepository interface {
	Create(ctx context.Context, gig *model.Gig) error
	GetByID(ctx context.Context, id string) (*model.Gig, error)
	List(ctx context.Context, category string, page *Pagination) ([]*model.Gig, error)
	Update(ctx context.Context, gig *model.Gig) error
}

// gigRepository 服务列表仓储实现
type gigRepository struct {
	*Repository
}

// NewGigRepository 创建服务列表仓储
func NewGigRepository(db *gorm.DB) GigRepository {
	return &gigRepository{Repository: NewRepository(db)}
}

func (r *gigRepository) Create(ctx context.Context, gig *model.Gig) error {
	now := time.Now().UnixMilli()
	gig.CreatedAt = now
	gig.UpdatedAt = now
	return r.DB(ctx).Create(gig).Error
}

func (r *gigRepository) GetByID(ctx context.Context, id string) (*model.Gig, error) {
	var gig model.Gig
	err := r.DB(ctx).Where("id = ?", id).First(&gig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gig, nil
}

func (r *gigRepository) List(ctx context.Context, category string, page *Pagination) ([]*model.Gig, error) {
	var list []*model.Gig
	q := r.DB(ctx).Model(&model.Gig{}).Where("status = ?", model.GigStatusActive)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if page != nil {
		q.Count(&page.Total)
		q = q.Offset(page.Offset()).Limit(page.Limit())
	}
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *gigRepository) Update(ctx context.Context, gig *model.Gig) error {
	gig.UpdatedAt = time.Now().UnixMilli()
	return r.DB(ctx).Save(gig).Error
}
