package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserDuplicate = errors.New("username or email already taken")
)

// UserRepository 用户仓储接口
//
// Increment* 以单条原子 SQL 自增统计计数器，从不整体覆盖，
// 并发入账不会丢失更新。
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	IncrementTotalEarned(ctx context.Context, userID string, amount decimal.Decimal) error
	IncrementTotalSpent(ctx context.Context, userID string, amount decimal.Decimal) error
	IncrementCompletedAgreements(ctx context.Context, userID string) error
}

// userRepository 用户仓储实现
type userRepository struct {
	*Repository
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{Repository: NewRepository(db)}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UnixMilli()
	user.CreatedAt = now
	user.UpdatedAt = now
	err := r.DB(ctx).Create(user).Error
	if IsDuplicateKeyError(err) {
		return ErrUserDuplicate
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) IncrementTotalEarned(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.incrementColumn(ctx, userID, "total_earned", amount)
}

func (r *userRepository) IncrementTotalSpent(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.incrementColumn(ctx, userID, "total_spent", amount)
}

func (r *userRepository) IncrementCompletedAgreements(ctx context.Context, userID string) error {
	result := r.DB(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"completed_agreements": gorm.Expr("completed_agreements + 1"),
			"updated_at":           time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) incrementColumn(ctx context.Context, userID, column string, amount decimal.Decimal) error {
	result := r.DB(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			column:       gorm.Expr(column+" + ?", amount),
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
