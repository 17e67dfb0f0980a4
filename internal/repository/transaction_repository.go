package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionDuplicate = errors.New("transaction hash already recorded")
)

// DisplayPrefixTransaction 交易展示编号前缀
const DisplayPrefixTransaction = "TXN-"

// TransactionRepository 链上交易仓储接口
//
// 交易记录只增不改，没有 Update 操作。
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	GetByID(ctx context.Context, id string) (*model.Transaction, error)
	GetByTxHash(ctx context.Context, txHash string) (*model.Transaction, error)
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]*model.Transaction, error)
	NextDisplayID(ctx context.Context) (string, error)
}

// transactionRepository 链上交易仓储实现
type transactionRepository struct {
	*Repository
}

// NewTransactionRepository 创建链上交易仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{Repository: NewRepository(db)}
}

func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().UnixMilli()
	}
	err := r.DB(ctx).Create(tx).Error
	if IsDuplicateKeyError(err) {
		// 区分哈希撞库与展示编号撞号: 前者是重复入账，后者换号重试即可
		if strings.Contains(err.Error(), "tx_hash") {
			return ErrTransactionDuplicate
		}
	}
	return err
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.DB(ctx).Where("id = ?", id).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) GetByTxHash(ctx context.Context, txHash string) (*model.Transaction, error) {
	var tx model.Transaction
	err := r.DB(ctx).Where("tx_hash = ?", txHash).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&model.Transaction{}).
		Where("tx_hash = ?", txHash).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *transactionRepository) ListByAgreement(ctx context.Context, agreementID string) ([]*model.Transaction, error) {
	var list []*model.Transaction
	err := r.DB(ctx).
		Where("agreement_id = ?", agreementID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *transactionRepository) NextDisplayID(ctx context.Context) (string, error) {
	return nextDisplayID(r.DB(ctx), &model.Transaction{}, DisplayPrefixTransaction)
}
