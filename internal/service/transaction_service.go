package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/blockchain"
	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/metrics"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// settleableLookback 变更请求关联回溯窗口
const settleableLookback = 5

// priceTolerance 价格精确匹配容差
var priceTolerance = decimal.New(1, -8) // 1e-8

// TransactionService 财务对账引擎
//
// 把已确认的链上交易关联到待结算的链下财务事件。交易记录是权威事实，
// 先落库；账本与状态投影随后尽力执行，单项失败记日志不回滚记录。
type TransactionService struct {
	txRepo        repository.TransactionRepository
	agreementRepo repository.AgreementRepository
	crRepo        repository.ChangeRequestRepository
	stats         *StatisticsService
	oracle        blockchain.Oracle
	events        EventPublisher

	minConfirmations int64
}

// NewTransactionService 创建对账服务
func NewTransactionService(
	txRepo repository.TransactionRepository,
	agreementRepo repository.AgreementRepository,
	crRepo repository.ChangeRequestRepository,
	stats *StatisticsService,
	oracle blockchain.Oracle,
	events EventPublisher,
	minConfirmations int64,
) *TransactionService {
	if minConfirmations < 1 {
		minConfirmations = 1
	}
	return &TransactionService{
		txRepo:           txRepo,
		agreementRepo:    agreementRepo,
		crRepo:           crRepo,
		stats:            stats,
		oracle:           oracle,
		events:           events,
		minConfirmations: minConfirmations,
	}
}

// RecordTransaction 记录并对账一笔链上交易。
//
// 哈希唯一索引是防止重复入账的唯一闸门; 预言机调用有界超时，
// 超时即失败，不落部分记录。
func (s *TransactionService) RecordTransaction(ctx context.Context, actorID string, req *dto.RecordTransactionRequest) (*model.Transaction, error) {
	txType, ok := model.ParseTransactionType(req.Type)
	if !ok {
		return nil, dto.ErrInvalidParams.WithMessagef("unknown transaction type %q", req.Type)
	}

	agreement, err := s.agreementRepo.GetByID(ctx, req.AgreementID)
	if errors.Is(err, repository.ErrAgreementNotFound) {
		return nil, dto.ErrAgreementNotFound
	}
	if err != nil {
		return nil, err
	}
	if !agreement.IsParty(actorID) {
		return nil, dto.ErrNotAgreementParty
	}

	// 提前探测重复哈希，省一次预言机往返; 并发窗口由唯一索引兜底
	exists, err := s.txRepo.ExistsByTxHash(ctx, req.TxHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, dto.ErrDuplicateTransaction
	}

	details, err := s.oracle.FetchTransactionDetails(ctx, req.TxHash, req.Network)
	if errors.Is(err, blockchain.ErrTxNotFound) {
		metrics.RecordOracleRequest(req.Network, "not_found")
		return nil, dto.ErrTransactionOnChain
	}
	if errors.Is(err, blockchain.ErrUnsupportedNetwork) {
		return nil, dto.ErrInvalidParams.WithMessagef("unsupported network %q", req.Network)
	}
	if err != nil {
		metrics.RecordOracleRequest(req.Network, "error")
		logger.Error("oracle fetch failed",
			zap.String("tx_hash", req.TxHash),
			zap.String("network", req.Network),
			zap.Error(err))
		return nil, dto.ErrExternalService
	}
	metrics.RecordOracleRequest(req.Network, "ok")
	if details.Confirmations < s.minConfirmations {
		return nil, dto.ErrUnconfirmedTransaction.WithMessagef(
			"transaction has %d confirmations, need at least %d",
			details.Confirmations, s.minConfirmations)
	}

	// 结算金额: 合约内部转账常见链上零值，回退到协议当前总额。
	// 这是既定策略而非缺陷。
	amount := details.Value
	if amount.IsZero() {
		amount = agreement.TotalValue
		logger.Warn("zero on-chain value, falling back to agreement total",
			zap.String("tx_hash", req.TxHash),
			zap.String("agreement_id", agreement.ID),
			zap.String("fallback_amount", amount.String()))
	}

	tx := &model.Transaction{
		ID:              uuid.NewString(),
		AgreementID:     agreement.ID,
		Type:            txType,
		TxHash:          req.TxHash,
		Network:         req.Network,
		Amount:          amount,
		Value:           details.Value,
		BlockNumber:     details.BlockNumber,
		BlockHash:       details.BlockHash,
		ContractAddress: details.ContractAddress,
		FromAddress:     details.From,
		ToAddress:       details.To,
		Fee:             details.Fee,
		Timestamp:       details.Timestamp,
	}
	err = createWithDisplayID(ctx, repository.DisplayPrefixTransaction,
		s.txRepo.NextDisplayID,
		func(displayID string) error {
			tx.DisplayID = displayID
			return s.txRepo.Create(ctx, tx)
		})
	if errors.Is(err, repository.ErrTransactionDuplicate) {
		return nil, dto.ErrDuplicateTransaction
	}
	if err != nil {
		return nil, err
	}

	logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("display_id", tx.DisplayID),
		zap.String("type", txType.String()),
		zap.String("agreement_id", agreement.ID),
		zap.String("amount", amount.String()))

	// 记录已是权威事实，投影失败只记日志，留给运维跟进
	switch txType {
	case model.TransactionTypeCreation:
		s.projectCreation(ctx, agreement, tx)
	case model.TransactionTypeModification:
		s.projectModification(ctx, agreement, tx)
	case model.TransactionTypeCompletion:
		s.projectCompletion(ctx, agreement, tx)
	}

	s.events.Publish(ctx, EventTransactionRecorded, tx)
	return tx, nil
}

// projectCreation 创建付款: 客户支出入账
func (s *TransactionService) projectCreation(ctx context.Context, agreement *model.Agreement, tx *model.Transaction) {
	// 零额跳过由统计服务内部处理
	_ = s.stats.CreditSpent(ctx, agreement.ClientID, tx.Amount, tx.ID)
}

// projectModification 变更结算: 关联变更请求并摊入协议总额。
//
// 候选为最近 priced/paid 请求，回溯窗口内优先精确价格匹配，否则取
// 最近一条。MarkPaid 的状态比较交换是动账前的最后闸门，同一请求并发
// 对账只有一个赢家，价格最多计入总额一次。
func (s *TransactionService) projectModification(ctx context.Context, agreement *model.Agreement, tx *model.Transaction) {
	candidates, err := s.crRepo.ListSettleable(ctx, agreement.ID, settleableLookback)
	if err != nil {
		metrics.RecordReconciliationFailure("list_settleable")
		logger.Error("list settleable change requests failed",
			zap.String("agreement_id", agreement.ID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return
	}
	if len(candidates) == 0 {
		logger.Warn("modification transaction with no settleable change request",
			zap.String("agreement_id", agreement.ID),
			zap.String("transaction_id", tx.ID))
		return
	}

	match := candidates[0]
	for _, c := range candidates {
		if c.Price != nil && c.Price.Sub(tx.Amount).Abs().LessThanOrEqual(priceTolerance) {
			match = c
			break
		}
	}
	if match.Price == nil {
		logger.Error("settleable change request has no price",
			zap.String("change_request_id", match.ID))
		return
	}
	price := *match.Price

	changed, err := s.crRepo.MarkPaid(ctx, match.ID, tx.TxHash)
	if err != nil {
		metrics.RecordReconciliationFailure("mark_paid")
		logger.Error("mark change request paid failed",
			zap.String("change_request_id", match.ID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return
	}
	if !changed {
		logger.Info("change request already settled, skipping ledger update",
			zap.String("change_request_id", match.ID),
			zap.String("transaction_id", tx.ID))
		return
	}

	_, err = s.mutateAgreement(ctx, agreement.ID, func(a *model.Agreement) {
		a.TotalValue = a.TotalValue.Add(price)
		a.Recalculate()
	})
	if err != nil {
		metrics.RecordReconciliationFailure("apply_change_price")
		logger.Error("apply change request price to agreement failed",
			zap.String("agreement_id", agreement.ID),
			zap.String("change_request_id", match.ID),
			zap.String("price", price.String()),
			zap.Error(err))
		return
	}

	logger.Info("change request settled",
		zap.String("change_request_id", match.ID),
		zap.String("agreement_id", agreement.ID),
		zap.String("price", price.String()))

	// 入账的是变更价格而非原始结算金额，两者不一致时避免重复计数
	_ = s.stats.CreditSpent(ctx, agreement.ClientID, price, match.ID)
}

// projectCompletion 完成放款: 释放全部托管并给开发者入账。
//
// 入账金额是协议当前总额 (含全部已结算变更)，不是本笔交易的结算金额。
func (s *TransactionService) projectCompletion(ctx context.Context, agreement *model.Agreement, tx *model.Transaction) {
	updated, err := s.mutateAgreement(ctx, agreement.ID, func(a *model.Agreement) {
		if a.Status != model.AgreementStatusCompleted && a.Status != model.AgreementStatusPaid {
			a.Status = model.AgreementStatusCompleted
			if a.EndDate == 0 {
				a.EndDate = tx.CreatedAt
			}
		}
		a.ReleasedAmount = a.TotalValue
		a.Recalculate()
	})
	if err != nil {
		metrics.RecordReconciliationFailure("release_escrow")
		logger.Error("release escrow on completion failed",
			zap.String("agreement_id", agreement.ID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return
	}

	logger.Info("escrow released",
		zap.String("agreement_id", updated.ID),
		zap.String("released_amount", updated.ReleasedAmount.String()))

	_ = s.stats.CreditEarned(ctx, updated.DeveloperID, updated.TotalValue, tx.ID)
}

// mutateAgreement 乐观锁重试下修改协议财务字段
func (s *TransactionService) mutateAgreement(ctx context.Context, id string, mutate func(*model.Agreement)) (*model.Agreement, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		agreement, err := s.agreementRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		mutate(agreement)
		err = s.agreementRepo.UpdateWithVersion(ctx, agreement)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return agreement, nil
	}
	return nil, repository.ErrVersionConflict
}

// Get 查询单笔交易，仅参与方可见
func (s *TransactionService) Get(ctx context.Context, actorID, txID string) (*model.Transaction, error) {
	return s.loadForParty(ctx, actorID, txID)
}

// loadForParty 加载交易并校验访问方为协议参与方
func (s *TransactionService) loadForParty(ctx context.Context, actorID, txID string) (*model.Transaction, error) {
	tx, err := s.txRepo.GetByID(ctx, txID)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, dto.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	agreement, err := s.agreementRepo.GetByID(ctx, tx.AgreementID)
	if errors.Is(err, repository.ErrAgreementNotFound) {
		return nil, dto.ErrAgreementNotFound
	}
	if err != nil {
		return nil, err
	}
	if !agreement.IsParty(actorID) {
		return nil, dto.ErrNotAgreementParty
	}
	return tx, nil
}

// VerifyTransaction 把入库记录与当前链上状态比对，只读不动账
func (s *TransactionService) VerifyTransaction(ctx context.Context, actorID, txID string) (*dto.VerifyTransactionResponse, error) {
	tx, err := s.loadForParty(ctx, actorID, txID)
	if err != nil {
		return nil, err
	}

	stored := &dto.StoredTransactionData{
		TxHash:      tx.TxHash,
		BlockNumber: tx.BlockNumber,
		BlockHash:   tx.BlockHash,
		Network:     tx.Network,
	}

	live, err := s.oracle.FetchTransactionDetails(ctx, tx.TxHash, tx.Network)
	if errors.Is(err, blockchain.ErrTxNotFound) {
		// 链上找不到视为不一致，不算外部故障
		return &dto.VerifyTransactionResponse{IsValid: false, StoredData: stored}, nil
	}
	if err != nil {
		logger.Error("oracle fetch failed during verification",
			zap.String("tx_hash", tx.TxHash),
			zap.Error(err))
		return nil, dto.ErrExternalService
	}

	isValid := live.TxHash == tx.TxHash &&
		live.BlockNumber == tx.BlockNumber &&
		live.BlockHash == tx.BlockHash

	return &dto.VerifyTransactionResponse{
		IsValid:    isValid,
		StoredData: stored,
		LiveData:   live,
	}, nil
}

// ListByAgreement 列出协议下的交易，仅参与方可见
func (s *TransactionService) ListByAgreement(ctx context.Context, actorID, agreementID string) ([]*model.Transaction, error) {
	agreement, err := s.agreementRepo.GetByID(ctx, agreementID)
	if errors.Is(err, repository.ErrAgreementNotFound) {
		return nil, dto.ErrAgreementNotFound
	}
	if err != nil {
		return nil, err
	}
	if !agreement.IsParty(actorID) {
		return nil, dto.ErrNotAgreementParty
	}
	return s.txRepo.ListByAgreement(ctx, agreement.ID)
}
