package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// StatisticsService 用户统计投影服务
//
// 统计是确认财务事件的投影: 只递增，不覆盖，零额跳过。
// 调用方 (对账引擎、协议状态机) 把失败当作非致命，记录后继续。
type StatisticsService struct {
	userRepo repository.UserRepository
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(userRepo repository.UserRepository) *StatisticsService {
	return &StatisticsService{userRepo: userRepo}
}

// CreditEarned 给开发者累计入账
func (s *StatisticsService) CreditEarned(ctx context.Context, userID string, amount decimal.Decimal, refID string) error {
	if !amount.IsPositive() {
		logger.Warn("skip non-positive earned credit",
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.String("ref_id", refID))
		return nil
	}
	if err := s.userRepo.IncrementTotalEarned(ctx, userID, amount); err != nil {
		logger.Error("credit earned failed",
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.String("ref_id", refID),
			zap.Error(err))
		return err
	}
	return nil
}

// CreditSpent 给客户累计支出
func (s *StatisticsService) CreditSpent(ctx context.Context, userID string, amount decimal.Decimal, refID string) error {
	if !amount.IsPositive() {
		logger.Warn("skip non-positive spent credit",
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.String("ref_id", refID))
		return nil
	}
	if err := s.userRepo.IncrementTotalSpent(ctx, userID, amount); err != nil {
		logger.Error("credit spent failed",
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.String("ref_id", refID),
			zap.Error(err))
		return err
	}
	return nil
}

// CreditCompleted 双方完成计数各加一
//
// 两侧独立提交，一侧失败不回滚另一侧，失败侧只记日志。
func (s *StatisticsService) CreditCompleted(ctx context.Context, clientID, developerID, refID string) {
	for _, userID := range []string{clientID, developerID} {
		if err := s.userRepo.IncrementCompletedAgreements(ctx, userID); err != nil {
			logger.Error("credit completed agreements failed",
				zap.String("user_id", userID),
				zap.String("ref_id", refID),
				zap.Error(err))
		}
	}
}
