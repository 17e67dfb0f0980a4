package service

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
)

func TestCreateWithDisplayID_Sequential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, agreement := env.seedAgreement(t, decimal.NewFromInt(100))

	tx := seedTransaction(agreement.ID, "0xseq1")
	err := createWithDisplayID(ctx, repository.DisplayPrefixTransaction,
		env.txs.NextDisplayID,
		func(displayID string) error {
			tx.DisplayID = displayID
			return env.txs.Create(ctx, tx)
		})
	require.NoError(t, err)
	assert.Equal(t, "TXN-000001", tx.DisplayID)
}

// 并发撞号: 两次创建拿到同一顺序编号时，输家换号重试，重试耗尽后
// 退化为时间戳编号，两条记录的展示编号始终不同。
func TestCreateWithDisplayID_CollisionFallsBackToSurrogate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, agreement := env.seedAgreement(t, decimal.NewFromInt(100))

	occupied := seedTransaction(agreement.ID, "0xwinner")
	occupied.DisplayID = "TXN-000001"
	require.NoError(t, env.txs.Create(ctx, occupied))

	// 模拟赢家刚插完、输家读到的 "最大值加一" 仍是已占用的编号
	loser := seedTransaction(agreement.ID, "0xloser")
	attempts := 0
	err := createWithDisplayID(ctx, repository.DisplayPrefixTransaction,
		func(context.Context) (string, error) {
			attempts++
			return "TXN-000001", nil
		},
		func(displayID string) error {
			loser.DisplayID = displayID
			return env.txs.Create(ctx, loser)
		})
	require.NoError(t, err)
	assert.Equal(t, maxDisplayIDRetries, attempts)

	assert.NotEqual(t, occupied.DisplayID, loser.DisplayID)
	require.True(t, strings.HasPrefix(loser.DisplayID, repository.DisplayPrefixTransaction))

	ms, err := strconv.ParseInt(
		strings.TrimPrefix(loser.DisplayID, repository.DisplayPrefixTransaction), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, ms, int64(1_000_000_000_000), "surrogate should be a millisecond timestamp")

	stored, err := env.txs.GetByID(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, loser.DisplayID, stored.DisplayID)
}

func TestCreateWithDisplayID_NonDuplicateErrorStopsRetry(t *testing.T) {
	attempts := 0
	err := createWithDisplayID(context.Background(), repository.DisplayPrefixTransaction,
		func(context.Context) (string, error) {
			attempts++
			return "TXN-000001", nil
		},
		func(string) error {
			return context.Canceled
		})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

// seedTransaction 构造最小可入库的交易记录
func seedTransaction(agreementID, txHash string) *model.Transaction {
	return &model.Transaction{
		ID:          "tx-" + txHash,
		AgreementID: agreementID,
		Type:        model.TransactionTypeCreation,
		TxHash:      txHash,
		Network:     "sepolia",
		Amount:      decimal.NewFromInt(100),
		Value:       decimal.NewFromInt(100),
	}
}
