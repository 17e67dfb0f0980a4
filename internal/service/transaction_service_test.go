package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

func recordReq(agreementID, txType, txHash string) *dto.RecordTransactionRequest {
	return &dto.RecordTransactionRequest{
		AgreementID: agreementID,
		Type:        txType,
		TxHash:      txHash,
		Network:     "sepolia",
	}
}

func TestTransactionService_RecordCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.oracle.put("0xaaa", decimal.NewFromInt(1000), 3)

	tx, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xaaa"))
	require.NoError(t, err)

	assert.Equal(t, "TXN-000001", tx.DisplayID)
	assert.Equal(t, model.TransactionTypeCreation, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, tx.Value.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(100), tx.BlockNumber)

	// 创建付款给客户计支出
	assert.True(t, env.reloadUser(t, client.ID).TotalSpent.Equal(decimal.NewFromInt(1000)))
	assert.True(t, env.events.has(EventTransactionRecorded))
}

func TestTransactionService_DuplicateHashRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.oracle.put("0xdup", decimal.NewFromInt(1000), 3)

	_, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xdup"))
	require.NoError(t, err)

	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xdup"))
	assert.ErrorIs(t, err, dto.ErrDuplicateTransaction)

	// 第二次调用不产生任何账本移动
	assert.True(t, env.reloadUser(t, client.ID).TotalSpent.Equal(decimal.NewFromInt(1000)))
}

func TestTransactionService_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))
	outsider := env.seedUser(t, model.UserRoleClient)

	env.oracle.put("0xfresh", decimal.NewFromInt(1000), 0)

	// 非参与方
	_, err := env.txSvc.RecordTransaction(ctx, outsider.ID, recordReq(agreement.ID, "creation", "0xfresh"))
	assert.ErrorIs(t, err, dto.ErrNotAgreementParty)

	// 确认数不足，失败且不落库
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xfresh"))
	assert.ErrorIs(t, err, dto.ErrUnconfirmedTransaction)
	exists, err := env.txs.ExistsByTxHash(ctx, "0xfresh")
	require.NoError(t, err)
	assert.False(t, exists)

	// 链上不存在
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xmissing"))
	assert.ErrorIs(t, err, dto.ErrTransactionOnChain)

	// 未知类型
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "refund", "0xfresh"))
	assert.ErrorIs(t, err, dto.ErrInvalidParams)

	// 未知协议
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq("nope", "creation", "0xfresh"))
	assert.ErrorIs(t, err, dto.ErrAgreementNotFound)
}

// 链上零值的完成交易仍释放全部托管并按协议总额入账
func TestTransactionService_CompletionZeroValueFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.transition(t, developer.ID, agreement.ID, "active")
	env.transition(t, developer.ID, agreement.ID, "in_progress")

	env.oracle.put("0xdone", decimal.Zero, 5)
	tx, err := env.txSvc.RecordTransaction(ctx, developer.ID, recordReq(agreement.ID, "completion", "0xdone"))
	require.NoError(t, err)

	// 结算金额回退到协议总额，原始链上金额保留为零
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, tx.Value.IsZero())

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AgreementStatusCompleted, got.Status)
	assert.True(t, got.ReleasedAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.RemainingAmount.IsZero())
	assert.NotZero(t, got.EndDate)

	assert.True(t, env.reloadUser(t, developer.ID).TotalEarned.Equal(decimal.NewFromInt(1000)))

	// 放款仍需客户显式流转，随后完成计数才增长
	assert.Equal(t, 0, env.reloadUser(t, client.ID).CompletedAgreements)
	env.transition(t, client.ID, agreement.ID, "paid")
	assert.Equal(t, 1, env.reloadUser(t, client.ID).CompletedAgreements)
	assert.Equal(t, 1, env.reloadUser(t, developer.ID).CompletedAgreements)
}

// 定价 150 的变更请求经批准后由等额 modification 交易结算
func TestTransactionService_ModificationSettlesChangeRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))
	env.transition(t, developer.ID, agreement.ID, "active")

	cr, err := env.crSvc.Create(ctx, client.ID, agreement.ID, &dto.CreateChangeRequestRequest{Description: "add dark mode"})
	require.NoError(t, err)
	_, err = env.crSvc.Price(ctx, developer.ID, cr.ID, decimal.NewFromInt(150))
	require.NoError(t, err)
	_, err = env.crSvc.Approve(ctx, client.ID, cr.ID)
	require.NoError(t, err)

	env.oracle.put("0xmod", decimal.NewFromInt(150), 2)
	tx, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0xmod"))
	require.NoError(t, err)

	settled, err := env.crs.GetByID(ctx, cr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeRequestStatusPaid, settled.Status)
	assert.Equal(t, tx.TxHash, settled.SettlementTxHash)
	assert.NotZero(t, settled.PaidAt)

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(1150)))
	assert.True(t, got.RemainingAmount.Equal(decimal.NewFromInt(1150)))
	assert.True(t, env.reloadUser(t, client.ID).TotalSpent.Equal(decimal.NewFromInt(150)))

	// 同哈希重放在重复闸门被拒，价格不会二次计入
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0xmod"))
	assert.ErrorIs(t, err, dto.ErrDuplicateTransaction)
	got, err = env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(1150)))
}

// 精确价格匹配优先于 "最近一条" 回退
func TestTransactionService_ModificationPrefersExactPriceMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	older := seedPricedChangeRequest(t, env, agreement.ID, "CR-000001", decimal.NewFromInt(100), time.Now().Add(-time.Hour))
	newer := seedPricedChangeRequest(t, env, agreement.ID, "CR-000002", decimal.NewFromInt(150), time.Now())

	env.oracle.put("0xexact", decimal.NewFromInt(100), 2)
	_, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0xexact"))
	require.NoError(t, err)

	gotOlder, err := env.crs.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeRequestStatusPaid, gotOlder.Status)

	gotNewer, err := env.crs.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeRequestStatusPriced, gotNewer.Status)

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(1100)))
}

// 金额不匹配时回退到最近的候选
func TestTransactionService_ModificationFallsBackToMostRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	seedPricedChangeRequest(t, env, agreement.ID, "CR-000001", decimal.NewFromInt(100), time.Now().Add(-time.Hour))
	newer := seedPricedChangeRequest(t, env, agreement.ID, "CR-000002", decimal.NewFromInt(150), time.Now())

	env.oracle.put("0xodd", decimal.NewFromInt(777), 2)
	_, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0xodd"))
	require.NoError(t, err)

	gotNewer, err := env.crs.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeRequestStatusPaid, gotNewer.Status)

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(1150)))
}

// 没有候选或候选已结算: 交易照常入库，账本不动
func TestTransactionService_ModificationWithoutEffect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.oracle.put("0xnone", decimal.NewFromInt(50), 2)
	tx, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0xnone"))
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(1000)))

	// 候选已是 paid: MarkPaid 不再生效
	paid := seedPricedChangeRequest(t, env, agreement.ID, "CR-000001", decimal.NewFromInt(60), time.Now())
	paid.Status = model.ChangeRequestStatusPaid
	require.NoError(t, env.crs.Update(ctx, paid))

	env.oracle.put("0xagain", decimal.NewFromInt(60), 2)
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0xagain"))
	require.NoError(t, err)

	got, err = env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, env.reloadUser(t, client.ID).TotalSpent.IsZero())
}

func TestTransactionService_Get(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.oracle.put("0xget", decimal.NewFromInt(1000), 2)
	tx, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xget"))
	require.NoError(t, err)

	// 双方参与方都可读
	got, err := env.txSvc.Get(ctx, developer.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash, got.TxHash)
	assert.Equal(t, tx.DisplayID, got.DisplayID)

	outsider := env.seedUser(t, model.UserRoleClient)
	_, err = env.txSvc.Get(ctx, outsider.ID, tx.ID)
	assert.ErrorIs(t, err, dto.ErrNotAgreementParty)

	_, err = env.txSvc.Get(ctx, client.ID, "missing-id")
	assert.ErrorIs(t, err, dto.ErrTransactionNotFound)
}

func TestTransactionService_Verify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.oracle.put("0xver", decimal.NewFromInt(1000), 3)
	tx, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0xver"))
	require.NoError(t, err)

	resp, err := env.txSvc.VerifyTransaction(ctx, client.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.Equal(t, tx.TxHash, resp.StoredData.TxHash)
	require.NotNil(t, resp.LiveData)

	// 链上数据漂移后核验失败
	env.oracle.details["0xver"].BlockHash = "0xreorged"
	resp, err = env.txSvc.VerifyTransaction(ctx, client.ID, tx.ID)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)

	// 链上消失: 不一致而非外部错误
	delete(env.oracle.details, "0xver")
	resp, err = env.txSvc.VerifyTransaction(ctx, client.ID, tx.ID)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Nil(t, resp.LiveData)

	// 非参与方不可核验
	outsider := env.seedUser(t, model.UserRoleClient)
	_, err = env.txSvc.VerifyTransaction(ctx, outsider.ID, tx.ID)
	assert.ErrorIs(t, err, dto.ErrNotAgreementParty)
}

func TestTransactionService_ListByAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	env.oracle.put("0x1", decimal.NewFromInt(1000), 2)
	env.oracle.put("0x2", decimal.NewFromInt(50), 2)
	_, err := env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "creation", "0x1"))
	require.NoError(t, err)
	_, err = env.txSvc.RecordTransaction(ctx, client.ID, recordReq(agreement.ID, "modification", "0x2"))
	require.NoError(t, err)

	list, err := env.txSvc.ListByAgreement(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	outsider := env.seedUser(t, model.UserRoleClient)
	_, err = env.txSvc.ListByAgreement(ctx, outsider.ID, agreement.ID)
	assert.ErrorIs(t, err, dto.ErrNotAgreementParty)
}

// seedPricedChangeRequest 直接入库一条已定价请求，CreatedAt 可控
func seedPricedChangeRequest(t *testing.T, env *testEnv, agreementID, displayID string, price decimal.Decimal, createdAt time.Time) *model.ChangeRequest {
	cr := &model.ChangeRequest{
		ID:          uuid.NewString(),
		DisplayID:   displayID,
		AgreementID: agreementID,
		Description: "scope change",
		Status:      model.ChangeRequestStatusPriced,
		Price:       &price,
		PricedAt:    createdAt.UnixMilli(),
		CreatedAt:   createdAt.UnixMilli(),
	}
	require.NoError(t, env.crs.Create(context.Background(), cr))
	return cr
}
