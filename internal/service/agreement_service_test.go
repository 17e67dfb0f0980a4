package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
)

func TestAgreementService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := env.seedUser(t, model.UserRoleClient)
	developer := env.seedUser(t, model.UserRoleDeveloper)
	gig := env.seedGig(t, developer.ID, decimal.NewFromInt(1000), "design", "build", "ship")

	agreement, err := env.agreementSvc.Create(ctx, client.ID, &dto.CreateAgreementRequest{
		GigID:     gig.ID,
		PackageID: "basic",
	})
	require.NoError(t, err)

	assert.Equal(t, model.AgreementStatusPending, agreement.Status)
	assert.Equal(t, "AGR-000001", agreement.DisplayID)
	assert.Equal(t, client.ID, agreement.ClientID)
	assert.Equal(t, developer.ID, agreement.DeveloperID)
	assert.True(t, agreement.TotalValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, agreement.RemainingAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, agreement.ReleasedAmount.IsZero())

	// 里程碑来自套餐预设
	loaded, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Milestones, 3)
	assert.Equal(t, "design", loaded.Milestones[0].Name)
	assert.Equal(t, model.MilestoneStatusPending, loaded.Milestones[0].Status)

	assert.True(t, env.events.has(EventAgreementCreated))
}

func TestAgreementService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := env.seedUser(t, model.UserRoleClient)
	developer := env.seedUser(t, model.UserRoleDeveloper)
	gig := env.seedGig(t, developer.ID, decimal.NewFromInt(100))

	// 开发者不能以客户身份创建
	_, err := env.agreementSvc.Create(ctx, developer.ID, &dto.CreateAgreementRequest{
		GigID: gig.ID, PackageID: "basic",
	})
	assert.ErrorIs(t, err, dto.ErrForbidden)

	// 未知套餐
	_, err = env.agreementSvc.Create(ctx, client.ID, &dto.CreateAgreementRequest{
		GigID: gig.ID, PackageID: "missing",
	})
	assert.ErrorIs(t, err, dto.ErrPackageNotFound)

	// 未知服务
	_, err = env.agreementSvc.Create(ctx, client.ID, &dto.CreateAgreementRequest{
		GigID: "nope", PackageID: "basic",
	})
	assert.ErrorIs(t, err, dto.ErrGigNotFound)
}

func TestAgreementService_FullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(1000))

	// developer 接受: pending -> active, 设置开始时间
	a := env.transition(t, developer.ID, agreement.ID, "active")
	assert.Equal(t, model.AgreementStatusActive, a.Status)
	assert.NotZero(t, a.StartDate)

	// developer 开工: active -> in_progress
	a = env.transition(t, developer.ID, agreement.ID, "in_progress")
	assert.Equal(t, model.AgreementStatusInProgress, a.Status)

	// 任一方交付: in_progress -> completed, 设置结束时间
	a = env.transition(t, client.ID, agreement.ID, "completed")
	assert.Equal(t, model.AgreementStatusCompleted, a.Status)
	assert.NotZero(t, a.EndDate)

	// client 放款: completed -> paid, 双方完成计数各加一
	a = env.transition(t, client.ID, agreement.ID, "paid")
	assert.Equal(t, model.AgreementStatusPaid, a.Status)

	assert.Equal(t, 1, env.reloadUser(t, client.ID).CompletedAgreements)
	assert.Equal(t, 1, env.reloadUser(t, developer.ID).CompletedAgreements)

	// 重复放款被状态机挡住，计数不再增长
	_, err := env.agreementSvc.TransitionStatus(context.Background(), client.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "paid"})
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)
	assert.Equal(t, 1, env.reloadUser(t, client.ID).CompletedAgreements)
}

func TestAgreementService_TransitionGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(500))
	outsider := env.seedUser(t, model.UserRoleClient)

	// 非参与方
	_, err := env.agreementSvc.TransitionStatus(ctx, outsider.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "active"})
	assert.ErrorIs(t, err, dto.ErrNotAgreementParty)

	// 客户不能替开发者接受
	_, err = env.agreementSvc.TransitionStatus(ctx, client.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "active"})
	assert.ErrorIs(t, err, dto.ErrForbidden)

	// 未知状态名
	_, err = env.agreementSvc.TransitionStatus(ctx, client.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "finished"})
	assert.ErrorIs(t, err, dto.ErrInvalidParams)

	// 表外流转: pending -> completed
	_, err = env.agreementSvc.TransitionStatus(ctx, developer.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "completed"})
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)

	// 状态未被污染
	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AgreementStatusPending, got.Status)
}

func TestAgreementService_CancelAfterCompletedRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(500))

	env.transition(t, developer.ID, agreement.ID, "active")
	env.transition(t, developer.ID, agreement.ID, "completed")

	_, err := env.agreementSvc.TransitionStatus(ctx, client.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "cancelled"})
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AgreementStatusCompleted, got.Status)
	assert.True(t, got.RemainingAmount.Equal(got.TotalValue.Sub(got.ReleasedAmount)))
}

func TestAgreementService_RejectStoresReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(500))

	a, err := env.agreementSvc.TransitionStatus(ctx, developer.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "rejected", Reason: "scope too vague"})
	require.NoError(t, err)
	assert.Equal(t, model.AgreementStatusRejected, a.Status)
	assert.Equal(t, "scope too vague", a.RejectReason)

	// 终态无出边
	_, err = env.agreementSvc.TransitionStatus(ctx, client.ID, agreement.ID,
		&dto.TransitionStatusRequest{Status: "cancelled"})
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)
}

func TestAgreementService_UpdateMilestone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(500))

	// pending 协议不能推进里程碑
	_, err := env.agreementSvc.UpdateMilestone(ctx, developer.ID, agreement.ID, 0,
		&dto.UpdateMilestoneRequest{Status: "in_progress"})
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)

	env.transition(t, developer.ID, agreement.ID, "active")

	// 客户无权推进
	_, err = env.agreementSvc.UpdateMilestone(ctx, client.ID, agreement.ID, 0,
		&dto.UpdateMilestoneRequest{Status: "in_progress"})
	assert.ErrorIs(t, err, dto.ErrForbidden)

	m, err := env.agreementSvc.UpdateMilestone(ctx, developer.ID, agreement.ID, 0,
		&dto.UpdateMilestoneRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneStatusCompleted, m.Status)
	assert.NotZero(t, m.CompletedAt)

	// 进度虚拟字段
	got, err := env.agreementSvc.Get(ctx, developer.ID, agreement.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Progress(), 0.001)

	// 越界位置
	_, err = env.agreementSvc.UpdateMilestone(ctx, developer.ID, agreement.ID, 9,
		&dto.UpdateMilestoneRequest{Status: "completed"})
	assert.ErrorIs(t, err, dto.ErrMilestoneNotFound)
}

func TestAgreementService_AttachMilestonePreview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(500))

	ref := model.FileRef{Name: "mockup.png", URL: "https://files/mockup.png", Hash: "abc"}

	// pending 协议不能追加预览
	_, err := env.agreementSvc.AttachMilestonePreview(ctx, developer.ID, agreement.ID, 0, ref)
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)

	env.transition(t, developer.ID, agreement.ID, "active")

	// 客户无权追加
	_, err = env.agreementSvc.AttachMilestonePreview(ctx, client.ID, agreement.ID, 0, ref)
	assert.ErrorIs(t, err, dto.ErrForbidden)

	m, err := env.agreementSvc.AttachMilestonePreview(ctx, developer.ID, agreement.ID, 0, ref)
	require.NoError(t, err)
	files, err := m.GetPreviewFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "mockup.png", files[0].Name)

	// 只追加不覆盖
	m, err = env.agreementSvc.AttachMilestonePreview(ctx, developer.ID, agreement.ID, 0,
		model.FileRef{Name: "mockup-v2.png", URL: "https://files/mockup-v2.png", Hash: "def"})
	require.NoError(t, err)
	files, err = m.GetPreviewFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "mockup-v2.png", files[1].Name)

	// 越界位置
	_, err = env.agreementSvc.AttachMilestonePreview(ctx, developer.ID, agreement.ID, 9, ref)
	assert.ErrorIs(t, err, dto.ErrMilestoneNotFound)

	assert.True(t, env.events.has(EventMilestoneUpdated))
}

func TestAgreementService_AttachFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, developer, agreement := env.seedAgreement(t, decimal.NewFromInt(500))

	ref := model.FileRef{Name: "contract.pdf", URL: "https://files/contract.pdf", Hash: "abc"}

	// 文档只能客户追加
	_, err := env.agreementSvc.AttachDocument(ctx, developer.ID, agreement.ID, ref)
	assert.ErrorIs(t, err, dto.ErrForbidden)

	a, err := env.agreementSvc.AttachDocument(ctx, client.ID, agreement.ID, ref)
	require.NoError(t, err)
	docs, err := a.GetDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "contract.pdf", docs[0].Name)

	// 交付物只能开发者追加
	del := model.FileRef{Name: "build.zip", URL: "https://files/build.zip"}
	a, err = env.agreementSvc.AttachDeliverable(ctx, developer.ID, agreement.ID, del)
	require.NoError(t, err)
	items, err := a.GetDeliverables()
	require.NoError(t, err)
	require.Len(t, items, 1)

	// 终态协议拒绝追加
	env.transition(t, developer.ID, agreement.ID, "active")
	env.transition(t, client.ID, agreement.ID, "completed")
	env.transition(t, client.ID, agreement.ID, "paid")
	_, err = env.agreementSvc.AttachDocument(ctx, client.ID, agreement.ID, ref)
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)
}

func TestAgreementService_GetByDisplayID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, _, agreement := env.seedAgreement(t, decimal.NewFromInt(500))

	got, err := env.agreementSvc.Get(ctx, client.ID, agreement.DisplayID)
	require.NoError(t, err)
	assert.Equal(t, agreement.ID, got.ID)

	outsider := env.seedUser(t, model.UserRoleClient)
	_, err = env.agreementSvc.Get(ctx, outsider.ID, agreement.DisplayID)
	assert.ErrorIs(t, err, dto.ErrNotAgreementParty)
}
