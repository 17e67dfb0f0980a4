package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// edgeKey 状态机边的键
type edgeKey struct {
	from model.AgreementStatus
	to   model.AgreementStatus
}

// transitionEdge 状态机边: 允许的发起侧与随状态落库的副作用
type transitionEdge struct {
	actor model.UserRole // 空值表示双方均可
	apply func(a *model.Agreement, reason string, now int64)
}

// transitions 协议状态机。不在表内的流转一律拒绝，
// 终态没有出边，重复放款在这里挡住。
var transitions = map[edgeKey]transitionEdge{
	{model.AgreementStatusPending, model.AgreementStatusActive}: {
		actor: model.UserRoleDeveloper,
		apply: func(a *model.Agreement, _ string, now int64) { a.StartDate = now },
	},
	{model.AgreementStatusPending, model.AgreementStatusRejected}: {
		actor: model.UserRoleDeveloper,
		apply: func(a *model.Agreement, reason string, _ int64) { a.RejectReason = reason },
	},
	{model.AgreementStatusPending, model.AgreementStatusCancelled}: {
		actor: model.UserRoleClient,
		apply: func(a *model.Agreement, reason string, _ int64) { a.CancelReason = reason },
	},
	{model.AgreementStatusActive, model.AgreementStatusInProgress}: {
		actor: model.UserRoleDeveloper,
	},
	{model.AgreementStatusActive, model.AgreementStatusCompleted}: {
		apply: func(a *model.Agreement, _ string, now int64) { a.EndDate = now },
	},
	{model.AgreementStatusInProgress, model.AgreementStatusCompleted}: {
		apply: func(a *model.Agreement, _ string, now int64) { a.EndDate = now },
	},
	{model.AgreementStatusActive, model.AgreementStatusCancelled}: {
		actor: model.UserRoleClient,
		apply: func(a *model.Agreement, reason string, _ int64) { a.CancelReason = reason },
	},
	{model.AgreementStatusInProgress, model.AgreementStatusCancelled}: {
		actor: model.UserRoleClient,
		apply: func(a *model.Agreement, reason string, _ int64) { a.CancelReason = reason },
	},
	{model.AgreementStatusCompleted, model.AgreementStatusPaid}: {
		actor: model.UserRoleClient,
	},
}

// AgreementService 协议生命周期服务
type AgreementService struct {
	agreementRepo repository.AgreementRepository
	gigRepo       repository.GigRepository
	userRepo      repository.UserRepository
	stats         *StatisticsService
	events        EventPublisher
}

// NewAgreementService 创建协议服务
func NewAgreementService(
	agreementRepo repository.AgreementRepository,
	gigRepo repository.GigRepository,
	userRepo repository.UserRepository,
	stats *StatisticsService,
	events EventPublisher,
) *AgreementService {
	return &AgreementService{
		agreementRepo: agreementRepo,
		gigRepo:       gigRepo,
		userRepo:      userRepo,
		stats:         stats,
		events:        events,
	}
}

// Create 客户基于服务套餐发起协议，初始状态 pending
func (s *AgreementService) Create(ctx context.Context, clientID string, req *dto.CreateAgreementRequest) (*model.Agreement, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, dto.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !client.Role.CanAct(model.UserRoleClient) {
		return nil, dto.ErrForbidden.WithMessage("only clients can create agreements")
	}

	gig, err := s.gigRepo.GetByID(ctx, req.GigID)
	if errors.Is(err, repository.ErrGigNotFound) {
		return nil, dto.ErrGigNotFound
	}
	if err != nil {
		return nil, err
	}
	if gig.DeveloperID == clientID {
		return nil, dto.ErrInvalidParams.WithMessage("cannot create an agreement with your own gig")
	}

	pkg, err := gig.FindPackage(req.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, dto.ErrPackageNotFound
	}

	names := req.Milestones
	if len(names) == 0 {
		names = pkg.Milestones
	}

	agreement := &model.Agreement{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		DeveloperID: gig.DeveloperID,
		GigID:       gig.ID,
		PackageID:   pkg.PackageID,
		Status:      model.AgreementStatusPending,
		TotalValue:  pkg.Price,
	}
	agreement.Recalculate()
	for i, name := range names {
		agreement.Milestones = append(agreement.Milestones, model.Milestone{
			Position: i,
			Name:     name,
			Status:   model.MilestoneStatusPending,
		})
	}

	err = createWithDisplayID(ctx, repository.DisplayPrefixAgreement,
		s.agreementRepo.NextDisplayID,
		func(displayID string) error {
			agreement.DisplayID = displayID
			return s.agreementRepo.Create(ctx, agreement)
		})
	if err != nil {
		return nil, err
	}

	logger.Info("agreement created",
		zap.String("agreement_id", agreement.ID),
		zap.String("display_id", agreement.DisplayID),
		zap.String("client_id", clientID),
		zap.String("developer_id", gig.DeveloperID),
		zap.String("total_value", agreement.TotalValue.String()))
	s.events.Publish(ctx, EventAgreementCreated, agreement)
	return agreement, nil
}

// Get 读取协议，仅参与方可见。id 可以是内部 ID 或展示编号。
func (s *AgreementService) Get(ctx context.Context, actorID, id string) (*model.Agreement, error) {
	agreement, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !agreement.IsParty(actorID) {
		return nil, dto.ErrNotAgreementParty
	}
	return agreement, nil
}

// ListByUser 返回用户作为任一方参与的协议
func (s *AgreementService) ListByUser(ctx context.Context, userID string, page *repository.Pagination) ([]*model.Agreement, error) {
	return s.agreementRepo.ListByUser(ctx, userID, page)
}

// TransitionStatus 执行一次状态流转。
//
// 每条边绑定唯一的授权侧与副作用，非法流转与越权在落库前拒绝。
// 写入走乐观锁，冲突时重读重验重试，并发流转最多一个赢家。
func (s *AgreementService) TransitionStatus(ctx context.Context, actorID, id string, req *dto.TransitionStatusRequest) (*model.Agreement, error) {
	target, ok := model.ParseAgreementStatus(req.Status)
	if !ok {
		return nil, dto.ErrInvalidParams.WithMessagef("unknown agreement status %q", req.Status)
	}

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		agreement, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}

		side := agreement.SideOf(actorID)
		if side == "" {
			return nil, dto.ErrNotAgreementParty
		}

		from := agreement.Status
		edge, ok := transitions[edgeKey{from, target}]
		if !ok {
			return nil, dto.ErrInvalidTransition.WithMessagef(
				"cannot transition agreement from %s to %s", from, target)
		}
		if edge.actor != "" && edge.actor != side {
			return nil, dto.ErrForbidden.WithMessagef(
				"only the %s can move the agreement to %s", edge.actor, target)
		}

		now := time.Now().UnixMilli()
		agreement.Status = target
		if edge.apply != nil {
			edge.apply(agreement, req.Reason, now)
		}

		err = s.agreementRepo.UpdateWithVersion(ctx, agreement)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.Info("agreement status changed",
			zap.String("agreement_id", agreement.ID),
			zap.String("from", from.String()),
			zap.String("to", target.String()),
			zap.String("actor_id", actorID))

		// 放款入账双方完成计数。流转成功才会走到这里，重复放款在
		// 边表处已被拒绝，计数最多发生一次。
		if target == model.AgreementStatusPaid {
			s.stats.CreditCompleted(ctx, agreement.ClientID, agreement.DeveloperID, agreement.ID)
		}

		s.events.Publish(ctx, EventAgreementStatus, agreement)
		return agreement, nil
	}
	return nil, dto.ErrInternalError.WithMessage("agreement update contention, please retry")
}

// UpdateMilestone 开发者推进里程碑进度
func (s *AgreementService) UpdateMilestone(ctx context.Context, actorID, id string, position int, req *dto.UpdateMilestoneRequest) (*model.Milestone, error) {
	status, ok := model.ParseMilestoneStatus(req.Status)
	if !ok {
		return nil, dto.ErrInvalidParams.WithMessagef("unknown milestone status %q", req.Status)
	}

	agreement, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	side := agreement.SideOf(actorID)
	if side == "" {
		return nil, dto.ErrNotAgreementParty
	}
	if side != model.UserRoleDeveloper {
		return nil, dto.ErrForbidden.WithMessage("only the developer can update milestones")
	}
	if agreement.Status != model.AgreementStatusActive && agreement.Status != model.AgreementStatusInProgress {
		return nil, dto.ErrInvalidTransition.WithMessagef(
			"milestones cannot be updated while the agreement is %s", agreement.Status)
	}

	milestone, err := s.agreementRepo.GetMilestone(ctx, agreement.ID, position)
	if errors.Is(err, repository.ErrMilestoneNotFound) {
		return nil, dto.ErrMilestoneNotFound
	}
	if err != nil {
		return nil, err
	}

	milestone.Status = status
	if status == model.MilestoneStatusCompleted {
		milestone.CompletedAt = time.Now().UnixMilli()
	} else {
		milestone.CompletedAt = 0
	}
	if err := s.agreementRepo.UpdateMilestone(ctx, milestone); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, EventMilestoneUpdated, milestone)
	return milestone, nil
}

// AttachMilestonePreview 开发者给里程碑追加预览文件引用，只追加不删除。
// 进度约束与 UpdateMilestone 相同: 协议须处于 active 或 in_progress。
func (s *AgreementService) AttachMilestonePreview(ctx context.Context, actorID, id string, position int, ref model.FileRef) (*model.Milestone, error) {
	agreement, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	side := agreement.SideOf(actorID)
	if side == "" {
		return nil, dto.ErrNotAgreementParty
	}
	if side != model.UserRoleDeveloper {
		return nil, dto.ErrForbidden.WithMessage("only the developer can attach milestone previews")
	}
	if agreement.Status != model.AgreementStatusActive && agreement.Status != model.AgreementStatusInProgress {
		return nil, dto.ErrInvalidTransition.WithMessagef(
			"milestone previews cannot be attached while the agreement is %s", agreement.Status)
	}

	milestone, err := s.agreementRepo.GetMilestone(ctx, agreement.ID, position)
	if errors.Is(err, repository.ErrMilestoneNotFound) {
		return nil, dto.ErrMilestoneNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := milestone.AppendPreviewFile(ref); err != nil {
		return nil, err
	}
	if err := s.agreementRepo.UpdateMilestone(ctx, milestone); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, EventMilestoneUpdated, milestone)
	return milestone, nil
}

// AttachDocument 客户追加协议文档引用，只追加不删除
func (s *AgreementService) AttachDocument(ctx context.Context, actorID, id string, ref model.FileRef) (*model.Agreement, error) {
	return s.attachFile(ctx, actorID, id, model.UserRoleClient,
		func(a *model.Agreement) error { return a.AppendDocument(ref) })
}

// AttachDeliverable 开发者追加交付物引用，只追加不删除
func (s *AgreementService) AttachDeliverable(ctx context.Context, actorID, id string, ref model.FileRef) (*model.Agreement, error) {
	return s.attachFile(ctx, actorID, id, model.UserRoleDeveloper,
		func(a *model.Agreement) error { return a.AppendDeliverable(ref) })
}

func (s *AgreementService) attachFile(ctx context.Context, actorID, id string, requiredSide model.UserRole, appendRef func(*model.Agreement) error) (*model.Agreement, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		agreement, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		side := agreement.SideOf(actorID)
		if side == "" {
			return nil, dto.ErrNotAgreementParty
		}
		if side != requiredSide {
			return nil, dto.ErrForbidden.WithMessagef("only the %s can attach this file", requiredSide)
		}
		if agreement.Status.IsTerminal() {
			return nil, dto.ErrInvalidTransition.WithMessagef(
				"cannot attach files to a %s agreement", agreement.Status)
		}

		if err := appendRef(agreement); err != nil {
			return nil, err
		}
		err = s.agreementRepo.UpdateWithVersion(ctx, agreement)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return agreement, nil
	}
	return nil, dto.ErrInternalError.WithMessage("agreement update contention, please retry")
}

// find 兼容内部 ID 与展示编号两种寻址
func (s *AgreementService) find(ctx context.Context, id string) (*model.Agreement, error) {
	var (
		agreement *model.Agreement
		err       error
	)
	if strings.HasPrefix(id, repository.DisplayPrefixAgreement) {
		agreement, err = s.agreementRepo.GetByDisplayID(ctx, id)
	} else {
		agreement, err = s.agreementRepo.GetByID(ctx, id)
	}
	if errors.Is(err, repository.ErrAgreementNotFound) {
		return nil, dto.ErrAgreementNotFound
	}
	return agreement, err
}
