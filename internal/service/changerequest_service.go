package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// ChangeRequestService 范围变更请求服务
//
// 变更请求的定价与批准只是授权，从不直接动协议账本。
// 入账发生在对账引擎把 modification 交易关联到请求的那一刻。
type ChangeRequestService struct {
	crRepo        repository.ChangeRequestRepository
	agreementRepo repository.AgreementRepository
	events        EventPublisher
}

// NewChangeRequestService 创建变更请求服务
func NewChangeRequestService(
	crRepo repository.ChangeRequestRepository,
	agreementRepo repository.AgreementRepository,
	events EventPublisher,
) *ChangeRequestService {
	return &ChangeRequestService{
		crRepo:        crRepo,
		agreementRepo: agreementRepo,
		events:        events,
	}
}

// Create 客户对进行中的协议发起变更请求
func (s *ChangeRequestService) Create(ctx context.Context, actorID, agreementID string, req *dto.CreateChangeRequestRequest) (*model.ChangeRequest, error) {
	agreement, err := s.loadAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	side := agreement.SideOf(actorID)
	if side == "" {
		return nil, dto.ErrNotAgreementParty
	}
	if side != model.UserRoleClient {
		return nil, dto.ErrForbidden.WithMessage("only the client can request changes")
	}
	if agreement.Status.IsTerminal() {
		return nil, dto.ErrInvalidTransition.WithMessagef(
			"cannot request changes on a %s agreement", agreement.Status)
	}

	cr := &model.ChangeRequest{
		ID:          uuid.NewString(),
		AgreementID: agreement.ID,
		Description: req.Description,
		Status:      model.ChangeRequestStatusPending,
	}
	err = createWithDisplayID(ctx, repository.DisplayPrefixChangeRequest,
		s.crRepo.NextDisplayID,
		func(displayID string) error {
			cr.DisplayID = displayID
			return s.crRepo.Create(ctx, cr)
		})
	if err != nil {
		return nil, err
	}

	logger.Info("change request created",
		zap.String("change_request_id", cr.ID),
		zap.String("display_id", cr.DisplayID),
		zap.String("agreement_id", agreement.ID))
	s.events.Publish(ctx, EventChangeRequested, cr)
	return cr, nil
}

// ListByAgreement 列出协议下的变更请求，仅参与方可见
func (s *ChangeRequestService) ListByAgreement(ctx context.Context, actorID, agreementID string) ([]*model.ChangeRequest, error) {
	agreement, err := s.loadAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if !agreement.IsParty(actorID) {
		return nil, dto.ErrNotAgreementParty
	}
	return s.crRepo.ListByAgreement(ctx, agreement.ID)
}

// Price 开发者为待定价请求定价, pending -> priced
func (s *ChangeRequestService) Price(ctx context.Context, actorID, crID string, price decimal.Decimal) (*model.ChangeRequest, error) {
	if !price.IsPositive() {
		return nil, dto.ErrInvalidParams.WithMessage("price must be positive")
	}
	cr, agreement, err := s.load(ctx, crID)
	if err != nil {
		return nil, err
	}
	if agreement.SideOf(actorID) != model.UserRoleDeveloper {
		return nil, s.sideError(agreement, actorID, "only the developer can price a change request")
	}
	if cr.Status != model.ChangeRequestStatusPending {
		return nil, dto.ErrChangeRequestState.WithMessagef(
			"only pending change requests can be priced, current status is %s", cr.Status)
	}

	cr.Status = model.ChangeRequestStatusPriced
	cr.Price = &price
	cr.PricedAt = time.Now().UnixMilli()
	if err := s.crRepo.Update(ctx, cr); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, EventChangeRequestMoved, cr)
	return cr, nil
}

// Approve 客户批准已定价的请求，授权链上结算。批准不动账。
func (s *ChangeRequestService) Approve(ctx context.Context, actorID, crID string) (*model.ChangeRequest, error) {
	cr, agreement, err := s.load(ctx, crID)
	if err != nil {
		return nil, err
	}
	if agreement.SideOf(actorID) != model.UserRoleClient {
		return nil, s.sideError(agreement, actorID, "only the client can approve a change request")
	}
	if cr.Status != model.ChangeRequestStatusPriced {
		return nil, dto.ErrChangeRequestState.WithMessagef(
			"only priced change requests can be approved, current status is %s", cr.Status)
	}
	if cr.Price == nil {
		return nil, dto.ErrPriceNotSet
	}

	cr.Approved = true
	cr.ApprovedAt = time.Now().UnixMilli()
	if err := s.crRepo.Update(ctx, cr); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, EventChangeRequestMoved, cr)
	return cr, nil
}

// Reject 客户拒绝请求，pending 或 priced 均可拒绝
func (s *ChangeRequestService) Reject(ctx context.Context, actorID, crID string, reason string) (*model.ChangeRequest, error) {
	cr, agreement, err := s.load(ctx, crID)
	if err != nil {
		return nil, err
	}
	if agreement.SideOf(actorID) != model.UserRoleClient {
		return nil, s.sideError(agreement, actorID, "only the client can reject a change request")
	}
	return s.reject(ctx, cr, reason)
}

// Ignore 开发者忽略待定价的请求，等价于拒绝
func (s *ChangeRequestService) Ignore(ctx context.Context, actorID, crID string, reason string) (*model.ChangeRequest, error) {
	cr, agreement, err := s.load(ctx, crID)
	if err != nil {
		return nil, err
	}
	if agreement.SideOf(actorID) != model.UserRoleDeveloper {
		return nil, s.sideError(agreement, actorID, "only the developer can ignore a change request")
	}
	if cr.Status != model.ChangeRequestStatusPending {
		return nil, dto.ErrChangeRequestState.WithMessagef(
			"only pending change requests can be ignored, current status is %s", cr.Status)
	}
	if reason == "" {
		reason = "ignored by developer"
	}
	return s.reject(ctx, cr, reason)
}

func (s *ChangeRequestService) reject(ctx context.Context, cr *model.ChangeRequest, reason string) (*model.ChangeRequest, error) {
	if cr.Status.IsTerminal() {
		return nil, dto.ErrChangeRequestState.WithMessagef(
			"change request is already %s", cr.Status)
	}
	cr.Status = model.ChangeRequestStatusRejected
	cr.RejectReason = reason
	if err := s.crRepo.Update(ctx, cr); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, EventChangeRequestMoved, cr)
	return cr, nil
}

// load 取请求及其所属协议
func (s *ChangeRequestService) load(ctx context.Context, crID string) (*model.ChangeRequest, *model.Agreement, error) {
	cr, err := s.crRepo.GetByID(ctx, crID)
	if errors.Is(err, repository.ErrChangeRequestNotFound) {
		return nil, nil, dto.ErrChangeRequestNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	agreement, err := s.loadAgreement(ctx, cr.AgreementID)
	if err != nil {
		return nil, nil, err
	}
	return cr, agreement, nil
}

func (s *ChangeRequestService) loadAgreement(ctx context.Context, id string) (*model.Agreement, error) {
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

// sideError 非参与方与错侧参与方给出不同错误
func (s *ChangeRequestService) sideError(agreement *model.Agreement, actorID, message string) error {
	if !agreement.IsParty(actorID) {
		return dto.ErrNotAgreementParty
	}
	return dto.ErrForbidden.WithMessage(message)
}
