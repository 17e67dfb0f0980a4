package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// GigService 服务列表服务
type GigService struct {
	gigRepo  repository.GigRepository
	userRepo repository.UserRepository
}

// NewGigService 创建服务列表服务
func NewGigService(gigRepo repository.GigRepository, userRepo repository.UserRepository) *GigService {
	return &GigService{gigRepo: gigRepo, userRepo: userRepo}
}

// Create 开发者上架服务
func (s *GigService) Create(ctx context.Context, developerID string, req *dto.CreateGigRequest) (*model.Gig, error) {
	developer, err := s.userRepo.GetByID(ctx, developerID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, dto.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !developer.Role.CanAct(model.UserRoleDeveloper) {
		return nil, dto.ErrForbidden.WithMessage("only developers can create gigs")
	}

	seen := make(map[string]bool, len(req.Packages))
	pkgs := make([]model.GigPackage, 0, len(req.Packages))
	for _, p := range req.Packages {
		if seen[p.PackageID] {
			return nil, dto.ErrInvalidParams.WithMessagef("duplicate package id %q", p.PackageID)
		}
		seen[p.PackageID] = true
		if !p.Price.IsPositive() {
			return nil, dto.ErrInvalidParams.WithMessagef("package %q price must be positive", p.PackageID)
		}
		pkgs = append(pkgs, model.GigPackage{
			PackageID:    p.PackageID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price,
			DeliveryDays: p.DeliveryDays,
			Revisions:    p.Revisions,
			Milestones:   p.Milestones,
		})
	}

	gig := &model.Gig{
		ID:          uuid.NewString(),
		DeveloperID: developerID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      model.GigStatusActive,
	}
	if err := gig.SetPackages(pkgs); err != nil {
		return nil, err
	}
	if err := s.gigRepo.Create(ctx, gig); err != nil {
		return nil, err
	}

	logger.Info("gig created",
		zap.String("gig_id", gig.ID),
		zap.String("developer_id", developerID),
		zap.Int("packages", len(pkgs)))
	return gig, nil
}

// Get 读取服务详情
func (s *GigService) Get(ctx context.Context, id string) (*model.Gig, error) {
	gig, err := s.gigRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrGigNotFound) {
		return nil, dto.ErrGigNotFound
	}
	return gig, err
}

// List 按分类分页浏览上架服务
func (s *GigService) List(ctx context.Context, category string, page *repository.Pagination) ([]*model.Gig, error) {
	return s.gigRepo.List(ctx, category, page)
}

// Pause 开发者下架自己的服务
func (s *GigService) Pause(ctx context.Context, developerID, id string) (*model.Gig, error) {
	gig, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if gig.DeveloperID != developerID {
		return nil, dto.ErrForbidden.WithMessage("only the gig owner can pause it")
	}
	if gig.Status == model.GigStatusPaused {
		return gig, nil
	}
	gig.Status = model.GigStatusPaused
	if err := s.gigRepo.Update(ctx, gig); err != nil {
		return nil, err
	}
	return gig, nil
}
