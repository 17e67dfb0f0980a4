package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/model"
	"github.com/CodeDript/codedript-server-sub001/internal/repository"
	"github.com/CodeDript/codedript-server-sub001/pkg/logger"
)

// tokenIssuer JWT 签发方
const tokenIssuer = "codedript-server"

// Claims JWT Claims
type Claims struct {
	UserID string         `json:"user_id"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// UserService 用户注册登录服务
type UserService struct {
	userRepo repository.UserRepository

	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &UserService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register 注册用户
func (s *UserService) Register(ctx context.Context, req *dto.RegisterRequest) (*model.User, error) {
	role := model.UserRole(req.Role)
	if !role.Valid() {
		return nil, dto.ErrInvalidParams.WithMessagef("unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:            uuid.NewString(),
		Username:      req.Username,
		Email:         req.Email,
		PasswordHash:  string(hash),
		WalletAddress: req.WalletAddress,
		Role:          role,
	}
	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrUserDuplicate) {
		return nil, dto.ErrUserAlreadyExists
	}
	if err != nil {
		return nil, err
	}

	logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))
	user.PasswordHash = ""
	return user, nil
}

// Login 校验凭证并签发 token
func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// 不区分用户不存在与密码错误
		return nil, dto.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, dto.ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := s.generateToken(user, expiresAt)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.UnixMilli(),
		UserID:    user.ID,
		Role:      string(user.Role),
	}, nil
}

// GetProfile 读取用户资料
func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, dto.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// generateToken 生成 JWT Token
func (s *UserService) generateToken(user *model.User, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken 验证 JWT Token
func (s *UserService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
