package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"portfolio_backend/internal/config"
	"portfolio_backend/internal/model"
	"portfolio_backend/internal/repository"
	"portfolio_backend/internal/util"
	"portfolio_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id uint) error
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.UserRole
}

type AuthService struct {
	UserRepo UserStore
	Cfg      *config.Config
}

func NewAuthService(userRepo UserStore, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return nil, util.Validationf("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, util.Validationf("invalid email address")
	}
	if len(in.Password) < 8 {
		return nil, util.Validationf("password must be at least 8 characters")
	}

	role := in.Role
	if role == "" {
		role = model.Candidate
	}
	if !role.IsValid() {
		return nil, util.Validationf("unknown role %q", role)
	}

	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return "", nil, util.ErrPermissionDenied
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Log.Warn("Failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return token, user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, util.ErrNotFound
	}
	return user, err
}

// EnsureAdmin creates the configured administrator if it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context) error {
	admin := s.Cfg.Admin
	if admin.Email == "" {
		return nil
	}

	_, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(admin.Email)))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	user, err := s.Register(ctx, RegisterInput{
		Name:     admin.Name,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     model.Admin,
	})
	if err != nil {
		return err
	}
	logger.Log.Info("Seeded administrator account", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return nil
}
