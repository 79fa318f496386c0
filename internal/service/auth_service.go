package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"grocery-mart/internal/models"
	"grocery-mart/internal/store"
	"grocery-mart/internal/util"

	"go.uber.org/zap"
)

// AuthService handles storefront signup/login and admin login. Passwords are
// stored and compared as entered.
type AuthService struct {
	accounts store.AccountRepository
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(accounts store.AccountRepository) *AuthService {
	return &AuthService{
		accounts: accounts,
		logger:   util.GetLogger(),
	}
}

// SignupRequest represents a new storefront account
type SignupRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6"`
	Name     string  `json:"name" binding:"required,min=2"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// LoginRequest is shared by user and admin login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*models.User, error) {
	var errs fieldErrors
	if _, err := mail.ParseAddress(req.Email); err != nil {
		errs.add("email is invalid")
	}
	if len(req.Password) < 6 {
		errs.add("Password must be at least 6 characters")
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		errs.add("Name must be at least 2 characters")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	_, err := s.accounts.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user := &models.User{
		Email:    req.Email,
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Phone:    req.Phone,
		Address:  req.Address,
	}
	if err := s.accounts.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User signed up", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*models.User, error) {
	user, err := s.accounts.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Password != req.Password {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) AdminLogin(ctx context.Context, req *LoginRequest) (*models.Admin, error) {
	admin, err := s.accounts.GetAdminByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}
	if admin.Password != req.Password {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("Admin logged in", zap.Int64("admin_id", admin.ID))
	return admin, nil
}
