package service

import (
	"context"
	"errors"
	"time"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/repository"
	"helpdesk-collab/backend/pkg/jwt"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService handles account creation, authentication and role management.
type UserService struct {
	users  repository.UserRepository
	tokens *jwt.Service
}

func NewUserService(users repository.UserRepository, tokens *jwt.Service) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// CreateUser registers an account and returns it with a fresh token. New
// accounts always get the user role; elevation is a separate admin action.
func (s *UserService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, string, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, "", ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates a user and returns a JWT token.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	user.LastLogin = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUserByID retrieves a user by ID.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// SetRole changes a user's role. Caller must be an admin; the API layer
// enforces that.
func (s *UserService) SetRole(ctx context.Context, id uint, role models.Role) (*models.User, error) {
	if !role.IsValid() {
		return nil, errors.New("invalid role")
	}
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
