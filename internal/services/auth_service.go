package services

import (
	"errors"
	"time"

	"commhub_backend/internal/auth"
	"commhub_backend/internal/models"
	"commhub_backend/internal/repositories"
	"commhub_backend/internal/services/dto"
	"commhub_backend/pkg/apperrors"
)

type AuthService interface {
	Register(req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(req *dto.LoginRequest) (*dto.AuthResponse, error)
	GetUser(userID string) (*dto.UserResponse, error)
}

type authService struct {
	userRepo  repositories.UserRepository
	jwtSecret string
	jwtTTL    time.Duration
}

func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, jwtTTL time.Duration) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

func (s *authService) Register(req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.ValidationError(map[string]string{"password": err.Error()})
	}

	if _, err := s.userRepo.FindByEmail(req.Email); err == nil {
		return nil, apperrors.ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, apperrors.StoreError(err, "find user by email")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Email:          req.Email,
		PasswordHash:   hash,
		DisplayName:    req.DisplayName,
		OrganizationID: req.OrganizationID,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, apperrors.StoreError(err, "create user")
	}

	return s.issueToken(user)
}

func (s *authService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.StoreError(err, "find user by email")
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *authService) GetUser(userID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.StoreError(err, "find user")
	}
	return buildUserResponse(user), nil
}

func (s *authService) issueToken(user *models.User) (*dto.AuthResponse, error) {
	token, err := auth.GenerateToken(user.ID, user.OrganizationID, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		AccessToken: token,
		User:        *buildUserResponse(user),
	}, nil
}

func buildUserResponse(user *models.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:             user.ID,
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		AvatarURL:      user.AvatarURL,
		OrganizationID: user.OrganizationID,
	}
}
