package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/HarlanReyes/bastion/internal/repositories"
)

// UserService handles profile reads and updates for authenticated users.
type UserService struct {
	users  repositories.UserStore
	logger *slog.Logger
}

func NewUserService(users repositories.UserStore, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

func (s *UserService) Get(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	return UserModelToResponse(user), nil
}

// UpdateProfile updates mutable profile fields. Email, roles and security
// state change only through their dedicated flows.
func (s *UserService) UpdateProfile(ctx context.Context, id, name string) (*UserResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrBadRequest
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrUnavailable
	}

	user.Name = name
	updated, err := s.users.Update(ctx, id, user)
	if err != nil {
		s.logger.Error("failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrUnavailable
	}

	s.logger.Info("user profile updated", slog.String("user_id", id))
	return UserModelToResponse(updated), nil
}
