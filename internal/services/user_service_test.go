package services

import (
	"context"
	"testing"

	"github.com/HarlanReyes/bastion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Get_Success(t *testing.T) {
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return activeUser(), nil
		},
	}

	svc := NewUserService(users, testLogger())
	resp, err := svc.Get(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, "user123", resp.ID)
	assert.Equal(t, "user@example.com", resp.Email)
}

func TestUserService_Get_NotFound(t *testing.T) {
	svc := NewUserService(&MockUserStore{}, testLogger())
	resp, err := svc.Get(context.Background(), "ghost")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserService_UpdateProfile_Success(t *testing.T) {
	users := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return activeUser(), nil
		},
		UpdateFunc: func(ctx context.Context, id string, user *models.User) (*models.User, error) {
			return user, nil
		},
	}

	svc := NewUserService(users, testLogger())
	resp, err := svc.UpdateProfile(context.Background(), "user123", "  Renamed  ")

	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.Name)
}

func TestUserService_UpdateProfile_EmptyName(t *testing.T) {
	svc := NewUserService(&MockUserStore{}, testLogger())
	resp, err := svc.UpdateProfile(context.Background(), "user123", "   ")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
