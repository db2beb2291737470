package users

import (
	"context"

	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, isActive bool, status models.UserStatus) error
	Delete(ctx context.Context, id string) error
}
