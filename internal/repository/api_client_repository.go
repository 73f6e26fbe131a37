package repository

import (
	"context"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/google/uuid"
)

type APIClientRepository interface {
	Create(ctx context.Context, client *domain.APIClient) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIClient, error)
	GetByKeyPrefix(ctx context.Context, prefix string) (*domain.APIClient, error)
	List(ctx context.Context) ([]*domain.APIClient, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
