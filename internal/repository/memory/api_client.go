package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
)

type APIClientRepository struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]domain.APIClient
}

var _ repository.APIClientRepository = (*APIClientRepository)(nil)

func NewAPIClientRepository() *APIClientRepository {
	return &APIClientRepository{clients: make(map[uuid.UUID]domain.APIClient)}
}

func (r *APIClientRepository) Create(_ context.Context, client *domain.APIClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		if c.KeyPrefix == client.KeyPrefix {
			return domain.ErrDuplicateKeyPrefix
		}
	}

	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt
	r.clients[client.ID] = *client
	return nil
}

func (r *APIClientRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.APIClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrAPIClientNotFound
	}
	return &c, nil
}

func (r *APIClientRepository) GetByKeyPrefix(_ context.Context, prefix string) (*domain.APIClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clients {
		if c.KeyPrefix == prefix {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrAPIClientNotFound
}

func (r *APIClientRepository) List(_ context.Context) ([]*domain.APIClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.APIClient, 0, len(r.clients))
	for _, c := range r.clients {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *APIClientRepository) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return domain.ErrAPIClientNotFound
	}
	c.Active = active
	c.UpdatedAt = time.Now().UTC()
	r.clients[id] = c
	return nil
}
