package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/andressep95/verification-service/internal/domain"
	"github.com/andressep95/verification-service/internal/repository"
	"github.com/andressep95/verification-service/pkg/hash"
)

const (
	LiveKeyPrefix = "NPRO_"
	TestKeyPrefix = "TEST_"

	keyPrefixLength = 12
	keySecretBytes  = 24
	maxKeyAttempts  = 3
)

// APIKeyCache remembers keys that already passed the argon2 check.
type APIKeyCache interface {
	Get(ctx context.Context, apiKey string) (string, bool, error)
	Put(ctx context.Context, apiKey, clientID string) error
	Forget(ctx context.Context, apiKey string) error
	ForgetClient(ctx context.Context, clientID string) error
}

type APIClientService struct {
	repo  repository.APIClientRepository
	cache APIKeyCache

	hashSecret   func(string) (string, error)
	verifySecret func(secret, encoded string) (bool, error)
}

type APIClientOption func(*APIClientService)

// WithArgon2Config overrides the cost parameters for newly issued keys.
// Existing hashes keep verifying with the parameters encoded in them.
func WithArgon2Config(cfg hash.Argon2Config) APIClientOption {
	return func(s *APIClientService) {
		s.hashSecret = func(secret string) (string, error) {
			return hash.HashSecretWithConfig(secret, cfg)
		}
	}
}

// NewAPIClientService wires the client store. cache may be nil.
func NewAPIClientService(repo repository.APIClientRepository, cache APIKeyCache, opts ...APIClientOption) *APIClientService {
	s := &APIClientService{
		repo:         repo,
		cache:        cache,
		hashSecret:   hash.HashSecret,
		verifySecret: hash.VerifySecret,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateAPIClientInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Environment string `json:"environment" validate:"omitempty,oneof=live test"`
}

// CreateClient registers an integrator. The returned key is shown once and
// only its hash is kept.
func (s *APIClientService) CreateClient(ctx context.Context, in CreateAPIClientInput) (*domain.APIClient, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", domain.NewValidationError("name is required")
	}
	prefix := LiveKeyPrefix
	if in.Environment == "test" {
		prefix = TestKeyPrefix
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := generateAPIKey(prefix)
		if err != nil {
			return nil, "", err
		}
		keyHash, err := s.hashSecret(key)
		if err != nil {
			return nil, "", errors.Wrap(err, "hash api key")
		}

		client := &domain.APIClient{
			ID:        uuid.New(),
			Name:      name,
			KeyPrefix: key[:keyPrefixLength],
			KeyHash:   keyHash,
			Active:    true,
		}
		err = s.repo.Create(ctx, client)
		if errors.Is(err, domain.ErrDuplicateKeyPrefix) {
			continue
		}
		if err != nil {
			return nil, "", errors.Wrap(err, "create api client")
		}

		log.Info().Str("client_id", client.ID.String()).Str("name", name).Msg("api client created")
		return client, key, nil
	}
	return nil, "", errors.New("could not allocate a unique api key prefix")
}

// Authenticate resolves an API key to an active client.
func (s *APIClientService) Authenticate(ctx context.Context, apiKey string) (*domain.APIClient, error) {
	if len(apiKey) <= keyPrefixLength ||
		!(strings.HasPrefix(apiKey, LiveKeyPrefix) || strings.HasPrefix(apiKey, TestKeyPrefix)) {
		return nil, domain.ErrInvalidAPIKey
	}

	if client, ok := s.fromCache(ctx, apiKey); ok {
		return client, nil
	}

	client, err := s.repo.GetByKeyPrefix(ctx, apiKey[:keyPrefixLength])
	if errors.Is(err, domain.ErrAPIClientNotFound) {
		return nil, domain.ErrInvalidAPIKey
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup api client")
	}

	match, err := s.verifySecret(apiKey, client.KeyHash)
	if err != nil {
		return nil, errors.Wrap(err, "verify api key")
	}
	if !match {
		return nil, domain.ErrInvalidAPIKey
	}
	if !client.Active {
		return nil, domain.ErrAPIClientInactive
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, apiKey, client.ID.String()); err != nil {
			log.Warn().Err(err).Msg("api key cache write failed")
		}
	}
	return client, nil
}

// fromCache returns the client for a cached key if it is still active.
// Any cache trouble falls through to the full check.
func (s *APIClientService) fromCache(ctx context.Context, apiKey string) (*domain.APIClient, bool) {
	if s.cache == nil {
		return nil, false
	}
	id, ok, err := s.cache.Get(ctx, apiKey)
	if err != nil {
		log.Warn().Err(err).Msg("api key cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	clientID, err := uuid.Parse(id)
	if err == nil {
		client, err := s.repo.GetByID(ctx, clientID)
		if err == nil && client.Active {
			return client, true
		}
	}
	_ = s.cache.Forget(ctx, apiKey)
	return nil, false
}

func (s *APIClientService) ListClients(ctx context.Context) ([]*domain.APIClient, error) {
	return s.repo.List(ctx)
}

// DeactivateClient revokes every key of a client immediately.
func (s *APIClientService) DeactivateClient(ctx context.Context, id string) error {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return domain.NewValidationError("invalid api client id")
	}
	if err := s.repo.SetActive(ctx, clientID, false); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.ForgetClient(ctx, clientID.String()); err != nil {
			log.Warn().Err(err).Str("client_id", id).Msg("api key cache purge failed")
		}
	}
	log.Info().Str("client_id", id).Msg("api client deactivated")
	return nil
}

func generateAPIKey(prefix string) (string, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate api key")
	}
	return prefix + hex.EncodeToString(buf), nil
}
