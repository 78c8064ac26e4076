package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"
	"github.com/tuncerburak97/bekci/internal/apierr"
	"github.com/tuncerburak97/bekci/internal/repository"
	"github.com/tuncerburak97/bekci/internal/worker"
)

// Service validates API keys and permission grants. The key arrives as
// the raw Authorization header value; only its salted SHA-256 hash ever
// reaches the store.
type Service struct {
	salt   string
	repo   repository.LookupRepository
	pool   *worker.Pool
	logger *zerolog.Logger
}

func NewService(salt string, repo repository.LookupRepository, pool *worker.Pool, logger *zerolog.Logger) *Service {
	return &Service{salt: salt, repo: repo, pool: pool, logger: logger}
}

// HashKey returns hex(sha256(salt || key)).
func HashKey(salt, key string) string {
	sum := sha256.Sum256([]byte(salt + key))
	return hex.EncodeToString(sum[:])
}

// VerifyAndGetUserID runs the full auth chain for one request: key hash
// lookup, owner resolution, account state, permission grant. A missing
// header fails fast with no store access. The store calls run as one
// offloaded unit on the worker pool.
func (s *Service) VerifyAndGetUserID(ctx context.Context, authHeader, apiID string) (string, error) {
	if authHeader == "" {
		return "", apierr.Unauthenticated("missing Authorization header")
	}

	hashedKey := HashKey(s.salt, authHeader)

	return worker.Do(ctx, s.pool, func(ctx context.Context) (string, error) {
		return s.verify(ctx, hashedKey, apiID)
	})
}

func (s *Service) verify(ctx context.Context, hashedKey, apiID string) (string, error) {
	key, err := s.repo.FindKeyByHash(ctx, hashedKey)
	if err != nil {
		return "", apierr.Internal(err)
	}
	if key == nil {
		return "", apierr.Unauthenticated("invalid API key")
	}

	user, err := s.repo.FindUser(ctx, key.UserID)
	if err != nil {
		return "", apierr.Internal(err)
	}
	if user == nil {
		return "", apierr.Forbidden("no user linked to this API key")
	}
	if !user.Enabled() {
		return "", apierr.Forbidden("user account is disabled")
	}

	// Grants are keyed by (user, api) only; the method column on the
	// permission table is not consulted.
	granted, err := s.repo.HasPermission(ctx, user.UserID, apiID)
	if err != nil {
		return "", apierr.Internal(err)
	}
	if !granted {
		return "", apierr.Forbidden("no access to this API")
	}

	s.logger.Debug().
		Str("user_id", user.UserID).
		Str("api_id", apiID).
		Msg("API key verified")

	return user.UserID, nil
}
