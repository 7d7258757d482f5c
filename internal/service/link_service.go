package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/auth"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/repository"
)

// LinkService manages account-to-actor link lifecycles from the game
// side. Secrets are shown once, stored only as hashes and consumed on
// first successful use.
type LinkService struct {
	links     repository.LinkRepository
	secretTTL time.Duration
	logger    *zap.Logger
}

// NewLinkService instantiates a link service.
func NewLinkService(links repository.LinkRepository, secretTTL time.Duration, logger *zap.Logger) *LinkService {
	if secretTTL <= 0 {
		secretTTL = 15 * time.Minute
	}
	return &LinkService{links: links, secretTTL: secretTTL, logger: logger}
}

// IssueSecret mints a fresh one-time secret for an account, replacing
// any previous unconsumed secret. The plaintext is returned exactly
// once for display in-game.
func (s *LinkService) IssueSecret(ctx context.Context, accountID uint32, gmName string) (string, error) {
	secret := uuid.NewString()
	hashed, err := auth.HashSecret(secret)
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(s.secretTTL)
	if err := s.links.UpsertSecret(ctx, accountID, gmName, hashed, expiresAt); err != nil {
		return "", err
	}
	s.logger.Info("link secret issued",
		zap.Uint32("account_id", accountID),
		zap.Time("expires_at", expiresAt),
	)
	return secret, nil
}

// Status returns the current link for an account, nil when none exists.
func (s *LinkService) Status(ctx context.Context, accountID uint32) (*domain.AccountLink, error) {
	return s.links.GetByAccount(ctx, accountID)
}

// Unlink removes an account's link entirely.
func (s *LinkService) Unlink(ctx context.Context, accountID uint32) error {
	if err := s.links.Delete(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("account unlinked", zap.Uint32("account_id", accountID))
	return nil
}
