package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/auth"
	"github.com/spec-kit/gm-relay/internal/domain"
)

type memLinks struct {
	mu    sync.Mutex
	links map[uint32]*domain.AccountLink
}

func newMemLinks() *memLinks {
	return &memLinks{links: make(map[uint32]*domain.AccountLink)}
}

func (m *memLinks) UpsertSecret(_ context.Context, accountID uint32, gmName, secretHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[accountID] = &domain.AccountLink{
		AccountID:       accountID,
		GMName:          gmName,
		SecretHash:      &secretHash,
		SecretExpiresAt: &expiresAt,
		UpdatedAt:       time.Now(),
	}
	return nil
}

func (m *memLinks) GetByAccount(_ context.Context, accountID uint32) (*domain.AccountLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[accountID]; ok {
		copied := *link
		return &copied, nil
	}
	return nil, nil
}

func (m *memLinks) GetByActor(_ context.Context, actorID string) (*domain.AccountLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.ActorID != nil && *link.ActorID == actorID {
			copied := *link
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memLinks) ListPendingSecrets(_ context.Context, now time.Time) ([]domain.AccountLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AccountLink
	for _, link := range m.links {
		if link.SecretHash != nil && link.SecretExpiresAt != nil && now.Before(*link.SecretExpiresAt) {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (m *memLinks) BindActor(_ context.Context, accountID uint32, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link := m.links[accountID]
	link.ActorID = &actorID
	link.Verified = true
	link.SecretHash = nil
	link.SecretExpiresAt = nil
	return nil
}

func (m *memLinks) Delete(_ context.Context, accountID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, accountID)
	return nil
}

func TestIssueSecretStoresHashOnly(t *testing.T) {
	links := newMemLinks()
	svc := NewLinkService(links, 15*time.Minute, zap.NewNop())
	ctx := context.Background()

	secret, err := svc.IssueSecret(ctx, 1001, "GMBob")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	link, err := svc.Status(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "GMBob", link.GMName)
	assert.False(t, link.Verified)
	require.NotNil(t, link.SecretHash)
	assert.NotEqual(t, secret, *link.SecretHash)
	assert.True(t, auth.CheckSecret(*link.SecretHash, secret))
	assert.True(t, link.HasPendingSecret(time.Now()))
}

func TestIssueSecretReplacesPrevious(t *testing.T) {
	links := newMemLinks()
	svc := NewLinkService(links, 15*time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := svc.IssueSecret(ctx, 1001, "GMBob")
	require.NoError(t, err)
	second, err := svc.IssueSecret(ctx, 1001, "GMBob")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	link, err := svc.Status(ctx, 1001)
	require.NoError(t, err)
	assert.False(t, auth.CheckSecret(*link.SecretHash, first))
	assert.True(t, auth.CheckSecret(*link.SecretHash, second))
}

func TestUnlinkRemovesLink(t *testing.T) {
	links := newMemLinks()
	svc := NewLinkService(links, 15*time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := svc.IssueSecret(ctx, 1001, "GMBob")
	require.NoError(t, err)
	require.NoError(t, svc.Unlink(ctx, 1001))

	link, err := svc.Status(ctx, 1001)
	require.NoError(t, err)
	assert.Nil(t, link)
}
