package cache

import (
	"context"
	"time"

	"bahikhata/backend/internal/domain"
)

// PartyCache holds normalized party views keyed by business and party id.
type PartyCache interface {
	Get(ctx context.Context, businessID string, partyID string) (*domain.PartyView, bool, error)
	Set(ctx context.Context, businessID string, view domain.PartyView, ttl time.Duration) error
	Delete(ctx context.Context, businessID string, partyID string) error
}

type NoopPartyCache struct{}

func (NoopPartyCache) Get(_ context.Context, _ string, _ string) (*domain.PartyView, bool, error) {
	return nil, false, nil
}

func (NoopPartyCache) Set(_ context.Context, _ string, _ domain.PartyView, _ time.Duration) error {
	return nil
}

func (NoopPartyCache) Delete(_ context.Context, _ string, _ string) error {
	return nil
}

func partyKey(businessID string, partyID string) string {
	return "party:" + businessID + ":" + partyID
}
