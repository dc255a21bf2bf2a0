package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"headline_aggregator/internal/domain"
)

// ProviderClient is one external news API integration. Implementations make
// a single attempt per call and surface failures through the typed errors in
// internal/provider; retry policy belongs to the orchestrator.
type ProviderClient interface {
	Name() string
	Countries() []string
	FetchHeadlines(ctx context.Context, country string) ([]domain.Article, error)
}

type ArticleStore interface {
	Upsert(ctx context.Context, article *domain.Article) (bool, error)
	HasFresh(ctx context.Context, country string, window time.Duration) (bool, error)
	ListAll(ctx context.Context) ([]domain.Article, error)
}

type QuotaTracker interface {
	Today(ctx context.Context, provider string) (*domain.QuotaState, error)
	RecordSuccess(ctx context.Context, provider string) (int, error)
	RecordRateLimited(ctx context.Context, provider string) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article) error
	Close() error
}
