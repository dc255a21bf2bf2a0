package query

import (
	"context"

	"headline_aggregator/internal/domain"
)

// ArticleReader is the read-side slice of the article store.
type ArticleReader interface {
	ListAll(ctx context.Context) ([]domain.Article, error)
}

// Grouped maps country -> source -> articles, newest first within each group.
type Grouped map[string]map[string][]domain.Article

// Service is the pure read-side transform for the news endpoint. No retry or
// quota concerns; it serves whatever is persisted.
type Service struct {
	articles ArticleReader
}

func NewService(articles ArticleReader) *Service {
	return &Service{articles: articles}
}

// GroupedByCountry reads all articles and groups them by country, then by
// source. ListAll already orders by published_at descending, and appending
// preserves that order inside each group.
func (s *Service) GroupedByCountry(ctx context.Context) (Grouped, error) {
	articles, err := s.articles.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(Grouped)
	for _, a := range articles {
		bySource, ok := grouped[a.Country]
		if !ok {
			bySource = make(map[string][]domain.Article)
			grouped[a.Country] = bySource
		}
		bySource[a.Source] = append(bySource[a.Source], a)
	}

	return grouped, nil
}
