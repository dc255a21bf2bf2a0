package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"headline_aggregator/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Upsert inserts the article unless a row with its url already exists.
// First write wins: existing rows are never touched. The url uniqueness is
// enforced by the database constraint, so concurrent writers for the same
// url cannot produce two rows. Returns whether a row was created.
func (s *ArticleStore) Upsert(ctx context.Context, article *domain.Article) (bool, error) {
	query := `
		INSERT INTO articles (title, description, url, published_at, country, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO NOTHING
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		article.Title,
		article.Description,
		article.URL,
		article.PublishedAt,
		article.Country,
		article.Source,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	article.ID = id
	return true, nil
}

// HasFresh reports whether any article for the country was published within
// the window ending now. Used as the orchestrator's cache guard.
func (s *ArticleStore) HasFresh(ctx context.Context, country string, window time.Duration) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM articles WHERE country = $1 AND published_at >= $2
	)`

	var fresh bool
	err := s.db.GetContext(ctx, &fresh, query, country, time.Now().Add(-window))
	return fresh, err
}

// ListAll returns every stored article, newest first.
func (s *ArticleStore) ListAll(ctx context.Context) ([]domain.Article, error) {
	query := `
		SELECT id, title, description, url, published_at, country, source, created_at
		FROM articles
		ORDER BY published_at DESC`

	var articles []domain.Article
	err := s.db.SelectContext(ctx, &articles, query)
	return articles, err
}
