//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"headline_aggregator/internal/domain"
	"headline_aggregator/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_articles.up.sql"),
			filepath.Join(migrationsPath, "002_create_quota_state.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM articles")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM quota_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) testArticle(url string) *domain.Article {
	return &domain.Article{
		Title:       "Test Article",
		Description: utils.Ptr("Test Description"),
		URL:         url,
		PublishedAt: time.Now().Truncate(time.Microsecond),
		Country:     "us",
		Source:      "NewsAPI",
	}
}

func (s *PostgresIntegrationSuite) TestArticleStore_Upsert_Insert() {
	store := NewArticleStore(s.db)

	article := s.testArticle("https://example.com/article")
	created, err := store.Upsert(s.ctx, article)
	s.NoError(err)
	s.True(created)
	s.Greater(article.ID, int64(0))

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles WHERE url = $1", article.URL)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_Upsert_FirstWriteWins() {
	store := NewArticleStore(s.db)

	first := s.testArticle("https://example.com/article")
	first.Title = "Original Title"
	created, err := store.Upsert(s.ctx, first)
	s.NoError(err)
	s.True(created)

	second := s.testArticle("https://example.com/article")
	second.Title = "Replacement Title"
	second.Country = "gb"
	created, err = store.Upsert(s.ctx, second)
	s.NoError(err)
	s.False(created)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles WHERE url = $1", first.URL)
	s.NoError(err)
	s.Equal(1, count)

	var title string
	err = s.db.GetContext(s.ctx, &title, "SELECT title FROM articles WHERE id = $1", first.ID)
	s.NoError(err)
	s.Equal("Original Title", title)
}

func (s *PostgresIntegrationSuite) TestArticleStore_HasFresh() {
	store := NewArticleStore(s.db)

	fresh, err := store.HasFresh(s.ctx, "us", 24*time.Hour)
	s.NoError(err)
	s.False(fresh)

	recent := s.testArticle("https://example.com/recent")
	recent.PublishedAt = time.Now().Add(-time.Hour)
	_, err = store.Upsert(s.ctx, recent)
	s.NoError(err)

	stale := s.testArticle("https://example.com/stale")
	stale.Country = "fr"
	stale.PublishedAt = time.Now().Add(-48 * time.Hour)
	_, err = store.Upsert(s.ctx, stale)
	s.NoError(err)

	fresh, err = store.HasFresh(s.ctx, "us", 24*time.Hour)
	s.NoError(err)
	s.True(fresh)

	// fr only has an article outside the window
	fresh, err = store.HasFresh(s.ctx, "fr", 24*time.Hour)
	s.NoError(err)
	s.False(fresh)
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListAll_NewestFirst() {
	store := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	for i, url := range []string{
		"https://example.com/oldest",
		"https://example.com/middle",
		"https://example.com/newest",
	} {
		article := s.testArticle(url)
		article.PublishedAt = now.Add(time.Duration(i) * time.Hour)
		_, err := store.Upsert(s.ctx, article)
		s.NoError(err)
	}

	articles, err := store.ListAll(s.ctx)
	s.NoError(err)
	s.Require().Len(articles, 3)
	s.Equal("https://example.com/newest", articles[0].URL)
	s.Equal("https://example.com/middle", articles[1].URL)
	s.Equal("https://example.com/oldest", articles[2].URL)
}

func (s *PostgresIntegrationSuite) TestQuotaStateStore_GetOrCreate() {
	store := NewQuotaStateStore(s.db)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	state, err := store.GetOrCreate(s.ctx, "NewsAPI", day)
	s.NoError(err)
	s.Equal("NewsAPI", state.Provider)
	s.Equal(0, state.RequestCount)
	s.Nil(state.LastRateLimitHit)

	again, err := store.GetOrCreate(s.ctx, "NewsAPI", day)
	s.NoError(err)
	s.Equal(state.ID, again.ID)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM quota_state")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestQuotaStateStore_Increment() {
	store := NewQuotaStateStore(s.db)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	count, err := store.Increment(s.ctx, "NewsAPI", day)
	s.NoError(err)
	s.Equal(1, count)

	count, err = store.Increment(s.ctx, "NewsAPI", day)
	s.NoError(err)
	s.Equal(2, count)

	// a different day is a different row
	count, err = store.Increment(s.ctx, "NewsAPI", day.AddDate(0, 0, 1))
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestQuotaStateStore_MarkRateLimited() {
	store := NewQuotaStateStore(s.db)
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	at := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)

	_, err := store.Increment(s.ctx, "NewsAPI", day)
	s.NoError(err)

	err = store.MarkRateLimited(s.ctx, "NewsAPI", day, at)
	s.NoError(err)

	state, err := store.GetOrCreate(s.ctx, "NewsAPI", day)
	s.NoError(err)
	s.Equal(1, state.RequestCount, "marking rate limited must not touch the counter")
	s.Require().NotNil(state.LastRateLimitHit)
	s.WithinDuration(at, *state.LastRateLimitHit, time.Second)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		_, err := exec.ExecContext(ctx, `
			INSERT INTO quota_state (provider, day) VALUES ($1, $2)
		`, "NewsAPI", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}

		return context.Canceled
	})
	s.Error(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM quota_state")
	s.NoError(err)
	s.Equal(0, count)
}
