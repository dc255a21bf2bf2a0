package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"headline_aggregator/internal/config"
	"headline_aggregator/internal/domain"
	"headline_aggregator/internal/httpclient"
)

// NewsAPIClient fetches top headlines from newsapi.org. Responses nest
// articles under "articles" with an RFC3339 "publishedAt" field.
type NewsAPIClient struct {
	http      httpclient.Client
	name      string
	baseURL   string
	apiKey    string
	countries []string
	logger    *slog.Logger
	now       func() time.Time
}

func NewNewsAPIClient(cfg config.ProviderConfig, client httpclient.Client, logger *slog.Logger) *NewsAPIClient {
	if client == nil {
		client = httpclient.NewRestyClient(cfg.Timeout)
	}
	return &NewsAPIClient{
		http:      client,
		name:      cfg.Name,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		countries: append([]string(nil), cfg.Countries...),
		logger:    logger.With("provider", cfg.Name),
		now:       time.Now,
	}
}

func (c *NewsAPIClient) Name() string { return c.name }

// Countries returns the provider's supported country list in configured order.
func (c *NewsAPIClient) Countries() []string {
	return append([]string(nil), c.countries...)
}

// FetchHeadlines performs a single request for one country. Retry is the
// caller's responsibility.
func (c *NewsAPIClient) FetchHeadlines(ctx context.Context, country string) ([]domain.Article, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/top-headlines", map[string]string{
		"country": country,
		"apiKey":  c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("newsapi request for %s: %w", country, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Provider:   c.name,
			RetryAfter: parseRetryAfter(resp.Header("Retry-After"), c.now()),
		}
	case code >= 500:
		return nil, fmt.Errorf("newsapi server error for %s: status %d", country, code)
	case code != http.StatusOK:
		return nil, &PermanentError{
			Provider: c.name,
			Reason:   fmt.Sprintf("unexpected status %d for %s", code, country),
		}
	}

	var raw newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, &PermanentError{
			Provider: c.name,
			Reason:   fmt.Sprintf("decode response for %s: %v", country, err),
		}
	}

	articles := make([]domain.Article, 0, len(raw.Articles))
	for _, item := range raw.Articles {
		if item.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			c.logger.Warn("skipping article with bad publish time",
				"url", item.URL,
				"published_at", item.PublishedAt,
			)
			continue
		}

		article := domain.Article{
			Title:       item.Title,
			URL:         item.URL,
			PublishedAt: publishedAt,
			Country:     country,
			Source:      c.name,
		}
		if item.Description != "" {
			desc := item.Description
			article.Description = &desc
		}
		articles = append(articles, article)
	}

	return articles, nil
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}
