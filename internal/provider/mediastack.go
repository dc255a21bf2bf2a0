package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"headline_aggregator/internal/config"
	"headline_aggregator/internal/domain"
	"headline_aggregator/internal/httpclient"
)

// mediastack publish times come back like "2026-08-29T14:05:00+00:00".
const mediaStackTimeLayout = "2006-01-02T15:04:05-07:00"

// MediaStackClient fetches headlines from api.mediastack.com. Responses nest
// articles under "data" with a "published_at" field.
type MediaStackClient struct {
	http      httpclient.Client
	name      string
	baseURL   string
	apiKey    string
	countries []string
	pageLimit int
	logger    *slog.Logger
	now       func() time.Time
}

func NewMediaStackClient(cfg config.ProviderConfig, client httpclient.Client, logger *slog.Logger) *MediaStackClient {
	if client == nil {
		client = httpclient.NewRestyClient(cfg.Timeout)
	}
	return &MediaStackClient{
		http:      client,
		name:      cfg.Name,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		countries: append([]string(nil), cfg.Countries...),
		pageLimit: cfg.PageLimit,
		logger:    logger.With("provider", cfg.Name),
		now:       time.Now,
	}
}

func (c *MediaStackClient) Name() string { return c.name }

func (c *MediaStackClient) Countries() []string {
	return append([]string(nil), c.countries...)
}

func (c *MediaStackClient) FetchHeadlines(ctx context.Context, country string) ([]domain.Article, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/v1/news", map[string]string{
		"access_key": c.apiKey,
		"countries":  country,
		"limit":      strconv.Itoa(c.pageLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("mediastack request for %s: %w", country, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Provider:   c.name,
			RetryAfter: parseRetryAfter(resp.Header("Retry-After"), c.now()),
		}
	case code >= 500:
		return nil, fmt.Errorf("mediastack server error for %s: status %d", country, code)
	case code != http.StatusOK:
		return nil, &PermanentError{
			Provider: c.name,
			Reason:   fmt.Sprintf("unexpected status %d for %s", code, country),
		}
	}

	var raw mediaStackResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, &PermanentError{
			Provider: c.name,
			Reason:   fmt.Sprintf("decode response for %s: %v", country, err),
		}
	}

	articles := make([]domain.Article, 0, len(raw.Data))
	for _, item := range raw.Data {
		if item.URL == "" {
			continue
		}
		publishedAt, err := parseMediaStackTime(item.PublishedAt)
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

func parseMediaStackTime(value string) (time.Time, error) {
	if t, err := time.Parse(mediaStackTimeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

type mediaStackResponse struct {
	Data []mediaStackArticle `json:"data"`
}

type mediaStackArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
}
