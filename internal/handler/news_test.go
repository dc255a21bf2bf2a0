package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headline_aggregator/internal/domain"
	"headline_aggregator/internal/query"
)

type fakeNewsQuery struct {
	grouped query.Grouped
	err     error
}

func (f *fakeNewsQuery) GroupedByCountry(context.Context) (query.Grouped, error) {
	return f.grouped, f.err
}

func newTestRouter(q NewsQuery, apiKeys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := NewNewsHandler(q)
	r.GET("/health", h.GetHealth)

	authed := r.Group("/", APIKeyAuth(apiKeys))
	authed.GET("/news", h.GetNews)

	return r
}

func doRequest(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/news", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetNews_ReturnsGroupedArticles(t *testing.T) {
	publishedAt := time.Date(2026, 8, 29, 14, 5, 0, 0, time.UTC)
	q := &fakeNewsQuery{grouped: query.Grouped{
		"us": {
			"NewsAPI": []domain.Article{
				{Title: "Headline", URL: "https://example.com/1", PublishedAt: publishedAt, Country: "us", Source: "NewsAPI"},
			},
		},
	}}
	r := newTestRouter(q, []string{"secret"})

	w := doRequest(r, "secret")
	require.Equal(t, http.StatusOK, w.Code)

	var resp NewsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Articles["us"]["NewsAPI"], 1)

	got := resp.Articles["us"]["NewsAPI"][0]
	assert.Equal(t, "Headline", got.Title)
	assert.Equal(t, "https://example.com/1", got.URL)
	assert.True(t, got.PublishedAt.Equal(publishedAt))
	assert.Nil(t, got.Description)
}

func TestGetNews_EmptyStoreIsOK(t *testing.T) {
	r := newTestRouter(&fakeNewsQuery{grouped: query.Grouped{}}, []string{"secret"})

	w := doRequest(r, "secret")
	require.Equal(t, http.StatusOK, w.Code)

	var resp NewsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Articles)
}

func TestGetNews_StoreFailureIs500(t *testing.T) {
	r := newTestRouter(&fakeNewsQuery{err: errors.New("connection refused")}, []string{"secret"})

	w := doRequest(r, "secret")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Database error"}`, w.Body.String())
}

func TestGetNews_MissingAPIKey(t *testing.T) {
	r := newTestRouter(&fakeNewsQuery{}, []string{"secret"})

	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetNews_InvalidAPIKey(t *testing.T) {
	r := newTestRouter(&fakeNewsQuery{}, []string{"secret"})

	w := doRequest(r, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetHealth_NoAuthRequired(t *testing.T) {
	r := newTestRouter(&fakeNewsQuery{}, []string{"secret"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
