package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"headline_aggregator/internal/query"
)

// NewsQuery is the read-side service behind the /news endpoint.
type NewsQuery interface {
	GroupedByCountry(ctx context.Context) (query.Grouped, error)
}

type NewsHandler struct {
	query NewsQuery
}

func NewNewsHandler(q NewsQuery) *NewsHandler {
	return &NewsHandler{query: q}
}

// GetNews serves every persisted article grouped by country and source. An
// empty dataset is a valid 200; orchestration failures never surface here.
func (h *NewsHandler) GetNews(c *gin.Context) {
	grouped, err := h.query.GroupedByCountry(c.Request.Context())
	if err != nil {
		slog.Error("error reading articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, toNewsResponse(grouped))
}

func (h *NewsHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// APIKeyAuth validates the X-API-Key header against the configured
// allow-list.
func APIKeyAuth(keys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}
		if _, ok := allowed[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}
