package handler

import (
	"time"

	"headline_aggregator/internal/domain"
	"headline_aggregator/internal/query"
)

type articleDTO struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Country     string    `json:"country"`
	Source      string    `json:"source"`
}

// NewsResponse is the /news envelope: articles grouped by country, then by
// source.
type NewsResponse struct {
	Articles map[string]map[string][]articleDTO `json:"articles"`
}

func toNewsResponse(grouped query.Grouped) NewsResponse {
	out := make(map[string]map[string][]articleDTO, len(grouped))
	for country, bySource := range grouped {
		countryOut := make(map[string][]articleDTO, len(bySource))
		for source, articles := range bySource {
			dtos := make([]articleDTO, 0, len(articles))
			for _, a := range articles {
				dtos = append(dtos, toArticleDTO(a))
			}
			countryOut[source] = dtos
		}
		out[country] = countryOut
	}
	return NewsResponse{Articles: out}
}

func toArticleDTO(a domain.Article) articleDTO {
	return articleDTO{
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		PublishedAt: a.PublishedAt,
		Country:     a.Country,
		Source:      a.Source,
	}
}
