package domain

import "time"

// Article is a normalized headline from one of the news providers.
// Rows are write-once: the first ingestion of a url wins and later
// ingestions of the same url are no-ops.
type Article struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	URL         string    `db:"url"`
	PublishedAt time.Time `db:"published_at"`
	Country     string    `db:"country"` // ISO 3166-1 alpha-2, lowercase
	Source      string    `db:"source"`  // provider name, e.g. "NewsAPI"
	CreatedAt   time.Time `db:"created_at"`
}
