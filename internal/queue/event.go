// Package queue carries publish events from the admin surface to the
// dispatch worker over Redis Streams. One event is enqueued per published
// content item; the worker turns each event into one dispatch batch.
package queue

import (
	"time"

	"github.com/google/uuid"
)

const (
	// StreamKey is the Redis stream holding pending publish events.
	StreamKey = "newsletter:publish"
	// DLQStreamKey holds events whose batch failed hard after all retries.
	DLQStreamKey = "newsletter:publish:dlq"
	// GroupName is the consumer group the dispatch workers read through.
	GroupName = "dispatchers"
)

// PublishEvent announces one published content item to the dispatch worker.
type PublishEvent struct {
	ID         string    `json:"id"`
	ContentID  string    `json:"content_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Excerpt    string    `json:"excerpt,omitempty"`
	Languages  []string  `json:"languages,omitempty"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewPublishEvent creates a PublishEvent with a generated ID and current
// timestamp. An empty languages slice targets every locale.
func NewPublishEvent(contentID, title, url, excerpt string, languages []string) *PublishEvent {
	return &PublishEvent{
		ID:        uuid.New().String(),
		ContentID: contentID,
		Title:     title,
		URL:       url,
		Excerpt:   excerpt,
		Languages: languages,
		CreatedAt: time.Now().UTC(),
	}
}
