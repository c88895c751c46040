package queue

import (
	"testing"
	"time"
)

func TestRetryStrategy_ShouldRetry(t *testing.T) {
	r := NewRetryStrategy(5)

	tests := []struct {
		retryCount int
		want       bool
	}{
		{0, true},
		{1, true},
		{4, true},
		{5, false},
		{6, false},
	}

	for _, tt := range tests {
		if got := r.ShouldRetry(tt.retryCount); got != tt.want {
			t.Errorf("ShouldRetry(%d) = %v, expected %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestRetryStrategy_NextBackoff_Jitter(t *testing.T) {
	r := NewRetryStrategy(5)

	// Jitter keeps the backoff within [0.5, 1.0] of the scheduled base.
	for attempt, base := range r.Schedule {
		for range 20 {
			got := r.NextBackoff(attempt)
			if got < base/2 || got > base {
				t.Fatalf("NextBackoff(%d) = %v, expected within [%v, %v]", attempt, got, base/2, base)
			}
		}
	}
}

func TestRetryStrategy_NextBackoff_CapsAtLastEntry(t *testing.T) {
	r := NewRetryStrategy(10)

	last := r.Schedule[len(r.Schedule)-1]
	got := r.NextBackoff(99)
	if got < last/2 || got > last {
		t.Errorf("NextBackoff(99) = %v, expected within [%v, %v]", got, last/2, last)
	}
}

func TestNewPublishEvent(t *testing.T) {
	evt := NewPublishEvent("news-1", "Title", "https://x/y", "excerpt", []string{"fr"})

	if evt.ID == "" {
		t.Error("expected generated event ID")
	}
	if evt.ContentID != "news-1" || evt.Title != "Title" || evt.URL != "https://x/y" {
		t.Errorf("unexpected event fields: %+v", evt)
	}
	if evt.RetryCount != 0 {
		t.Errorf("RetryCount = %d, expected 0", evt.RetryCount)
	}
	if evt.CreatedAt.IsZero() || time.Since(evt.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v, expected recent timestamp", evt.CreatedAt)
	}

	other := NewPublishEvent("news-1", "Title", "https://x/y", "", nil)
	if other.ID == evt.ID {
		t.Error("expected unique event IDs")
	}
}
