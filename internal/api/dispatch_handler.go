package api

import (
	"encoding/json"
	"net/http"

	"github.com/mbellec/diocese-newsletter/internal/compose"
	"github.com/mbellec/diocese-newsletter/internal/dispatch"
	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/queue"
)

// dispatchRequest is the JSON body for the dispatch endpoints. The CMS posts
// one of these when a content item is published.
type dispatchRequest struct {
	ContentID string   `json:"content_id"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Excerpt   string   `json:"excerpt"`
	Languages []string `json:"languages"`
}

func (req *dispatchRequest) validate() []string {
	var details []string
	if req.ContentID == "" {
		details = append(details, "content_id is required")
	}
	if req.Title == "" {
		details = append(details, "title is required")
	}
	if req.URL == "" {
		details = append(details, "url is required")
	}
	return details
}

// DispatchHandler handles POST /api/v1/dispatch.
// It enqueues a publish event for the dispatch worker and returns 202 with
// the event ID. Delivery happens asynchronously.
func DispatchHandler(producer *queue.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if details := req.validate(); len(details) > 0 {
			respondValidationErrors(w, details)
			return
		}

		evt := queue.NewPublishEvent(req.ContentID, req.Title, req.URL, req.Excerpt, req.Languages)
		entryID, err := producer.Enqueue(r.Context(), evt)
		if err != nil {
			log.Error().Err(err).Str("content_id", req.ContentID).Msg("failed to enqueue publish event")
			respondError(w, http.StatusInternalServerError, "failed to enqueue")
			return
		}

		log.Info().
			Str("event_id", evt.ID).
			Str("content_id", req.ContentID).
			Str("entry_id", entryID).
			Msg("publish event enqueued")

		respondJSON(w, http.StatusAccepted, map[string]string{
			"event_id": evt.ID,
			"status":   "queued",
		})
	}
}

// DispatchSyncHandler handles POST /api/v1/dispatch/sync.
// It runs the batch inline and returns the full report. Intended for small
// lists and operational testing; the async endpoint is the normal path.
func DispatchSyncHandler(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if details := req.validate(); len(details) > 0 {
			respondValidationErrors(w, details)
			return
		}

		content := compose.Content{
			ID:      req.ContentID,
			Title:   req.Title,
			URL:     req.URL,
			Excerpt: req.Excerpt,
		}

		report, err := engine.SendBatch(r.Context(), content, req.Languages)
		if err != nil {
			log.Error().Err(err).Str("content_id", req.ContentID).Msg("synchronous dispatch failed")
			respondError(w, http.StatusInternalServerError, "dispatch failed")
			return
		}

		respondJSON(w, http.StatusOK, report)
	}
}

// dlqReprocessRequest is the JSON body for POST /api/v1/dlq/reprocess.
type dlqReprocessRequest struct {
	EntryIDs []string `json:"entry_ids"`
}

// dlqReprocessResponse is the JSON response for a DLQ reprocess operation.
type dlqReprocessResponse struct {
	Reprocessed int `json:"reprocessed"`
	Total       int `json:"total"`
}

// DLQReprocessHandler handles POST /api/v1/dlq/reprocess.
// It re-enqueues dead-lettered publish events back to the primary stream.
func DLQReprocessHandler(dlq *queue.DLQ) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dlqReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.EntryIDs) == 0 {
			respondError(w, http.StatusBadRequest, "entry_ids is required and must not be empty")
			return
		}

		reprocessed, err := dlq.Reprocess(r.Context(), req.EntryIDs)
		if err != nil {
			log.Error().Err(err).
				Int("requested", len(req.EntryIDs)).
				Int("reprocessed", reprocessed).
				Msg("dlq reprocess failed")
			respondError(w, http.StatusInternalServerError, "reprocess failed")
			return
		}

		respondJSON(w, http.StatusOK, dlqReprocessResponse{
			Reprocessed: reprocessed,
			Total:       len(req.EntryIDs),
		})
	}
}
