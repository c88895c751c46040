package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/subscriber"
	"github.com/mbellec/diocese-newsletter/internal/workflow"
)

// UnsubscribeHandler handles GET /{locale}/newsletter/unsubscribe?email=...
// Unknown addresses render the same success page as known ones, so the
// endpoint cannot be used to probe the subscriber list.
func UnsubscribeHandler(wf *workflow.Workflow, siteName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		locale := chi.URLParam(r, "locale")

		email := r.URL.Query().Get("email")
		if email == "" {
			renderPage(r, w, http.StatusBadRequest, locale, pageInvalid, siteName)
			return
		}

		err := wf.Unsubscribe(r.Context(), email)
		if err != nil && !errors.Is(err, subscriber.ErrNotFound) {
			log.Error().Err(err).Msg("unsubscribe failed")
			renderPage(r, w, http.StatusInternalServerError, locale, pageError, siteName)
			return
		}

		renderPage(r, w, http.StatusOK, locale, pageUnsubscribed, siteName)
	}
}
