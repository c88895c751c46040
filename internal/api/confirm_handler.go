package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/workflow"
)

// ConfirmHandler handles GET /{locale}/newsletter/confirm?token=...
// It resolves the subscriber by token, runs the confirmation, and renders
// a result page. Expired and invalid tokens get distinct pages so the
// visitor knows whether re-subscribing will help.
func ConfirmHandler(wf *workflow.Workflow, siteName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		locale := chi.URLParam(r, "locale")

		token := r.URL.Query().Get("token")
		if token == "" {
			renderPage(r, w, http.StatusBadRequest, locale, pageInvalid, siteName)
			return
		}

		sub, err := wf.ConfirmByToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrTokenExpired):
				renderPage(r, w, http.StatusGone, locale, pageExpired, siteName)
			case errors.Is(err, workflow.ErrTokenInvalid), errors.Is(err, workflow.ErrNotPending):
				renderPage(r, w, http.StatusBadRequest, locale, pageInvalid, siteName)
			default:
				log.Error().Err(err).Msg("confirmation failed")
				renderPage(r, w, http.StatusInternalServerError, locale, pageError, siteName)
			}
			return
		}

		log.Info().Str("subscriber_id", sub.ID.String()).Msg("subscription confirmed")
		renderPage(r, w, http.StatusOK, locale, pageConfirmed, siteName)
	}
}
