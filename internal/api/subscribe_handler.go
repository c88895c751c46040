package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/workflow"
)

// subscribeRequest is the body for POST /api/v1/newsletter/subscribe.
// Both JSON and form encodings are accepted; the parish websites post forms,
// the CMS posts JSON.
type subscribeRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Language  string `json:"language"`
}

// SubscribeHandler handles POST /api/v1/newsletter/subscribe.
// It always answers 202 on success regardless of the prior state of the
// address, so responses do not leak whether an email is already subscribed.
func SubscribeHandler(wf *workflow.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		req, err := decodeSubscribeRequest(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var details []string
		if req.Email == "" {
			details = append(details, "email is required")
		}
		if len(details) > 0 {
			respondValidationErrors(w, details)
			return
		}

		err = wf.Subscribe(r.Context(), req.Email, req.FirstName, req.Language)
		if err != nil {
			if errors.Is(err, workflow.ErrInvalidEmail) {
				respondValidationErrors(w, []string{"email is not a valid address"})
				return
			}
			log.Error().Err(err).Msg("subscribe failed")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "pending_confirmation",
		})
	}
}

// decodeSubscribeRequest parses the request body as JSON or an HTML form
// depending on Content-Type.
func decodeSubscribeRequest(r *http.Request) (subscribeRequest, error) {
	var req subscribeRequest

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Email = r.PostFormValue("email")
		req.FirstName = r.PostFormValue("first_name")
		req.Language = r.PostFormValue("language")
		return req, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	return req, nil
}
