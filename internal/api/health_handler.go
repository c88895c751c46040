package api

import (
	"net/http"

	"github.com/mbellec/diocese-newsletter/internal/logger"
	"github.com/mbellec/diocese-newsletter/internal/storage"
)

// HealthzHandler reports process liveness. It always answers 200; a hung
// process simply stops answering.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler reports readiness to take traffic: the subscriber store must
// answer a ping. An unready response carries Retry-After so probes back off.
func ReadyzHandler(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			log := logger.FromContext(r.Context())
			log.Warn().Err(err).Msg("readiness check failed")
			w.Header().Set("Retry-After", "30")
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
