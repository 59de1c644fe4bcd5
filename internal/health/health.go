package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Status represents the health status of the service
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Handler returns an HTTP handler for health checks
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Status{
			Status:    "healthy",
			Timestamp: time.Now(),
			Version:   "1.0.0",
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// ReadyHandler returns an HTTP handler for readiness checks. The
// service is not ready until restore has completed and its
// dependencies answer; ready reports whether that is the case.
func ReadyHandler(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := Status{
			Timestamp: time.Now(),
			Version:   "1.0.0",
		}

		if ready != nil && !ready() {
			status.Status = "not ready"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(status)
			return
		}

		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}
