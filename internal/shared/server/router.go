package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Version is reported by /healthz. Overridden at build time with -ldflags.
var Version = "v0.1.0"

// HealthResponse describes the payload returned by standard /healthz endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	// Details carries service specific runtime settings, e.g. the datastore in use.
	Details map[string]string `json:"details,omitempty"`
}

// NewRouter returns a chi router pre-configured with default middleware and a health endpoint.
// details is reported verbatim by /healthz and may be nil.
func NewRouter(service string, details map[string]string, register func(r chi.Router)) *chi.Mux {
	health := HealthResponse{Status: "ok", Service: service, Version: Version, Details: make(map[string]string, len(details))}
	for k, v := range details {
		health.Details[k] = v
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, health)
	})

	if register != nil {
		register(r)
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
