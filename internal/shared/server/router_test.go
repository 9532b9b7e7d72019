package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouterServesHealth(t *testing.T) {
	details := map[string]string{"datastore": "memory", "deletionPolicy": "soft-delete"}
	router := NewRouter("account-provisioner", details, nil)
	details["datastore"] = "firestore"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "account-provisioner", body.Service)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, map[string]string{"datastore": "memory", "deletionPolicy": "soft-delete"}, body.Details)
}

func TestNewRouterRegistersRoutes(t *testing.T) {
	router := NewRouter("svc", nil, func(r chi.Router) {
		r.Post("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestNewRouterOmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter("svc", nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "details")
}
