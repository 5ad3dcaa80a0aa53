// Package dispatch exposes the wave dispatcher and intelligence refresh over
// HTTP for broker-facing backends and schedulers.
package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	coredispatch "github.com/haulcommand/dispatchd/core/dispatch"
	"github.com/haulcommand/dispatchd/core/intel"
	"github.com/haulcommand/dispatchd/core/store"
)

// NewDispatchHandler returns an HTTP handler serving POST /api/dispatch.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewDispatchHandler(d *coredispatch.Dispatcher, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req coredispatch.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		res, err := d.Dispatch(r.Context(), req)
		switch {
		case errors.Is(err, coredispatch.ErrMissingLoadID):
			writeError(w, http.StatusBadRequest, "load_id is required")
			return
		case errors.Is(err, coredispatch.ErrLoadNotFound), errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "load not found or not open")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

type refreshRequest struct {
	LoadID    string `json:"load_id"`
	BatchSize int    `json:"batch_size"`
}

// NewIntelRefreshHandler returns an HTTP handler serving POST
// /api/intel/refresh. With a load_id it refreshes one load; without it the
// oldest open loads up to batch_size.
func NewIntelRefreshHandler(e *intel.Estimator, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req refreshRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		res, err := e.Refresh(r.Context(), req.LoadID, req.BatchSize)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "load not found or not open")
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func authorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+token {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
