package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"CuboTrack/internal/metrics"

	"github.com/gorilla/mux"
)

// errorEnvelope is the body of every failed request.
type errorEnvelope struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Items     []any  `json:"items,omitempty"`
	NextAfter *int   `json:"next_after,omitempty"`
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	live *Live
}

// NewRouter registers the polling API, the metrics endpoint and, when
// reportsDir is set, the rendered report pages.
func NewRouter(live *Live, reportsDir string) *mux.Router {
	h := &APIHandler{live: live}
	r := mux.NewRouter()

	r.HandleFunc("/api/tail", h.tailHandler).Methods("GET")
	r.HandleFunc("/api/state", h.stateHandler).Methods("GET")
	r.HandleFunc("/api/pending", h.pendingHandler).Methods("POST")
	r.HandleFunc("/api/regenerate", h.regenerateHandler).Methods("POST")
	r.HandleFunc("/api/finalize", h.finalizeHandler).Methods("POST")
	r.HandleFunc("/api/reports", h.reportsHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	if reportsDir != "" {
		files := http.StripPrefix("/reports/", http.FileServer(http.Dir(reportsDir)))
		r.PathPrefix("/reports/").Handler(noCache(files))
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "not found"})
	})
	return r
}

// tailHandler serves GET /api/tail?after=N&max=M.
func (h *APIHandler) tailHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &TailRequest{
		After: queryInt(q.Get("after"), 0),
		Max:   queryInt(q.Get("max"), 0),
	}

	resp, err := h.live.Tail(r.Context(), req)
	if err != nil {
		log.Printf("[api] Tail after %d failed: %v", req.After, err)
		after := req.After
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Error:     err.Error(),
			Items:     []any{},
			NextAfter: &after,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) stateHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.live.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) pendingHandler(w http.ResponseWriter, r *http.Request) {
	var req PendingRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: fmt.Sprintf("failed to read request body: %v", err)})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: fmt.Sprintf("failed to decode request: %v", err)})
			return
		}
	}

	resp, err := h.live.SetPending(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) regenerateHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.live.Regenerate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.live.Finalize(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (h *APIHandler) reportsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.live.Reports())
}

func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[api] Request failed: %v", err)
	}
	var regenErr *RegenerationError
	if errors.As(err, &regenErr) {
		writeJSON(w, status, RegenerateResponse{Error: err.Error(), RunID: regenErr.RunID})
		return
	}
	writeJSON(w, status, errorEnvelope{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("[api] Failed to write response: %v", err)
	}
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}
