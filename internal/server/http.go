package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/page"
	"github.com/alfredjeanlab/records/internal/payload"
	"github.com/alfredjeanlab/records/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
func (s *RecordsServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/records", s.handleCreateRecord)
	mux.HandleFunc("GET /v1/records", s.handleListRecords)
	mux.HandleFunc("GET /v1/records/{id}", s.handleGetRecord)
	mux.HandleFunc("PUT /v1/records/{id}/payload", s.handleUpdatePayload)
	mux.HandleFunc("DELETE /v1/records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return RequestLogger(s.metrics, AuthMiddleware(authToken, mux))
}

// listResponse is the body of GET /v1/records.
type listResponse struct {
	Records    []model.Record[model.Profile] `json:"records"`
	Page       int                           `json:"page"`
	PageSize   int                           `json:"page_size"`
	TotalCount int64                         `json:"total_count"`
	TotalPages int64                         `json:"total_pages"`
}

// handleCreateRecord handles POST /v1/records.
func (s *RecordsServer) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var in createRecordInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.createRecord(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleListRecords handles GET /v1/records.
func (s *RecordsServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter, params, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.listRecords(r.Context(), filter, params)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Records:    res.Items,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
	})
}

// handleGetRecord handles GET /v1/records/{id}.
func (s *RecordsServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.getRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdatePayload handles PUT /v1/records/{id}/payload.
func (s *RecordsServer) handleUpdatePayload(w http.ResponseWriter, r *http.Request) {
	var in updatePayloadInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.updatePayload(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord handles DELETE /v1/records/{id}.
func (s *RecordsServer) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deleteRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleHealth handles GET /v1/health.
func (s *RecordsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseListQuery reads the filter and paging parameters of GET /v1/records.
// Page size validation is left to the store.
func parseListQuery(q url.Values) (model.RecordFilter, page.Params, error) {
	filter := model.RecordFilter{
		Username: q.Get("username"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}
	var params page.Params

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, params, inputError("page must be an integer")
		}
		params.Page = &n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, params, inputError("page_size must be an integer")
		}
		params.PageSize = &n
	}
	for _, name := range []string{"created_after", "created_before"} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, params, inputError(name + " must be an RFC 3339 timestamp")
		}
		if name == "created_after" {
			filter.CreatedAfter = &t
		} else {
			filter.CreatedBefore = &t
		}
	}
	for key, vals := range q {
		k, ok := strings.CutPrefix(key, "data.")
		if !ok || len(vals) == 0 {
			continue
		}
		if k == "" {
			return filter, params, inputError("data filter key is empty")
		}
		if filter.Data == nil {
			filter.Data = make(map[string]string)
		}
		filter.Data[k] = vals[0]
	}
	return filter, params, nil
}

// decodeBody reads a single JSON object from the request body into v.
// Unknown fields are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return inputError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// writeStoreError maps an operation error to its HTTP status. Unexpected
// errors are logged and reported without detail.
func (s *RecordsServer) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, errorMessage(err))
}

// httpStatus returns the status code an operation error maps to.
func httpStatus(err error) int {
	var (
		ie inputError
		ve *model.ValidationError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &ve), errors.Is(err, page.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, payload.ErrUnencodable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorMessage(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound.Error()
	}
	return err.Error()
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
