package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"myex/internal/log"
	"myex/internal/refresh"
)

const maxBodyBytes = 64 << 10

var errInvalidDir = errors.New("dir must be 1 or -1")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a single JSON object of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// parseDir reads the dir query parameter, which must be +1 or -1.
func parseDir(r *http.Request) (int, error) {
	dir, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("dir")), "+"))
	if err != nil || (dir != 1 && dir != -1) {
		return 0, errInvalidDir
	}
	return dir, nil
}

// writeDispatchError maps dispatcher failures to 503.
func writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger command failed", log.FieldError, err.Error())
	switch {
	case errors.Is(err, refresh.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
