package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/logger"
)

// writeJSON writes a success response tagged with the request id
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), status, data)
}

// writeError maps any error onto the AppError response shape
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok && appErr.HTTPStatus >= 500 {
		logger.Error(r.Context(), "request failed", err, map[string]interface{}{
			"path": r.URL.Path,
		})
	}
	apperrors.WriteError(w, apperrors.GetRequestID(r.Context()), err)
}

// decodeBody decodes a JSON request body into dst
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	return nil
}

// pathInt64 reads a numeric path segment
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError(name + " must be a positive integer")
	}
	return id, nil
}

// queryInt reads an integer query parameter with a default and ceiling
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
