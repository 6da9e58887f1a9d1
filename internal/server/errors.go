package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redbco/redb-esadapter/pkg/datastore/adapter"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusCode maps an adapter error to an HTTP status.
func StatusCode(err error) int {
	var engErr *adapter.EngineError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &engErr):
		if engErr.Status >= 400 {
			return engErr.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, adapter.ErrDatastoreNotFound), errors.Is(err, adapter.ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, adapter.ErrIdentityDuplicate):
		return http.StatusConflict
	case errors.Is(err, adapter.ErrIdentityMissing),
		errors.Is(err, adapter.ErrInvalidConfiguration),
		errors.Is(err, adapter.ErrAdapterNotFound):
		return http.StatusBadRequest
	case errors.Is(err, adapter.ErrOperationNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, adapter.ErrConnectionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, adapter.ErrConnectionFailed):
		return http.StatusBadGateway
	}
	if adapter.ErrorCode(err) == adapter.CodeCanceled {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func (s *Server) writeAdapterError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= 500 && s.logger != nil {
		s.logger.WithFields(map[string]string{"request_id": RequestID(r.Context())}).Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err.Error(), adapter.ErrorCode(err))
}
