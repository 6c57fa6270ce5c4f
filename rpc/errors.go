package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	coreerrors "govchain/core/errors"
)

var (
	errBadRequest     = errors.New("bad request")
	errCallerMismatch = fmt.Errorf("caller does not match token subject: %w", coreerrors.ErrAuthorization)
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps an operation error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, coreerrors.ErrInvalidSignature),
		errors.Is(err, coreerrors.ErrSignatureExpired),
		errors.Is(err, coreerrors.ErrStaleNonce):
		return http.StatusUnauthorized
	case errors.Is(err, coreerrors.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, coreerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coreerrors.ErrStale):
		return http.StatusGone
	case errors.Is(err, coreerrors.ErrTiming):
		return http.StatusTooEarly
	case errors.Is(err, coreerrors.ErrAlreadyVoted),
		errors.Is(err, coreerrors.ErrDuplicateAction),
		errors.Is(err, coreerrors.ErrNotQueued),
		errors.Is(err, coreerrors.ErrExecutionReverted),
		errors.Is(err, coreerrors.ErrState):
		return http.StatusConflict
	case errors.Is(err, coreerrors.ErrArityMismatch),
		errors.Is(err, coreerrors.ErrEmptyActions),
		errors.Is(err, coreerrors.ErrThreshold),
		errors.Is(err, coreerrors.ErrInsufficientBalance),
		errors.Is(err, coreerrors.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: w.Header().Get(headerRequestID)})
}

// writeOperationError reports err with its mapped status. Internal failures
// are logged and masked.
func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("api operation failed",
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
			"error", err.Error())
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
