package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solardesk/solardesk/internal/repository"
	"github.com/solardesk/solardesk/internal/timeline"
)

// errorBody is the structured error envelope every failure returns.
type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type httpError struct {
	status int
	body   errorBody
}

func (e *httpError) Error() string { return e.body.Message }

func errUnauthenticated(msg string) *httpError {
	return &httpError{status: http.StatusUnauthorized, body: errorBody{Code: "unauthenticated", Message: msg}}
}

func errBadRequest(msg string) *httpError {
	return &httpError{status: http.StatusBadRequest, body: errorBody{Code: "bad_request", Message: msg}}
}

func errForbidden(msg string) *httpError {
	return &httpError{status: http.StatusForbidden, body: errorBody{Code: "forbidden", Message: msg}}
}

// statusForCode maps the timeline error taxonomy onto HTTP statuses.
func statusForCode(code timeline.ErrorCode) int {
	switch code {
	case timeline.CodeRoleNotPermitted:
		return http.StatusForbidden
	case timeline.CodeDependencyNotSatisfied, timeline.CodeValidationFailed, timeline.CodeOverrideFailed:
		return http.StatusUnprocessableEntity
	case timeline.CodeConflict, timeline.CodeProjectClosed:
		return http.StatusConflict
	case timeline.CodeNotFound:
		return http.StatusNotFound
	case timeline.CodeInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	if errors.As(err, &he) {
		s.writeJSON(w, he.status, he.body)
		return
	}

	var te *timeline.Error
	if errors.As(err, &te) {
		details := te.Blocking
		if len(te.Missing) > 0 {
			details = te.Missing
		}
		if te.Code == timeline.CodeConflict {
			conflictsTotal.Inc()
		}
		s.writeJSON(w, statusForCode(te.Code), errorBody{
			Code:    string(te.Code),
			Message: te.Message,
			Details: details,
		})
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()})
		return
	}
	if errors.Is(err, repository.ErrStaleWrite) {
		conflictsTotal.Inc()
		s.writeJSON(w, http.StatusConflict, errorBody{Code: "conflict", Message: err.Error()})
		return
	}

	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
	s.writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response")
	}
}
