package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	commonerrors "github.com/unikron/intent-relay/common/errors"
)

// errorBody is the uniform error envelope. The timestamp is stamped centrally
// in writeError so every failure response carries one.
type errorBody struct {
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	Violations []string `json:"violations,omitempty"`
	Reference  string   `json:"reference,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

// decodeJSON parses a request body strictly: unknown fields are rejected so
// client typos surface instead of silently dropping parameters.
func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return commonerrors.NewValidation("invalid request body: " + err.Error())
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithField("error", err).Error("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	var body errorBody

	switch e := err.(type) {
	case *commonerrors.ValidationError:
		status = http.StatusBadRequest
		body = errorBody{Error: e.Error(), Code: e.Code, Violations: e.Violations}
	case *commonerrors.StateError:
		status = http.StatusBadRequest
		body = errorBody{Error: e.Message, Code: e.Code}
	case *commonerrors.IntegrityError:
		status = http.StatusBadRequest
		body = errorBody{Error: e.Error(), Code: "HASH_MISMATCH"}
	case *commonerrors.NotFoundError:
		status = http.StatusNotFound
		body = errorBody{Error: e.Error(), Code: "NOT_FOUND"}
	case *commonerrors.ConflictError:
		status = http.StatusConflict
		body = errorBody{Error: e.Message, Code: e.Code, Reference: e.Reference}
	case *commonerrors.UpstreamError:
		status = http.StatusServiceUnavailable
		body = errorBody{Error: e.Error(), Code: "UPSTREAM_UNAVAILABLE"}
	case *commonerrors.ExecutionError:
		status = http.StatusInternalServerError
		body = errorBody{Error: e.Error(), Code: "EXECUTION_FAILED"}
	default:
		if errors.Is(err, commonerrors.ErrSessionExpired) {
			status = http.StatusNotFound
			body = errorBody{Error: err.Error(), Code: "SESSION_EXPIRED"}
			break
		}
		s.logger.WithFields(logrus.Fields{"error": err}).Error("Unhandled error")
		status = http.StatusInternalServerError
		body = errorBody{Error: "internal server error", Code: "INTERNAL_ERROR"}
	}

	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	s.writeJSON(w, status, body)
}
