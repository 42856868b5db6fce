package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"todo-planner/internal/logger"
	"todo-planner/internal/recurrence"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// errBadJSON marks a request body that could not be decoded.
var errBadJSON = errors.New("malformed JSON body")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("encode response", "err", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeList(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: status < 400, Message: message})
}

// decodeJSON reads a single JSON value from the body. Unknown fields are
// ignored so clients can send back whole objects they received.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: extra data after object", errBadJSON)
	}
	return nil
}

// fail maps service and storage errors onto status codes. Anything unknown is
// logged and reported as a generic 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "err", err)
	}
	writeMessage(w, status, message)
}

func classify(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "request body is not valid JSON"
	case errors.Is(err, recurrence.ErrInvalidConfiguration):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrNicknameTaken),
		errors.Is(err, service.ErrLinkCodeInvalid),
		errors.Is(err, service.ErrNoDueDate):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusBadRequest, "value is already in use"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token has expired"
	case errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized, "token is invalid"
	case errors.Is(err, service.ErrUserGone):
		return http.StatusUnauthorized, "user does not exist"
	case errors.Is(err, service.ErrChecklistItemMissing):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "todo not found"
	}
	return http.StatusInternalServerError, "internal server error"
}
