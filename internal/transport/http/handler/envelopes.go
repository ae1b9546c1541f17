package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/auth-api-nosql/internal/domain"
)

// apiResponse is the envelope every endpoint answers with.
type apiResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeAPI(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Status:  status,
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}

// httpError maps a service error onto the envelope. Service errors wrap a
// domain sentinel; the sentinel picks the HTTP status and is stripped from
// the user-facing message. Anything unwrapped is a server fault and is not
// echoed to the client.
func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrEmailNotVerified),
		errors.Is(err, domain.ErrNoTwoFAMethod):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		writeAPI(w, status, "Something went wrong. Please try again later.", nil)
		return
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[:i]
	}
	writeAPI(w, status, msg, nil)
}
