package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/internal/status"
)

// apiError maps the core error taxonomy onto HTTP. The reason tag is
// machine-readable so the interface can show "you already voted"
// instead of a generic failure.
func apiError(e *core.RequestEvent, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, status.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, status.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, status.ErrInvalid):
		code = http.StatusBadRequest
	case errors.Is(err, status.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, status.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}

	return e.JSON(code, map[string]string{
		"error":  err.Error(),
		"reason": status.Reason(err),
	})
}

// deviceID reads the client-generated device token; it travels in the
// X-Device-Id header on every participant request.
func deviceID(e *core.RequestEvent) string {
	return e.Request.Header.Get("X-Device-Id")
}
