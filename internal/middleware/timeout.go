package middleware

import (
	"net/http"
	"time"

	"course-portal/pkg/apierror"
)

// Timeout buffers the response, so it must not wrap websocket upgrades.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"` + apierror.CodeTimeout + `","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
