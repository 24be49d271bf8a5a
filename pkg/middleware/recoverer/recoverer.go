// Package recoverer provides middleware that turns handler panics into a
// generic JSON 500 response instead of a dropped connection.
package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var serverErrorResponse = errorResponse{
	Status:  "error",
	Message: "server error occurred",
}

// New returns middleware that recovers from panics in next, logs them with logger
// and answers with status 500.
func New(logger *slog.Logger) func(http.Handler) http.Handler {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				// The server handles this one itself.
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error(
					"panic recovered",
					slog.Group(op,
						slog.Any("panic", rvr),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					),
				)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, serverErrorResponse)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
