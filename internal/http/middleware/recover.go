package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/winchzone/dashboard/internal/http/envelope"
)

// MsgInternal is the only thing a client learns about a panic.
const MsgInternal = "Something went wrong. Please try again."

// Recover turns a panic into an INTERNAL envelope and logs it with the
// request id. http.ErrAbortHandler is passed through.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			envelope.Error(w, envelope.CodeInternal, MsgInternal, nil)
		}()
		next.ServeHTTP(w, r)
	})
}
