package middleware

import (
	"net/http"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/http/envelope"
)

// RequireView gates a route behind the allow-list of a dashboard view. It
// runs after Session and checks independently of navigation.
func RequireView(key string) func(http.Handler) http.Handler {
	view, known := access.ViewByKey(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !known {
				envelope.Error(w, envelope.CodeForbidden, access.NoAccessMessage, nil)
				return
			}
			switch access.Gate(GetResolution(r.Context()), view.Roles) {
			case access.GateAllowed:
				next.ServeHTTP(w, r)
			case access.GateDenied:
				envelope.Error(w, envelope.CodeForbidden, access.NoAccessMessage, nil)
			default:
				w.Header().Set("Retry-After", "1")
				envelope.Error(w, envelope.CodeLoading, access.LoadingMessage, nil)
			}
		})
	}
}

// RequireAnyView passes when any of the views is allowed.
func RequireAnyView(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := GetResolution(r.Context())
			if !res.Resolved {
				w.Header().Set("Retry-After", "1")
				envelope.Error(w, envelope.CodeLoading, access.LoadingMessage, nil)
				return
			}
			for _, key := range keys {
				if view, ok := access.ViewByKey(key); ok && access.Gate(res, view.Roles) == access.GateAllowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			envelope.Error(w, envelope.CodeForbidden, access.NoAccessMessage, nil)
		})
	}
}
