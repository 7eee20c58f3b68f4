package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/cors"
)

// Origins holds the ALLOW_ORIGINS entries: exact origins such as
// https://app.winch.zone, or *.winch.zone for any subdomain.
type Origins struct {
	exact    map[string]struct{}
	suffixes []string // ".winch.zone"
}

func NewOrigins(entries []string) *Origins {
	o := &Origins{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		e := strings.ToLower(strings.TrimSpace(entry))
		switch {
		case e == "":
		case strings.HasPrefix(e, "*."):
			o.suffixes = append(o.suffixes, strings.TrimPrefix(e, "*"))
		default:
			o.exact[strings.TrimRight(e, "/")] = struct{}{}
		}
	}
	return o
}

// Empty reports whether no origin was configured.
func (o *Origins) Empty() bool {
	return len(o.exact) == 0 && len(o.suffixes) == 0
}

// Allow reports whether origin may call the API. A bare domain does not
// match its own wildcard entry.
func (o *Origins) Allow(origin string) bool {
	origin = strings.ToLower(origin)
	if origin == "" {
		return false
	}
	if _, ok := o.exact[origin]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, suf := range o.suffixes {
		if strings.HasSuffix(host, suf) && host != strings.TrimPrefix(suf, ".") {
			return true
		}
	}
	return false
}

// CORS answers preflights for the allowed origins. Export downloads and
// throttled responses expose their file name and wait time.
func CORS(origins *Origins) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc:  func(_ *http.Request, origin string) bool { return origins.Allow(origin) },
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
