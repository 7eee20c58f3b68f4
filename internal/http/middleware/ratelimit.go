package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/winchzone/dashboard/internal/http/envelope"
)

// MsgTooManyAttempts is returned with every 429.
const MsgTooManyAttempts = "Too many attempts. Please wait a moment and try again."

// maxPeekBytes caps how much of a request body AccountRateLimit reads.
const maxPeekBytes = 64 << 10

// RateLimiter keeps one token bucket per key. Buckets idle for longer than
// idleAfter are dropped.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	now       func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:     rate.Limit(reqPerSec),
		burst:     burst,
		idleAfter: 10 * time.Minute,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// take spends one token of key. When the bucket is empty it reports how long
// the caller should wait.
func (r *RateLimiter) take(key string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[key]
	if !ok {
		r.sweep(now)
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.seen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return r.idleAfter, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// sweep drops idle buckets at most once per idleAfter. Caller holds mu.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.idleAfter {
		return
	}
	r.lastSweep = now
	for k, b := range r.buckets {
		if now.Sub(b.seen) > r.idleAfter {
			delete(r.buckets, k)
		}
	}
}

// LimitByKey limits by an arbitrary request key. Requests without a key pass.
func (r *RateLimiter) LimitByKey(next http.Handler, keyFunc func(*http.Request) (string, bool)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyFunc(req)
		if !ok || key == "" {
			next.ServeHTTP(w, req)
			return
		}

		if wait, allowed := r.take(key); !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			envelope.Error(w, envelope.CodeRateLimit, MsgTooManyAttempts, nil)
			return
		}

		next.ServeHTTP(w, req)
	})
}

// IPRateLimit keys on the client address. RealIP runs earlier in the chain,
// so RemoteAddr already reflects forwarding headers.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			return clientIP(r), true
		})
	}
}

// UserRateLimit keys on the authenticated user.
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			subject := GetSubject(r.Context())
			if subject == "" {
				return "", false
			}
			return subject, true
		})
	}
}

// AccountRateLimit keys on the account named by a JSON body field, such as
// the login identifier or the email of a reset request, so attempts against
// one account are capped no matter how many addresses they come from. The
// body is restored for the handler.
func AccountRateLimit(limiter *RateLimiter, field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			account := peekField(r, field)
			if account == "" {
				return "", false
			}
			return r.URL.Path + "|" + account, true
		})
	}
}

func peekField(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var form map[string]json.RawMessage
	if json.Unmarshal(raw, &form) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(form[field], &value) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
