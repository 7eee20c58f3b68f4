package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/session"
)

type stubSource struct {
	sess *identity.Session
}

func (s stubSource) GetSession(_ context.Context, token string) (*identity.Session, error) {
	if token != "good" {
		return nil, nil
	}
	return s.sess, nil
}

func (stubSource) Subscribe(identity.Listener) func() { return func() {} }

type stubRoles struct {
	role access.Role
	ok   bool
}

func (s stubRoles) Resolve(context.Context, uuid.UUID) (access.Role, bool) {
	return s.role, s.ok
}

type memActivity struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func (m *memActivity) Last(_ context.Context, id string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[id]
	return t, ok, nil
}

func (m *memActivity) Set(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[id] = at
	return nil
}

type stubSignOut struct {
	ids []string
}

func (s *stubSignOut) SignOut(_ context.Context, id string) error {
	s.ids = append(s.ids, id)
	return nil
}

type envelopeBody struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func setup(role access.Role, ok bool) (SessionConfig, *memActivity, *stubSignOut) {
	sess := &identity.Session{ID: "sid-1", User: identity.User{ID: uuid.New(), Email: "ops@winch.zone"}}
	activity := &memActivity{last: map[string]time.Time{}}
	signOut := &stubSignOut{}
	return SessionConfig{
		Guard:       session.NewGuard(stubSource{sess: sess}, zerolog.Nop()),
		Roles:       stubRoles{role: role, ok: ok},
		Activity:    activity,
		IdleTimeout: 30 * time.Minute,
		SignOut:     signOut,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return now },
	}, activity, signOut
}

func request(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestSessionRejectsMissingAndDeadSessions(t *testing.T) {
	cfg, _, _ := setup(access.RoleAdmin, true)
	h := Session(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, token := range []string{"", "revoked"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(token))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
		env := decode(t, rec)
		if env.Error.Code != "AUTH" || env.Error.Details["redirect"] != "/" || env.Error.Details["replace"] != true {
			t.Fatalf("unexpected error body %+v", env.Error)
		}
	}
}

func TestSessionPutsActorInContext(t *testing.T) {
	cfg, activity, _ := setup(access.RoleUser, true)
	activity.last["sid-1"] = now.Add(-5 * time.Minute)

	var got access.Actor
	var res access.Resolution
	h := Session(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetActor(r.Context())
		res = GetResolution(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("good"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got.Role != access.RoleUser || got.SessionID != "sid-1" || got.Email != "ops@winch.zone" {
		t.Fatalf("unexpected actor %+v", got)
	}
	if !res.HasRole() {
		t.Fatalf("expected resolved role, got %+v", res)
	}
}

func TestSessionInitializesMissingMarker(t *testing.T) {
	cfg, activity, _ := setup(access.RoleUser, true)
	h := Session(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), request("good"))
	if activity.last["sid-1"] != now {
		t.Fatalf("marker not initialized: %v", activity.last["sid-1"])
	}
}

func TestSessionExpiresIdleSession(t *testing.T) {
	cfg, activity, signOut := setup(access.RoleAdmin, true)
	activity.last["sid-1"] = now.Add(-31 * time.Minute)
	expired := 0
	cfg.OnIdle = func() { expired++ }

	h := Session(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("good"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Error.Message != MsgIdleExpired {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
	if len(signOut.ids) != 1 || signOut.ids[0] != "sid-1" {
		t.Fatalf("expected sign out of sid-1, got %v", signOut.ids)
	}
	if activity.last["sid-1"] != now {
		t.Fatal("marker not reset")
	}
	if expired != 1 {
		t.Fatalf("OnIdle called %d times", expired)
	}
}

func TestSessionKeepsSessionAtThreshold(t *testing.T) {
	cfg, activity, signOut := setup(access.RoleAdmin, true)
	activity.last["sid-1"] = now.Add(-30 * time.Minute)

	h := Session(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("good"))
	if rec.Code != http.StatusNoContent || len(signOut.ids) != 0 {
		t.Fatalf("session at exactly the threshold must stay alive (code %d)", rec.Code)
	}
}

func TestRequireView(t *testing.T) {
	cases := []struct {
		name   string
		role   access.Role
		ok     bool
		view   string
		status int
	}{
		{"admin on admin view", access.RoleAdmin, true, access.ViewTripsPending, http.StatusOK},
		{"user on admin view", access.RoleUser, true, access.ViewTripsPending, http.StatusForbidden},
		{"user on shared view", access.RoleUser, true, access.ViewTripsRecord, http.StatusOK},
		{"no role", "", false, access.ViewTripsRecord, http.StatusForbidden},
		{"unknown view", access.RoleAdmin, true, "reports.secret", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, activity, _ := setup(tc.role, tc.ok)
			activity.last["sid-1"] = now
			h := Session(cfg)(RequireView(tc.view)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, request("good"))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusForbidden {
				if env := decode(t, rec); env.Error.Message != access.NoAccessMessage {
					t.Fatalf("unexpected message %q", env.Error.Message)
				}
			}
		})
	}
}

func TestRequireViewWithoutResolutionIsLoading(t *testing.T) {
	h := RequireView(access.ViewTripsRecord)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trips", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRequireAnyView(t *testing.T) {
	cfg, activity, _ := setup(access.RoleUser, true)
	activity.last["sid-1"] = now
	h := Session(cfg)(RequireAnyView(access.ViewTripsPending, access.ViewTripsEdit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("good"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBearerTokenFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/session/ws?access_token=abc", nil)
	if got := BearerToken(req); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
