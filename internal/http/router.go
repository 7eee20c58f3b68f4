package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/config"
	"github.com/winchzone/dashboard/internal/customer"
	"github.com/winchzone/dashboard/internal/directory"
	"github.com/winchzone/dashboard/internal/http/envelope"
	httpmiddleware "github.com/winchzone/dashboard/internal/http/middleware"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/idle"
	"github.com/winchzone/dashboard/internal/lookup"
	"github.com/winchzone/dashboard/internal/metrics"
	"github.com/winchzone/dashboard/internal/session"
	"github.com/winchzone/dashboard/internal/storage"
	"github.com/winchzone/dashboard/internal/trip"
)

// AuthProvider is the identity boundary plus the local provider extras the
// public auth routes use.
type AuthProvider interface {
	identity.Provider
	identity.UsernameLookup
	VerifyEmail(ctx context.Context, token string) (string, error)
	RefreshSession(ctx context.Context, refreshToken string) (*identity.Session, error)
}

type CustomerService interface {
	List(ctx context.Context) ([]customer.Customer, error)
	Create(ctx context.Context, actor access.Actor, f customer.Fields, up customer.Uploads) (uuid.UUID, error)
	Update(ctx context.Context, actor access.Actor, id uuid.UUID, p customer.Patch) error
}

type TripService interface {
	Record(ctx context.Context, actor access.Actor, in trip.RecordInput, pickup, dropoff []storage.File) (int64, error)
	Get(ctx context.Context, id int64) (trip.Trip, error)
	ListRecent(ctx context.Context) ([]trip.Trip, error)
	ListPending(ctx context.Context) ([]trip.Summary, error)
	Export(ctx context.Context, f trip.Filter) ([]trip.Summary, error)
	Update(ctx context.Context, actor access.Actor, id int64, p trip.Patch) error
	SetCollection(ctx context.Context, actor access.Actor, id int64, collectionID *int) error
	UploadPhotos(ctx context.Context, actor access.Actor, id int64, pickup, dropoff []storage.File) error
	Approve(ctx context.Context, actor access.Actor, id int64) (bool, error)
}

type LookupService interface {
	Masters(ctx context.Context) (lookup.Masters, error)
}

type UserService interface {
	List(ctx context.Context) ([]directory.Entry, error)
	SetRole(ctx context.Context, actor access.Actor, userID uuid.UUID, code int) error
}

// Locker rejects a duplicate submission while the first is in flight.
type Locker interface {
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the router.
type Deps struct {
	Config    *config.Config
	DB        Pinger
	Redis     *redis.Client
	Auth      AuthProvider
	Roles     access.RoleSource
	Activity  idle.ActivityStore
	Busy      Locker
	Customers CustomerService
	Trips     TripService
	Lookups   LookupService
	Users     UserService
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

type Handler struct {
	cfg            *config.Config
	db             Pinger
	redis          *redis.Client
	auth           AuthProvider
	guard          *session.Guard
	roles          access.RoleSource
	activity       idle.ActivityStore
	busy           Locker
	customers      CustomerService
	trips          TripService
	lookups        LookupService
	users          UserService
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	now            func() time.Time
	publicLimiter  *httpmiddleware.RateLimiter
	authLimiter    *httpmiddleware.RateLimiter
	accountLimiter *httpmiddleware.RateLimiter
	origins        *httpmiddleware.Origins
	devCookies     bool
}

// NewRouter builds the API router.
func NewRouter(d Deps) http.Handler {
	h := newHandler(d)
	return h.routes()
}

func newHandler(d Deps) *Handler {
	cfg := d.Config
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		cfg:            cfg,
		db:             d.DB,
		redis:          d.Redis,
		auth:           d.Auth,
		guard:          session.NewGuard(d.Auth, d.Logger),
		roles:          d.Roles,
		activity:       d.Activity,
		busy:           d.Busy,
		customers:      d.Customers,
		trips:          d.Trips,
		lookups:        d.Lookups,
		users:          d.Users,
		metrics:        d.Metrics,
		logger:         d.Logger,
		now:            now,
		publicLimiter:  httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:    httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		accountLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitAccount.RequestsPerSecond, cfg.RateLimitAccount.Burst),
		origins:        httpmiddleware.NewOrigins(cfg.AllowOrigins),
		devCookies:     devCookies,
	}
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(h.origins))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		if h.metrics != nil {
			public.Method(http.MethodGet, "/metrics", h.metrics.Handler())
		}

		public.Route("/auth", func(auth chi.Router) {
			auth.With(httpmiddleware.AccountRateLimit(h.accountLimiter, "identifier")).Post("/login", h.Login)
			auth.Post("/signup", h.Signup)
			auth.Get("/verify", h.Verify)
			auth.With(httpmiddleware.AccountRateLimit(h.accountLimiter, "email")).Post("/forgot", h.Forgot)
			auth.Post("/recovery", h.Recovery)
			auth.Post("/refresh", h.Refresh)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Session(h.sessionConfig()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Post("/auth/logout", h.Logout)
		private.Put("/auth/password", h.UpdatePassword)
		private.Get("/me", h.Me)
		private.Get("/navigation", h.Navigation)
		private.Post("/session/activity", h.Activity)

		private.Route("/customers", func(c chi.Router) {
			c.With(httpmiddleware.RequireView(access.ViewCustomersList)).Get("/", h.ListCustomers)
			c.With(httpmiddleware.RequireView(access.ViewCustomersNew)).Post("/", h.CreateCustomer)
			c.With(httpmiddleware.RequireView(access.ViewCustomersList)).Patch("/{id}", h.UpdateCustomer)
		})

		private.Route("/trips", func(t chi.Router) {
			t.With(httpmiddleware.RequireView(access.ViewTripsRecord)).Post("/", h.RecordTrip)
			t.With(httpmiddleware.RequireView(access.ViewTripsPending)).Get("/pending", h.ListPendingTrips)
			t.Group(func(export chi.Router) {
				export.Use(httpmiddleware.RequireView(access.ViewTripsExport))
				export.Get("/export", h.ExportTrips)
				export.Get("/export/preview", h.PreviewExport)
			})
			t.Group(func(edit chi.Router) {
				edit.Use(httpmiddleware.RequireView(access.ViewTripsEdit))
				edit.Get("/", h.ListTrips)
				edit.Get("/{id}", h.GetTrip)
				edit.Patch("/{id}", h.UpdateTrip)
				edit.Put("/{id}/collection", h.SetTripCollection)
			})
			t.With(httpmiddleware.RequireAnyView(access.ViewTripsRecord, access.ViewTripsEdit)).Post("/{id}/photos", h.UploadTripPhotos)
			t.With(httpmiddleware.RequireView(access.ViewTripsPending)).Post("/{id}/approve", h.ApproveTrip)
		})

		private.With(httpmiddleware.RequireAnyView(access.ViewTripsRecord, access.ViewTripsEdit, access.ViewTripsExport)).Get("/lookups", h.Lookups)

		private.Route("/users", func(u chi.Router) {
			u.Use(httpmiddleware.RequireView(access.ViewUsersRoles))
			u.Get("/", h.ListUsers)
			u.Put("/{id}/role", h.SetUserRole)
		})
	})

	// The socket authenticates inside the handshake, so it sits outside the
	// session group and keeps its own watch.
	r.Get("/session/ws", h.SessionSocket)

	return r
}

func (h *Handler) sessionConfig() httpmiddleware.SessionConfig {
	cfg := httpmiddleware.SessionConfig{
		Guard:       h.guard,
		Roles:       h.roles,
		Activity:    h.activity,
		IdleTimeout: h.cfg.Idle.Timeout,
		SignOut:     h.auth,
		Logger:      h.logger,
		Now:         h.now,
	}
	if h.metrics != nil {
		cfg.OnIdle = h.metrics.IdleExpired
	}
	return cfg
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	envelope.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready checks Postgres and Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.db != nil {
		dbErr = h.db.Ping(ctx)
	}
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}

	if dbErr != nil || redisErr != nil {
		envelope.Error(w, envelope.CodeUnavailable, "dependencies unavailable", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	envelope.JSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
