package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/http/envelope"
	httpmiddleware "github.com/winchzone/dashboard/internal/http/middleware"
	"github.com/winchzone/dashboard/internal/identity"
	"github.com/winchzone/dashboard/internal/idle"
	"github.com/winchzone/dashboard/internal/session"
)

const (
	socketWriteWait = 10 * time.Second
	socketPongWait  = 60 * time.Second
	socketPingEvery = socketPongWait * 9 / 10
)

// Me returns the caller with their resolved role.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := httpmiddleware.GetSession(r.Context())
	res := httpmiddleware.GetResolution(r.Context())
	envelope.JSON(w, http.StatusOK, map[string]any{
		"user":  sess.User,
		"role":  res,
		"views": access.Visible(access.Views(), res),
	})
}

// Navigation lists the destinations the caller's role may open.
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	envelope.JSON(w, http.StatusOK, access.Visible(access.Views(), httpmiddleware.GetResolution(r.Context())))
}

// Activity records a user activity signal for the idle timer shared by
// every tab of the session.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Signal string `json:"signal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}
	if _, ok := idle.ParseSignal(payload.Signal); !ok {
		envelope.Error(w, envelope.CodeValidation, "unknown activity signal", nil)
		return
	}

	if h.activity == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sess := httpmiddleware.GetSession(r.Context())
	if err := h.activity.Set(r.Context(), sess.ID, h.now()); err != nil {
		h.writeServiceError(w, r, err, "activity not recorded")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type socketMessage struct {
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Replace  bool   `json:"replace,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (m socketMessage) terminal() bool {
	return m.Type == "idle" || (m.Type == "session" && m.State == session.Redirect.String())
}

type socketInput struct {
	Type   string `json:"type"`
	Signal string `json:"signal"`
}

// socketSession adapts the provider session behind a socket to the idle
// monitor.
type socketSession struct {
	auth  AuthProvider
	id    string
	token string
}

func (s socketSession) ID() string { return s.id }

func (s socketSession) Live(ctx context.Context) (bool, error) {
	sess, err := s.auth.GetSession(ctx, s.token)
	if err != nil {
		return false, err
	}
	return sess != nil && sess.ID == s.id, nil
}

func (s socketSession) Terminate(ctx context.Context) error {
	return s.auth.SignOut(ctx, s.id)
}

// SessionSocket streams guard decisions and idle expiry to one open
// dashboard tab and accepts its activity signals.
func (h *Handler) SessionSocket(w http.ResponseWriter, r *http.Request) {
	token := httpmiddleware.BearerToken(r)
	decision := h.guard.Decide(r.Context(), token)
	if token == "" || !decision.Authorized() {
		envelope.Error(w, envelope.CodeAuth, identity.ErrSessionMissing.Message, decision)
		return
	}
	sess := decision.Session

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	logger := h.logger.With().Str("component", "session").Str("session_id", sess.ID).Logger()
	if h.metrics != nil {
		h.metrics.WatchOpened()
		defer h.metrics.WatchClosed()
	}

	out := make(chan socketMessage, 16)
	send := func(m socketMessage) {
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}

	watch := h.guard.Open(ctx, token, func(d session.Decision) {
		go send(socketMessage{Type: "session", State: d.State.String(), Redirect: d.To, Replace: d.Replace})
	})

	var monitor *idle.Monitor
	if h.activity != nil {
		monitor = idle.NewMonitor(h.activity, socketSession{auth: h.auth, id: sess.ID, token: token}, idle.Config{
			Timeout:      h.cfg.Idle.Timeout,
			PollInterval: h.cfg.Idle.PollInterval,
		}, logger, func() {
			if h.metrics != nil {
				h.metrics.IdleExpired()
			}
			go send(socketMessage{
				Type:     "idle",
				Message:  httpmiddleware.MsgIdleExpired,
				Redirect: session.LandingPath,
				Replace:  true,
			})
		}).WithClock(h.now)
		if err := monitor.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("idle monitor start failed")
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeSocket(ctx, cancel, conn, out)
	}()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})
	for {
		var in socketInput
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket closed")
			}
			break
		}
		if in.Type != "activity" || monitor == nil {
			continue
		}
		sig, ok := idle.ParseSignal(in.Signal)
		if !ok {
			continue
		}
		if err := monitor.Touch(ctx, sig); err != nil {
			logger.Warn().Err(err).Msg("activity not recorded")
		}
	}

	if monitor != nil {
		monitor.Stop()
	}
	watch.Close()
	cancel()
	wg.Wait()
	_ = conn.Close()
}

// writeSocket owns every write on conn. A terminal message ends the socket.
func (h *Handler) writeSocket(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan socketMessage) {
	ticker := time.NewTicker(socketPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteJSON(m); err != nil {
				cancel()
				_ = conn.Close()
				return
			}
			if m.terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, m.Type),
					time.Now().Add(socketWriteWait))
				cancel()
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.origins.Empty() {
		return true
	}
	return h.origins.Allow(origin)
}
