package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/winchzone/dashboard/internal/auth"
	"github.com/winchzone/dashboard/internal/repo"
)

// Provider is the identity boundary consumed by the dashboard. Every call may
// fail with an *Error whose message is shown to the user verbatim.
type Provider interface {
	// GetSession returns the live session behind accessToken, or nil.
	GetSession(ctx context.Context, accessToken string) (*Session, error)
	Subscribe(fn Listener) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, in SignUpInput) (User, error)
	SignOut(ctx context.Context, sessionID string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	ExchangeCodeForSession(ctx context.Context, code string) (*Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	UpdatePassword(ctx context.Context, sessionID, password string) error
}

// Flows for recovery links.
const (
	FlowImplicit = "implicit"
	FlowPKCE     = "pkce"
)

const (
	verifyTTL       = 24 * time.Hour
	recoveryCodeTTL = time.Hour
)

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Options tunes the local provider.
type Options struct {
	RefreshTTL time.Duration
	Flow       string
	APIURL     string
	Mailer     Mailer
	Hub        *Hub
	Logger     zerolog.Logger
}

// Local implements Provider with Postgres identities and Redis sessions.
type Local struct {
	users      UserStore
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	flow       string
	apiURL     string
	mailer     Mailer
	hub        *Hub
	logger     zerolog.Logger
}

func NewLocal(users UserStore, rdb redisCommander, jwtMgr *auth.JWTManager, opts Options) *Local {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.Flow == "" {
		opts.Flow = FlowImplicit
	}
	if opts.Mailer == nil {
		opts.Mailer = NewLogMailer(opts.Logger)
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(nil, opts.Logger)
	}
	return &Local{
		users:      users,
		redis:      rdb,
		jwt:        jwtMgr,
		refreshTTL: opts.RefreshTTL,
		flow:       opts.Flow,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		mailer:     opts.Mailer,
		hub:        opts.Hub,
		logger:     opts.Logger.With().Str("component", "identity").Logger(),
	}
}

func (p *Local) Subscribe(fn Listener) func() {
	return p.hub.Subscribe(fn)
}

func (p *Local) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, nil
	}
	claims, err := p.jwt.ParseAndValidate(accessToken)
	if err != nil {
		return nil, nil
	}
	stored, err := p.loadSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.UserID.String() != claims.Subject {
		return nil, nil
	}

	sess := &Session{
		ID:          claims.SessionID,
		User:        User{ID: stored.UserID, Email: stored.Email, Username: stored.Username},
		AccessToken: accessToken,
		Recovery:    stored.Recovery,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func (p *Local) SignIn(ctx context.Context, email, password string) (*Session, error) {
	acct, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, acct.PasswordHash)
	if err != nil {
		p.logger.Warn().Err(err).Msg("sign in: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if acct.EmailConfirmed == nil {
		return nil, ErrEmailNotConfirmed
	}
	if auth.NeedsRehash(acct.PasswordHash) {
		p.upgradeHash(ctx, acct.ID, password)
	}

	sess, err := p.createSession(ctx, acct.User, false)
	if err != nil {
		return nil, err
	}
	p.hub.Publish(ctx, Event{Type: EventSignedIn, SessionID: sess.ID, UserID: sess.User.ID})
	return sess, nil
}

// upgradeHash rewrites a hash stored with older parameters. A failure keeps
// the old hash, which still verifies.
func (p *Local) upgradeHash(ctx context.Context, userID uuid.UUID, password string) {
	hash, err := auth.Hash(password)
	if err == nil {
		err = p.users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("sign in: password hash upgrade failed")
	}
}

func (p *Local) SignUp(ctx context.Context, in SignUpInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !looksLikeEmail(email) {
		return User{}, ErrInvalidEmail
	}
	if !auth.LongEnough(in.Password) {
		return User{}, ErrWeakPassword
	}

	hash, err := auth.Hash(in.Password)
	if err != nil {
		return User{}, err
	}
	user, err := p.users.Create(ctx, email, strings.TrimSpace(in.Data["username"]), hash)
	if err != nil {
		return User{}, err
	}

	raw, hashed, err := auth.GenerateOpaqueToken()
	if err != nil {
		return User{}, err
	}
	pending, err := json.Marshal(pendingVerification{UserID: user.ID, RedirectTo: in.RedirectTo})
	if err != nil {
		return User{}, err
	}
	if err := p.redis.Set(ctx, auth.VerifyRedisKey(hashed), pending, verifyTTL).Err(); err != nil {
		return User{}, err
	}

	link := p.apiURL + "/auth/verify?token=" + url.QueryEscape(raw) + "&type=signup"
	if err := p.mailer.Send(ctx, Mail{
		To:      user.Email,
		Subject: "Confirm your signup",
		Text:    "Follow the link to confirm your email address.",
		Link:    link,
	}); err != nil {
		p.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("send verification mail failed")
		return User{}, &Error{Code: "email_send_failed", Message: "Error sending confirmation email"}
	}
	return user, nil
}

// VerifyEmail confirms the address behind a verification link and returns
// the redirect target captured at sign-up.
func (p *Local) VerifyEmail(ctx context.Context, token string) (string, error) {
	key := auth.VerifyRedisKey(auth.HashOpaqueToken(strings.TrimSpace(token)))
	raw, err := p.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidVerify
	}
	if err != nil {
		return "", err
	}
	_ = p.redis.Del(ctx, key).Err()

	var pending pendingVerification
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return "", ErrInvalidVerify
	}
	if err := p.users.ConfirmEmail(ctx, pending.UserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidVerify
		}
		return "", err
	}
	p.hub.Publish(ctx, Event{Type: EventUserUpdated, UserID: pending.UserID})
	return pending.RedirectTo, nil
}

func (p *Local) SignOut(ctx context.Context, sessionID string) error {
	stored, err := p.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if stored == nil {
		return nil
	}
	if err := p.redis.Del(ctx, auth.SessionRedisKey(sessionID), auth.RefreshRedisKey(stored.RefreshHash)).Err(); err != nil {
		return err
	}
	p.hub.Publish(ctx, Event{Type: EventSignedOut, SessionID: sessionID, UserID: stored.UserID})
	return nil
}

// ResetPasswordForEmail mails a recovery link. Unknown addresses succeed
// silently.
func (p *Local) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	acct, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}

	var link string
	switch p.flow {
	case FlowPKCE:
		raw, hashed, err := auth.GenerateOpaqueToken()
		if err != nil {
			return err
		}
		if err := p.redis.Set(ctx, auth.RecoveryCodeRedisKey(hashed), acct.ID.String(), recoveryCodeTTL).Err(); err != nil {
			return err
		}
		link = redirectTo + "?code=" + url.QueryEscape(raw)
	default:
		sess, err := p.createSession(ctx, acct.User, true)
		if err != nil {
			return err
		}
		link = fmt.Sprintf("%s#access_token=%s&refresh_token=%s&type=recovery",
			redirectTo, url.QueryEscape(sess.AccessToken), url.QueryEscape(sess.RefreshToken))
	}

	if err := p.mailer.Send(ctx, Mail{
		To:      acct.Email,
		Subject: "Reset your password",
		Text:    "Follow the link to choose a new password.",
		Link:    link,
	}); err != nil {
		p.logger.Error().Err(err).Str("user_id", acct.ID.String()).Msg("send recovery mail failed")
		return &Error{Code: "email_send_failed", Message: "Error sending recovery email"}
	}
	return nil
}

func (p *Local) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	key := auth.RecoveryCodeRedisKey(auth.HashOpaqueToken(strings.TrimSpace(code)))
	raw, err := p.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	_ = p.redis.Del(ctx, key).Err()

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidCode
	}
	acct, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	sess, err := p.createSession(ctx, acct.User, true)
	if err != nil {
		return nil, err
	}
	p.hub.Publish(ctx, Event{Type: EventPasswordRecovery, SessionID: sess.ID, UserID: sess.User.ID})
	return sess, nil
}

// SetSession adopts a token pair, refreshing it when the access token is no
// longer valid.
func (p *Local) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	sess, err := p.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		sess.RefreshToken = refreshToken
		if sess.Recovery {
			p.hub.Publish(ctx, Event{Type: EventPasswordRecovery, SessionID: sess.ID, UserID: sess.User.ID})
		}
		return sess, nil
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrSessionMissing
	}
	return p.RefreshSession(ctx, refreshToken)
}

// RefreshSession rotates the refresh token and issues a new access token.
func (p *Local) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	oldHash := auth.HashOpaqueToken(strings.TrimSpace(refreshToken))
	sessionID, err := p.redis.Get(ctx, auth.RefreshRedisKey(oldHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	stored, err := p.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.RefreshHash != oldHash {
		return nil, ErrInvalidRefresh
	}

	raw, hashed, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	stored.RefreshHash = hashed
	stored.ExpiresAt = time.Now().Add(p.refreshTTL)
	if err := p.saveSession(ctx, sessionID, stored); err != nil {
		return nil, err
	}
	_ = p.redis.Del(ctx, auth.RefreshRedisKey(oldHash)).Err()

	kind := auth.KindSession
	if stored.Recovery {
		kind = auth.KindRecovery
	}
	access, expires, err := p.jwt.GenerateAccessToken(stored.UserID.String(), sessionID, stored.Email, kind)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:           sessionID,
		User:         User{ID: stored.UserID, Email: stored.Email, Username: stored.Username},
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    expires,
		Recovery:     stored.Recovery,
	}
	p.hub.Publish(ctx, Event{Type: EventTokenRefreshed, SessionID: sessionID, UserID: stored.UserID})
	return sess, nil
}

func (p *Local) UpdatePassword(ctx context.Context, sessionID, password string) error {
	if !auth.LongEnough(password) {
		return ErrWeakPassword
	}
	stored, err := p.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if stored == nil {
		return ErrSessionMissing
	}

	hash, err := auth.Hash(password)
	if err != nil {
		return err
	}
	if err := p.users.UpdatePassword(ctx, stored.UserID, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSessionMissing
		}
		return err
	}
	p.hub.Publish(ctx, Event{Type: EventUserUpdated, SessionID: sessionID, UserID: stored.UserID})
	return nil
}

// LookupEmailByUsername resolves the login identifier of a username.
func (p *Local) LookupEmailByUsername(ctx context.Context, username string) (string, error) {
	email, err := p.users.EmailByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrUsernameNotFound
		}
		return "", err
	}
	return email, nil
}

func (p *Local) createSession(ctx context.Context, user User, recovery bool) (*Session, error) {
	sessionID := uuid.NewString()
	raw, hashed, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}

	stored := &storedSession{
		UserID:      user.ID,
		Email:       user.Email,
		Username:    user.Username,
		RefreshHash: hashed,
		Recovery:    recovery,
		ExpiresAt:   time.Now().Add(p.refreshTTL),
	}
	if err := p.saveSession(ctx, sessionID, stored); err != nil {
		return nil, err
	}

	kind := auth.KindSession
	if recovery {
		kind = auth.KindRecovery
	}
	access, expires, err := p.jwt.GenerateAccessToken(user.ID.String(), sessionID, user.Email, kind)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:           sessionID,
		User:         user,
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresAt:    expires,
		Recovery:     recovery,
	}, nil
}

func (p *Local) saveSession(ctx context.Context, sessionID string, stored *storedSession) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, auth.SessionRedisKey(sessionID), payload, p.refreshTTL).Err(); err != nil {
		return err
	}
	return p.redis.Set(ctx, auth.RefreshRedisKey(stored.RefreshHash), sessionID, p.refreshTTL).Err()
}

func (p *Local) loadSession(ctx context.Context, sessionID string) (*storedSession, error) {
	if sessionID == "" {
		return nil, nil
	}
	raw, err := p.redis.Get(ctx, auth.SessionRedisKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}
