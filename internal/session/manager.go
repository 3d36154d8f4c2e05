package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nfaportal/internal/client"
	"nfaportal/internal/model"
)

// ErrNoSession means the caller presented no usable token.
var ErrNoSession = errors.New("no active session")

// Authenticator is the slice of the backend used for identity.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (client.TokenResponse, error)
	Me(ctx context.Context, token string) (model.User, error)
}

// Repository persists sessions across restarts.
type Repository interface {
	Save(ctx context.Context, s *model.Session) error
	FindByTokenKey(ctx context.Context, key string) (*model.Session, error)
	DeleteByTokenKey(ctx context.Context, key string) error
	List(ctx context.Context) ([]model.Session, error)
}

// Session is a signed-in user with the token their backend calls are made under.
type Session struct {
	Token       string
	User        model.User
	ValidatedAt time.Time
}

// Key is the session's lookup key.
func (s *Session) Key() string {
	return TokenKey(s.Token)
}

// ExpiryFunc is called after a session was dropped because the backend no
// longer accepts its token.
type ExpiryFunc func(s Session)

// Config tunes the background revalidation.
type Config struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// Manager owns the session lifecycle: login sets a session, logout or a 401
// clears it, and a timer revalidates every live session.
type Manager struct {
	mu       sync.RWMutex
	auth     Authenticator
	repo     Repository
	sealer   *Sealer
	sessions map[string]*Session
	onExpire []ExpiryFunc
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewManager creates a Manager. repo may be nil for an in-memory only setup.
func NewManager(auth Authenticator, repo Repository, sealer *Sealer, cfg Config, log zerolog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Minute
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	return &Manager{
		auth:     auth,
		repo:     repo,
		sealer:   sealer,
		sessions: make(map[string]*Session),
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// OnExpire registers fn to run whenever a session is dropped by revalidation
// or by a rejected token.
func (m *Manager) OnExpire(fn ExpiryFunc) {
	m.mu.Lock()
	m.onExpire = append(m.onExpire, fn)
	m.mu.Unlock()
}

// Login authenticates against the backend and opens a session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	tok, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	bearer := tok.Bearer()
	user, err := m.auth.Me(ctx, bearer)
	if err != nil {
		return nil, err
	}

	s := &Session{Token: bearer, User: user, ValidatedAt: m.now()}
	m.store(ctx, s)
	m.log.Info().Int("user_id", user.ID).Str("username", user.Username).Msg("user signed in")
	return s, nil
}

// Resolve returns the session for token, adopting tokens obtained elsewhere by
// asking the backend who they belong to.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	key := TokenKey(token)

	if expired(token, m.now()) {
		m.drop(ctx, key)
		return nil, fmt.Errorf("%w: token expired", client.ErrAuth)
	}

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	if s := m.restore(ctx, key); s != nil {
		return s, nil
	}

	user, err := m.auth.Me(ctx, token)
	if err != nil {
		return nil, err
	}
	s = &Session{Token: token, User: user, ValidatedAt: m.now()}
	m.store(ctx, s)
	return s, nil
}

// Logout ends the session for token. Unknown tokens are ignored. The
// in-memory session survives when the persisted row cannot be removed.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if err := m.Revoke(ctx, token); err != nil {
		return err
	}
	m.Forget(token)
	return nil
}

// Revoke deletes the persisted session for token. It runs inside the caller's
// transaction when ctx carries one; the live session stays until Forget.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" || m.repo == nil {
		return nil
	}
	if err := m.repo.DeleteByTokenKey(ctx, TokenKey(token)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Forget drops the live session for token without running expiry hooks.
func (m *Manager) Forget(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	delete(m.sessions, TokenKey(token))
	m.mu.Unlock()
}

// Expire drops the session for token after the backend rejected it.
func (m *Manager) Expire(ctx context.Context, token string) {
	if token == "" {
		return
	}
	m.drop(ctx, TokenKey(token))
}

// Active returns a snapshot of live sessions.
func (m *Manager) Active() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

// Revalidate asks the backend about every live session. Rejected tokens are
// dropped; transport failures keep the session until the next round.
func (m *Manager) Revalidate(ctx context.Context) {
	for _, s := range m.Active() {
		user, err := m.auth.Me(ctx, s.Token)
		switch {
		case err == nil:
			m.mu.Lock()
			live, ok := m.sessions[s.Key()]
			if ok {
				live.User = user
				live.ValidatedAt = m.now()
				s = *live
			}
			m.mu.Unlock()
			if ok {
				m.persist(ctx, &s)
			}
		case errors.Is(err, client.ErrAuth):
			m.log.Info().Int("user_id", s.User.ID).Msg("session rejected by backend")
			m.drop(ctx, s.Key())
		default:
			m.log.Warn().Err(err).Int("user_id", s.User.ID).Msg("session revalidation failed")
		}
	}
}

// Run loads persisted sessions, then revalidates on a fixed interval until
// ctx is done.
func (m *Manager) Run(ctx context.Context) {
	m.loadPersisted(ctx)

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.InitialDelay):
	}
	m.Revalidate(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Revalidate(ctx)
		}
	}
}

func (m *Manager) store(ctx context.Context, s *Session) {
	m.mu.Lock()
	m.sessions[s.Key()] = s
	m.mu.Unlock()
	m.persist(ctx, s)
}

// persist writes the sealed token with the cached user so a restart restores
// both.
func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.repo == nil || m.sealer == nil {
		return
	}
	sealed, err := m.sealer.Seal(s.Token)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to seal session token")
		return
	}
	rec := &model.Session{
		TokenKey:    s.Key(),
		SealedToken: sealed,
		UserID:      s.User.ID,
		UserName:    s.User.Name,
		Username:    s.User.Username,
		Email:       s.User.Email,
		RoleCodes:   s.User.Role,
		ValidatedAt: s.ValidatedAt,
	}
	if err := m.repo.Save(ctx, rec); err != nil {
		m.log.Warn().Err(err).Int("user_id", s.User.ID).Msg("failed to persist session")
	}
}

func (m *Manager) restore(ctx context.Context, key string) *Session {
	if m.repo == nil || m.sealer == nil {
		return nil
	}
	rec, err := m.repo.FindByTokenKey(ctx, key)
	if err != nil || rec == nil {
		return nil
	}
	token, err := m.sealer.Open(rec.SealedToken)
	if err != nil {
		m.log.Warn().Err(err).Int("user_id", rec.UserID).Msg("discarding unreadable persisted session")
		_ = m.repo.DeleteByTokenKey(ctx, key)
		return nil
	}
	s := &Session{
		Token:       token,
		User:        rec.SessionUser(),
		ValidatedAt: rec.ValidatedAt,
	}
	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) loadPersisted(ctx context.Context) {
	if m.repo == nil || m.sealer == nil {
		return
	}
	records, err := m.repo.List(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to load persisted sessions")
		return
	}
	for _, rec := range records {
		m.restore(ctx, rec.TokenKey)
	}
	m.log.Info().Int("sessions", len(records)).Msg("persisted sessions loaded")
}

// drop removes a session the backend no longer accepts and runs the expiry hooks.
func (m *Manager) drop(ctx context.Context, key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	hooks := append([]ExpiryFunc(nil), m.onExpire...)
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.DeleteByTokenKey(ctx, key); err != nil {
			m.log.Warn().Err(err).Msg("failed to delete persisted session")
		}
	}
	if !ok {
		return
	}
	for _, fn := range hooks {
		fn(*s)
	}
}
