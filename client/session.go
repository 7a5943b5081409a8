package client

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/user/accountd/models"
)

// Status is the position of a Session in its lifecycle.
type Status string

const (
	StatusAnonymous     Status = "anonymous"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
)

// API is the subset of Client a Session drives.
type API interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, token string) (*models.PublicUser, error)
	UpdateMe(ctx context.Context, token string, update ProfileUpdate) (*models.PublicUser, error)
	AccessHistory(ctx context.Context, token string, limit int) ([]models.AccessLogEntry, error)
	UploadAvatar(ctx context.Context, token, filename string, image io.Reader) (*models.PublicUser, error)
}

// State is a snapshot of a Session.
type State struct {
	Status    Status
	User      *models.PublicUser
	Token     string
	ExpiresAt time.Time
	// Persisted reports whether Token is the one held by the TokenStore.
	Persisted bool
}

// Session holds the current access token and cached user.
//
// anonymous -> loading -> authenticated, and authenticated -> loading on
// Refresh. Any verification failure drops the token and returns to
// anonymous. Overlapping calls are not coalesced; the last response to
// arrive determines the final state.
type Session struct {
	api   API
	store TokenStore
	log   logrus.FieldLogger
	now   func() time.Time

	mu    sync.Mutex
	state State
}

// NewSession creates an anonymous session. store receives "remember me"
// tokens; other tokens are kept in memory only.
func NewSession(api API, store TokenStore, log logrus.FieldLogger) *Session {
	if store == nil {
		store = &MemoryTokenStore{}
	}
	return &Session{
		api:   api,
		store: store,
		log:   log,
		now:   time.Now,
		state: State{Status: StatusAnonymous},
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *Session) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// drop returns to anonymous. The store is cleared only when it holds the
// dropped token.
func (s *Session) drop() error {
	s.mu.Lock()
	persisted := s.state.Persisted
	s.state = State{Status: StatusAnonymous}
	s.mu.Unlock()
	if !persisted {
		return nil
	}
	return s.store.Clear()
}

// forget returns to anonymous and clears the store unconditionally.
func (s *Session) forget() error {
	s.set(State{Status: StatusAnonymous})
	return s.store.Clear()
}

// Init restores a persisted token, if any, and verifies it with Refresh.
func (s *Session) Init(ctx context.Context) error {
	tok, err := s.store.Load()
	if err != nil {
		s.log.WithError(err).Warn("discarding unreadable stored token")
		return s.forget()
	}
	if tok == nil {
		s.set(State{Status: StatusAnonymous})
		return nil
	}
	if tok.Expired(s.now()) {
		s.log.Debug("stored token expired")
		return s.forget()
	}

	s.set(State{Status: StatusLoading, Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, Persisted: true})
	return s.Refresh(ctx)
}

// UseToken adopts a token obtained elsewhere, e.g. from the environment,
// and verifies it. The token is not persisted, and rejecting it leaves the
// stored token alone.
func (s *Session) UseToken(ctx context.Context, token string) error {
	s.set(State{Status: StatusLoading, Token: token})
	return s.Refresh(ctx)
}

// Refresh re-fetches the current user. On any failure the token is dropped
// and the session becomes anonymous.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	token, expiresAt, persisted := s.state.Token, s.state.ExpiresAt, s.state.Persisted
	if token == "" {
		s.state = State{Status: StatusAnonymous}
		s.mu.Unlock()
		return ErrNoToken
	}
	s.state.Status = StatusLoading
	s.mu.Unlock()

	user, err := s.api.Me(ctx, token)
	if err != nil {
		if clearErr := s.drop(); clearErr != nil {
			s.log.WithError(clearErr).Warn("failed to clear stored token")
		}
		return err
	}

	s.set(State{Status: StatusAuthenticated, User: user, Token: token, ExpiresAt: expiresAt, Persisted: persisted})
	return nil
}

// Login signs in. A remember-me token is persisted; any other token lives in
// memory and replaces whatever was persisted before.
func (s *Session) Login(ctx context.Context, req LoginRequest) (*models.PublicUser, error) {
	s.mu.Lock()
	prev := s.state
	s.state.Status = StatusLoading
	s.mu.Unlock()

	resp, err := s.api.Login(ctx, req)
	if err != nil {
		s.set(prev)
		return nil, err
	}

	if req.RememberMe {
		err = s.store.Save(StoredToken{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt})
	} else {
		err = s.store.Clear()
	}
	if err != nil {
		s.log.WithError(err).Warn("failed to persist token")
	}

	user := resp.User
	s.set(State{
		Status:    StatusAuthenticated,
		User:      &user,
		Token:     resp.AccessToken,
		ExpiresAt: resp.ExpiresAt,
		Persisted: req.RememberMe && err == nil,
	})
	return &user, nil
}

// Logout discards the token. The server keeps no session state, so nothing
// is sent to it.
func (s *Session) Logout() error {
	return s.forget()
}

// authorized runs fn with the current token. A 401 ends the session.
func (s *Session) authorized(fn func(token string) error) error {
	token := s.token()
	if token == "" {
		return ErrNoToken
	}
	err := fn(token)
	if IsUnauthorized(err) {
		if clearErr := s.drop(); clearErr != nil {
			s.log.WithError(clearErr).Warn("failed to clear stored token")
		}
	}
	return err
}

func (s *Session) cacheUser(token string, user *models.PublicUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token == token {
		s.state.User = user
	}
}

// UpdateProfile patches the profile and refreshes the cached user.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (*models.PublicUser, error) {
	var user *models.PublicUser
	err := s.authorized(func(token string) error {
		u, err := s.api.UpdateMe(ctx, token, update)
		if err != nil {
			return err
		}
		s.cacheUser(token, u)
		user = u
		return nil
	})
	return user, err
}

// UploadAvatar replaces the avatar and refreshes the cached user.
func (s *Session) UploadAvatar(ctx context.Context, filename string, image io.Reader) (*models.PublicUser, error) {
	var user *models.PublicUser
	err := s.authorized(func(token string) error {
		u, err := s.api.UploadAvatar(ctx, token, filename, image)
		if err != nil {
			return err
		}
		s.cacheUser(token, u)
		user = u
		return nil
	})
	return user, err
}

// AccessHistory lists the signed-in user's recent logins.
func (s *Session) AccessHistory(ctx context.Context, limit int) ([]models.AccessLogEntry, error) {
	var entries []models.AccessLogEntry
	err := s.authorized(func(token string) error {
		var err error
		entries, err = s.api.AccessHistory(ctx, token, limit)
		return err
	})
	return entries, err
}
