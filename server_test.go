package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/accountd/auth"
	"github.com/user/accountd/avatars"
	"github.com/user/accountd/client"
	"github.com/user/accountd/config"
	"github.com/user/accountd/models"
	"github.com/user/accountd/repository"
	"github.com/user/accountd/users"
)

// memStore backs every repository interface with maps.
type memStore struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	entries []models.AccessLogEntry
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*models.User{}}
}

func (m *memStore) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.BirthDate != nil {
		u.BirthDate = *patch.BirthDate
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.AvatarURL = &url
	cp := *u
	return &cp, nil
}

type memAccessLogs struct{ store *memStore }

func (l memAccessLogs) Create(ctx context.Context, e *models.AccessLogEntry) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC().Add(time.Duration(len(l.store.entries)) * time.Millisecond)
	l.store.entries = append(l.store.entries, *e)
	return nil
}

func (l memAccessLogs) ListRecent(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	out := []models.AccessLogEntry{}
	for _, e := range l.store.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestServer(t *testing.T, health pinger) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()

	authCfg := config.AuthConfig{
		JWTSecret:           "server-test-secret-server-test-secret",
		AccessTokenDuration: 15 * time.Minute,
		RememberMeDuration:  720 * time.Hour,
		Issuer:              "accountd",
	}
	store := newMemStore()
	logs := memAccessLogs{store: store}
	tokens := auth.NewTokenManager(authCfg)
	authService := auth.NewService(store, logs, auth.NewBcryptHasher(bcrypt.MinCost), tokens, logger)

	disk, uploadDir, err := newAvatarStore(context.Background(), config.AvatarConfig{Storage: config.AvatarStorageDisk, UploadDir: t.TempDir()})
	require.NoError(t, err)
	uploader := avatars.NewUploader(disk, 1<<20)
	userService := users.NewService(store, logs, uploader, users.HistoryLimits{Default: 5, Max: 50}, logger)

	router := newRouter(routerDeps{
		log:       logger,
		server:    config.ServerConfig{CORSAllowedOrigins: []string{"*"}},
		tokens:    tokens,
		auth:      auth.NewHandlers(authService, logger),
		users:     users.NewHandlers(userService, uploader.MaxBytes(), logger),
		uploadDir: uploadDir,
		health:    health,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewAvatarStore_DiskServesUploadDir(t *testing.T) {
	dir := t.TempDir()
	store, uploadDir, err := newAvatarStore(context.Background(), config.AvatarConfig{Storage: config.AvatarStorageDisk, UploadDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &avatars.DiskStore{}, store)
	assert.Equal(t, dir, uploadDir)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, fakePinger{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newTestServer(t, fakePinger{err: errors.New("connection refused")})
	resp, err = http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	srv := newTestServer(t, fakePinger{})
	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not found", body["error"])
}

func TestSwaggerDocIsServed(t *testing.T) {
	srv := newTestServer(t, fakePinger{})
	resp, err := http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc["paths"], "/me/access-history")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, fakePinger{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/me"},
		{http.MethodPatch, "/me"},
		{http.MethodGet, "/me/access-history"},
		{http.MethodPost, "/me/avatar"},
	} {
		req, err := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, tc.method+" "+tc.path)
	}
}

func TestRecovererWritesJSON500(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, "boom", hook.AllEntries()[0].Data["panic"])
}

// TestAccountFlow drives the router through the Go client end to end.
func TestAccountFlow(t *testing.T) {
	srv := newTestServer(t, fakePinger{})
	ctx := context.Background()

	api, err := client.New(srv.URL)
	require.NoError(t, err)

	_, err = api.Register(ctx, client.RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "Ada@Example.com",
		Password: "Analyt1cal", ConfirmPassword: "Analyt1cal", BirthDate: "1815-12-10",
	})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	session := client.NewSession(api, client.NewFileTokenStore(tokenFile), logger)

	_, err = session.Login(ctx, client.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.True(t, client.IsUnauthorized(err))

	user, err := session.Login(ctx, client.LoginRequest{Email: "ada@example.com", Password: "Analyt1cal", RememberMe: true})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Nil(t, user.AvatarURL)

	// A new process restores the remembered token.
	restored := client.NewSession(api, client.NewFileTokenStore(tokenFile), logger)
	require.NoError(t, restored.Init(ctx))
	require.Equal(t, client.StatusAuthenticated, restored.State().Status)
	assert.WithinDuration(t, time.Now().Add(720*time.Hour), restored.State().ExpiresAt, time.Minute)

	last := "King"
	updated, err := restored.UpdateProfile(ctx, client.ProfileUpdate{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "King", updated.LastName)
	assert.Equal(t, "Ada", updated.FirstName)

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	withAvatar, err := restored.UploadAvatar(ctx, "me.png", bytes.NewReader(png))
	require.NoError(t, err)
	require.NotNil(t, withAvatar.AvatarURL)

	resp, err := http.Get(api.ResolveAssetURL(*withAvatar.AvatarURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	history, err := restored.AccessHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the successful login is recorded")

	require.NoError(t, restored.Logout())
	_, err = os.Stat(tokenFile)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadsDirectoryIsNotListed(t *testing.T) {
	srv := newTestServer(t, fakePinger{})
	resp, err := http.Get(srv.URL + "/uploads/avatars/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvatarRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, fakePinger{})
	ctx := context.Background()
	api, err := client.New(srv.URL)
	require.NoError(t, err)

	_, err = api.Register(ctx, client.RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Password: "Analyt1cal", ConfirmPassword: "Analyt1cal", BirthDate: "1815-12-10",
	})
	require.NoError(t, err)
	login, err := api.Login(ctx, client.LoginRequest{Email: "ada@example.com", Password: "Analyt1cal"})
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "evil.html")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("<html><script>alert(1)</script></html>"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/me/avatar", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))
}
