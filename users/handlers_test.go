package users

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/accountd/auth"
	"github.com/user/accountd/avatars"
	"github.com/user/accountd/config"
	"github.com/user/accountd/models"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func bytesReader(s string) io.Reader { return strings.NewReader(s) }

type testEnv struct {
	router   http.Handler
	token    string
	profiles *fakeProfiles
	history  *fakeHistory
	uploads  string
}

func newTestEnv(t *testing.T, maxAvatarBytes int64) *testEnv {
	t.Helper()
	logger := nullLogger()

	tokens := auth.NewTokenManager(config.AuthConfig{
		JWTSecret:           "users-test-secret-users-test-secret",
		AccessTokenDuration: time.Hour,
		RememberMeDuration:  24 * time.Hour,
		Issuer:              "accountd",
	})
	token, _, err := tokens.Issue(testUserID, "ada@example.com", false)
	require.NoError(t, err)

	uploads := t.TempDir()
	uploader := avatars.NewUploader(avatars.NewDiskStore(uploads, "/uploads"), maxAvatarBytes)

	env := &testEnv{
		token:    token,
		profiles: newFakeProfiles(testUser()),
		history:  &fakeHistory{},
		uploads:  uploads,
	}
	svc := NewService(env.profiles, env.history, uploader, testLimits(), logger)
	h := NewHandlers(svc, maxAvatarBytes, logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(tokens, logger))
		r.Get("/me", h.HandleGetMe())
		r.Patch("/me", h.HandlePatchMe())
		r.Get("/me/access-history", h.HandleAccessHistory())
		r.Post("/me/avatar", h.HandleUploadAvatar())
	})
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["user"]
}

func TestHandleGetMe(t *testing.T) {
	env := newTestEnv(t, 1024)

	rec := env.do(t, http.MethodGet, "/me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user := decodeUser(t, rec)
	assert.Equal(t, testUserID, user["id"])
	assert.Equal(t, "1815-12-10", user["birthDate"])
	assert.Nil(t, user["avatarUrl"])
	assert.NotContains(t, rec.Body.String(), "$2a$")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandleGetMe_RequiresToken(t *testing.T) {
	env := newTestEnv(t, 1024)
	env.token = "garbage"

	rec := env.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestHandleGetMe_DeletedUser(t *testing.T) {
	env := newTestEnv(t, 1024)
	delete(env.profiles.users, testUserID)

	rec := env.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePatchMe(t *testing.T) {
	env := newTestEnv(t, 1024)

	rec := env.do(t, http.MethodPatch, "/me", "application/json", strings.NewReader(`{"lastName":"King","birthDate":"1815-12-11"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user := decodeUser(t, rec)
	assert.Equal(t, "Ada", user["firstName"])
	assert.Equal(t, "King", user["lastName"])
	assert.Equal(t, "1815-12-11", user["birthDate"])
}

func TestHandlePatchMe_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty object", `{}`, "no changes provided"},
		{"email not editable", `{"email":"eve@example.com"}`, "is not allowed"},
		{"password not editable", `{"password":"Sup3rsecret"}`, "is not allowed"},
		{"future birth date", `{"birthDate":"2999-01-01"}`, "birthDate"},
		{"malformed date", `{"birthDate":"yesterday"}`, "birthDate"},
		{"empty name", `{"firstName":""}`, "firstName"},
		{"not json", `firstName=Ada`, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 1024)

			rec := env.do(t, http.MethodPatch, "/me", "application/json", strings.NewReader(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, env.profiles.patches)
		})
	}
}

func TestHandleAccessHistory(t *testing.T) {
	env := newTestEnv(t, 1024)
	ip := "203.0.113.7"
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		env.history.entries = append(env.history.entries, models.AccessLogEntry{
			ID:        string(rune('a' + i)),
			UserID:    testUserID,
			IPAddress: &ip,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	rec := env.do(t, http.MethodGet, "/me/access-history?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	assert.Equal(t, "c", body.Items[0]["id"])
	assert.Equal(t, ip, body.Items[0]["ipAddress"])
	assert.Nil(t, body.Items[0]["userAgent"])
	assert.NotContains(t, body.Items[0], "userId")
}

func TestHandleAccessHistory_LimitParsing(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?limit=abc", 5},
		{"?limit=0", 1},
		{"?limit=500", 50},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			env := newTestEnv(t, 1024)
			rec := env.do(t, http.MethodGet, "/me/access-history"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, env.history.lastLimit)
			assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
		})
	}
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUploadAvatar(t *testing.T) {
	env := newTestEnv(t, 1024)

	body, contentType := multipartBody(t, "file", pngBytes)
	rec := env.do(t, http.MethodPost, "/me/avatar", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user := decodeUser(t, rec)
	url, ok := user["avatarUrl"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(url, "/uploads/"+avatars.KeyPrefix))
	assert.True(t, strings.HasSuffix(url, ".png"))
}

func TestHandleUploadAvatar_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		field string
		data  []byte
		want  int
	}{
		{"missing file", "", nil, http.StatusBadRequest},
		{"wrong field name", "avatar", pngBytes, http.StatusBadRequest},
		{"not an image", "file", []byte("just some text"), http.StatusUnsupportedMediaType},
		{"too large", "file", append(append([]byte{}, pngBytes...), make([]byte, 2048)...), http.StatusRequestEntityTooLarge},
		{"body over the form limit", "file", append(append([]byte{}, pngBytes...), make([]byte, 200<<10)...), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 1024)

			body, contentType := multipartBody(t, tt.field, tt.data)
			rec := env.do(t, http.MethodPost, "/me/avatar", contentType, body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			u, _ := env.profiles.GetByID(t.Context(), testUserID)
			assert.Nil(t, u.AvatarURL)
		})
	}
}
