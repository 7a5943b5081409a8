// Package client is a Go client for the accountd HTTP API together with a
// session store that tracks the signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/accountd/models"
)

const defaultTimeout = 30 * time.Second

// ErrNoToken is returned by authenticated calls made without a token.
var ErrNoToken = errors.New("no access token")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    []FieldError
}

// FieldError describes a rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("accountd: %d %s", e.StatusCode, e.Message)
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return fmt.Sprintf("accountd: %d %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
	BirthDate       string  `json:"birthDate"`
	AvatarURL       *string `json:"avatarUrl,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string            `json:"accessToken"`
	TokenType   string            `json:"tokenType"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	User        models.PublicUser `json:"user"`
}

// ProfileUpdate is the body of PATCH /me. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	BirthDate *string `json:"birthDate,omitempty"`
}

type userEnvelope struct {
	User models.PublicUser `json:"user"`
}

type historyEnvelope struct {
	Items []models.AccessLogEntry `json:"items"`
}

type errorEnvelope struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

// Client talks to one accountd server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "accountd-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ResolveAssetURL turns a server-relative path such as an avatar URL into an
// absolute URL. Absolute URLs are returned unchanged.
func (c *Client) ResolveAssetURL(p string) string {
	if p == "" {
		return ""
	}
	ref, err := url.Parse(p)
	if err != nil || ref.IsAbs() {
		return p
	}
	base := *c.baseURL
	base.Path = strings.TrimRight(base.Path, "/") + "/"
	return base.ResolveReference(&url.URL{Path: strings.TrimLeft(ref.Path, "/"), RawQuery: ref.RawQuery}).String()
}

func (c *Client) endpoint(p string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + p
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, p string, query url.Values, token string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(p, query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, p string, query url.Values, token string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, p, query, token, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			apiErr.Message = env.Error
			apiErr.Details = env.Details
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.PublicUser, error) {
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", nil, "", req, &env); err != nil {
		return nil, err
	}
	return &env.User, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", nil, "", req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return &resp, nil
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*models.PublicUser, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, token, nil, &env); err != nil {
		return nil, err
	}
	return &env.User, nil
}

// UpdateMe applies a partial profile update.
func (c *Client) UpdateMe(ctx context.Context, token string, update ProfileUpdate) (*models.PublicUser, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodPatch, "/me", nil, token, update, &env); err != nil {
		return nil, err
	}
	return &env.User, nil
}

// AccessHistory lists recent logins, newest first. A limit of zero lets the
// server pick its default.
func (c *Client) AccessHistory(ctx context.Context, token string, limit int) ([]models.AccessLogEntry, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var env historyEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/me/access-history", query, token, nil, &env); err != nil {
		return nil, err
	}
	if env.Items == nil {
		env.Items = []models.AccessLogEntry{}
	}
	return env.Items, nil
}

// UploadAvatar sends an image as the "file" field of a multipart form.
func (c *Client) UploadAvatar(ctx context.Context, token, filename string, image io.Reader) (*models.PublicUser, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/me/avatar", nil, token, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var env userEnvelope
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	return &env.User, nil
}
