// Package auth handles registration, login, access token issuance and the
// bearer-token guard for protected routes.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/accountd/apperror"
	"github.com/user/accountd/models"
	"github.com/user/accountd/repository"
	"github.com/user/accountd/validation"
)

// Column limits of access_logs.
const (
	maxIPAddressLen = 64
	maxUserAgentLen = 512
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// AccessLogWriter records successful logins.
type AccessLogWriter interface {
	Create(ctx context.Context, e *models.AccessLogEntry) error
}

// Service provides registration and login.
type Service struct {
	users  UserStore
	logs   AccessLogWriter
	hasher PasswordHasher
	tokens *TokenManager
	log    logrus.FieldLogger

	// dummyHash is compared against for unknown emails so they cost one
	// bcrypt comparison like any other login.
	dummyHash string
}

// NewService creates an auth Service.
func NewService(users UserStore, logs AccessLogWriter, hasher PasswordHasher, tokens *TokenManager, log logrus.FieldLogger) *Service {
	dummy, err := hasher.Hash("accountd-timing-equalizer")
	if err != nil {
		log.WithError(err).Warn("failed to precompute dummy password hash")
	}
	return &Service{
		users:     users,
		logs:      logs,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		dummyHash: dummy,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account. req must already be validated.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := NormalizeEmail(req.Email)

	birthDate, err := time.Parse(models.DateLayout, req.BirthDate)
	if err != nil {
		return nil, apperror.NewValidationError("validation failed", []apperror.FieldError{
			{Field: "birthDate", Message: "must be a date in YYYY-MM-DD format"},
		})
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to check email", err)
	}
	if exists {
		return nil, apperror.NewConflictError("email already in use", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperror.NewValidationError("validation failed", []apperror.FieldError{
				{Field: "password", Message: validation.PasswordTooLongMessage},
			})
		}
		return nil, apperror.NewInternalError("failed to process password", err)
	}

	avatarURL := req.AvatarURL
	if avatarURL != nil && strings.TrimSpace(*avatarURL) == "" {
		avatarURL = nil
	}

	user := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
		BirthDate:    birthDate,
		AvatarURL:    avatarURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.NewConflictError("email already in use", nil)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login verifies credentials, records the access and issues a token.
// Unknown emails and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, req LoginRequest, meta ClientMeta) (*LoginResult, error) {
	invalid := apperror.NewUnauthorizedError("invalid credentials", nil)

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Spend the same time as a real comparison.
			_ = s.hasher.Compare(s.dummyHash, req.Password)
			return nil, invalid
		}
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, invalid
		}
		return nil, apperror.NewInternalError("failed to verify password", err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, req.RememberMe)
	if err != nil {
		return nil, apperror.NewInternalError("failed to issue token", err)
	}

	entry := &models.AccessLogEntry{
		UserID:    user.ID,
		IPAddress: optional(meta.IPAddress, maxIPAddressLen),
		UserAgent: optional(meta.UserAgent, maxUserAgentLen),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, apperror.NewDatabaseError("failed to record access", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"remember_me": req.RememberMe,
	}).Info("user logged in")

	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// optional returns nil for empty values and truncates to max bytes on a rune boundary.
func optional(value string, max int) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(value) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(value[cut]) {
			cut--
		}
		value = value[:cut]
	}
	return &value
}
