package users

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/user/accountd/apperror"
	"github.com/user/accountd/models"
	"github.com/user/accountd/repository"
)

// ProfileStore is the user persistence the service needs.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*models.User, error)
}

// AccessHistoryReader lists recent access-log entries.
type AccessHistoryReader interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error)
}

// AvatarSaver stores an uploaded avatar and returns its public URL.
type AvatarSaver interface {
	Save(ctx context.Context, r io.Reader) (string, error)
}

// HistoryLimits bounds the access history page size.
type HistoryLimits struct {
	Default int
	Max     int
}

// Service implements the /me operations.
type Service struct {
	users   ProfileStore
	history AccessHistoryReader
	avatars AvatarSaver
	limits  HistoryLimits
	log     logrus.FieldLogger
}

// NewService creates a users Service.
func NewService(users ProfileStore, history AccessHistoryReader, avatars AvatarSaver, limits HistoryLimits, log logrus.FieldLogger) *Service {
	return &Service{
		users:   users,
		history: history,
		avatars: avatars,
		limits:  limits,
		log:     log,
	}
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NewNotFoundError("user not found", nil)
	}
	return apperror.NewDatabaseError(message, err)
}

// GetProfile returns the user with id.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "failed to get user profile")
	}
	return user, nil
}

// UpdateProfile applies a validated patch. An empty patch is rejected.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	patch, err := toPatch(req)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, apperror.NewValidationError("no changes provided", nil)
	}

	user, err := s.users.UpdateProfile(ctx, userID, patch)
	if err != nil {
		return nil, notFoundOr(err, "failed to update user profile")
	}
	s.log.WithField("user_id", userID).Info("profile updated")
	return user, nil
}

func toPatch(req UpdateProfileRequest) (models.ProfilePatch, error) {
	var patch models.ProfilePatch
	var fields []apperror.FieldError

	trimmed := func(field string, v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		if t == "" {
			fields = append(fields, apperror.FieldError{Field: field, Message: "must not be blank"})
			return nil
		}
		return &t
	}
	patch.FirstName = trimmed("firstName", req.FirstName)
	patch.LastName = trimmed("lastName", req.LastName)

	if req.BirthDate != nil {
		d, err := time.Parse(models.DateLayout, *req.BirthDate)
		if err != nil {
			fields = append(fields, apperror.FieldError{Field: "birthDate", Message: "must be a date in YYYY-MM-DD format"})
		} else {
			patch.BirthDate = &d
		}
	}

	if len(fields) > 0 {
		return models.ProfilePatch{}, apperror.NewValidationError("validation failed", fields)
	}
	return patch, nil
}

// UploadAvatar stores the image and points the user's avatar at it.
func (s *Service) UploadAvatar(ctx context.Context, userID string, file io.Reader) (*models.User, error) {
	// Fail before storing anything for a user that no longer exists.
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}

	url, err := s.avatars.Save(ctx, file)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return nil, notFoundOr(err, "failed to update avatar")
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "avatar_url": url}).Info("avatar updated")
	return user, nil
}

// ClampLimit parses a caller-supplied limit. Missing or malformed values use
// the default; everything else is clamped to [1, Max].
func (l HistoryLimits) ClampLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = l.Default
	}
	if n < 1 {
		n = 1
	}
	if n > l.Max {
		n = l.Max
	}
	return n
}

// AccessHistory returns the most recent access-log entries, newest first.
func (s *Service) AccessHistory(ctx context.Context, userID, rawLimit string) ([]models.AccessLogEntry, error) {
	limit := s.limits.ClampLimit(rawLimit)

	entries, err := s.history.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load access history", err)
	}
	if entries == nil {
		entries = []models.AccessLogEntry{}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
