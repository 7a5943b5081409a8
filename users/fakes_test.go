package users

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/user/accountd/models"
	"github.com/user/accountd/repository"
)

type fakeProfiles struct {
	mu      sync.Mutex
	users   map[string]*models.User
	err     error
	patches []models.ProfilePatch
}

func newFakeProfiles(users ...*models.User) *fakeProfiles {
	f := &fakeProfiles{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeProfiles) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.patches = append(f.patches, patch)
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.BirthDate != nil {
		u.BirthDate = *patch.BirthDate
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (f *fakeProfiles) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.AvatarURL = &url
	cp := *u
	return &cp, nil
}

type fakeHistory struct {
	entries   []models.AccessLogEntry
	err       error
	lastLimit int
}

func (f *fakeHistory) ListRecent(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AccessLogEntry
	for _, e := range f.entries {
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

type fakeAvatars struct {
	saved [][]byte
	url   string
	err   error
}

func (f *fakeAvatars) Save(ctx context.Context, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	f.saved = append(f.saved, buf.Bytes())
	return f.url, nil
}

const testUserID = "3f2b8c4e-8a51-4a53-9d1c-1f6f0c9e2a10"

func testUser() *models.User {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.User{
		ID:           testUserID,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		BirthDate:    time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func testLimits() HistoryLimits {
	return HistoryLimits{Default: 5, Max: 50}
}

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}
