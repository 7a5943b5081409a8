package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/accountd/config"
	"github.com/user/accountd/models"
	"github.com/user/accountd/repository"
)

// fakeUserStore is an in-memory UserStore keyed by email.
type fakeUserStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	createErr error
	creates   int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (f *fakeUserStore) Create(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.users[u.Email]; ok {
		return repository.ErrEmailTaken
	}
	f.creates++
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.Email] = &stored
	return nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[email]
	return ok, nil
}

type fakeAccessLogs struct {
	mu      sync.Mutex
	entries []models.AccessLogEntry
	err     error
}

func (f *fakeAccessLogs) Create(ctx context.Context, e *models.AccessLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	e.ID = fmt.Sprintf("log-%d", len(f.entries)+1)
	e.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, *e)
	return nil
}

// countingHasher records how many hashes and comparisons ran.
type countingHasher struct {
	*BcryptHasher
	hashes   int
	compares int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes++
	return h.BcryptHasher.Hash(password)
}

func (h *countingHasher) Compare(hash, password string) error {
	h.compares++
	return h.BcryptHasher.Compare(hash, password)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:           "test-secret-0123456789",
		AccessTokenDuration: 15 * time.Minute,
		RememberMeDuration:  720 * time.Hour,
		Issuer:              "accountd",
	}
}

func newTestHasher() *countingHasher {
	return &countingHasher{BcryptHasher: NewBcryptHasher(bcrypt.MinCost)}
}
