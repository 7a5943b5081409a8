// Package repository implements Postgres persistence for users and their
// access logs on top of pgx.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/user/accountd/db"
	"github.com/user/accountd/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when the unique email index rejects a write.
	ErrEmailTaken = errors.New("email already in use")
	// ErrNoChanges is returned for an empty profile patch.
	ErrNoChanges = errors.New("no changes provided")
)

const userColumns = "id, first_name, last_name, email, password_hash, birth_date, avatar_url, created_at, updated_at"

// UserRepository reads and writes the users table.
type UserRepository struct {
	db db.DBTX
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(conn db.DBTX) *UserRepository {
	return &UserRepository{db: conn}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.BirthDate,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Create inserts u and fills in its generated ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, birth_date, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.BirthDate, u.AvatarURL,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByEmail looks a user up by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// GetByID looks a user up by id. Malformed ids are reported as not found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// ExistsByEmail reports whether an account already uses email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// UpdateProfile applies the non-nil fields of patch and bumps updated_at.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.User, error) {
	if patch.IsEmpty() {
		return nil, ErrNoChanges
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var setClauses []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FirstName != nil {
		set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		set("last_name", *patch.LastName)
	}
	if patch.BirthDate != nil {
		set("birth_date", *patch.BirthDate)
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), userColumns)

	return scanUser(r.db.QueryRow(ctx, query, args...))
}

// UpdateAvatar points the user's avatar at url.
func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `UPDATE users SET avatar_url = $1, updated_at = now() WHERE id = $2 RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, url, id))
}
