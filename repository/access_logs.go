package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/accountd/db"
	"github.com/user/accountd/models"
)

// AccessLogRepository appends and reads access_logs rows.
type AccessLogRepository struct {
	db db.DBTX
}

// NewAccessLogRepository creates an AccessLogRepository.
func NewAccessLogRepository(conn db.DBTX) *AccessLogRepository {
	return &AccessLogRepository{db: conn}
}

// Create appends e and fills in its ID and creation time.
func (r *AccessLogRepository) Create(ctx context.Context, e *models.AccessLogEntry) error {
	query := `
		INSERT INTO access_logs (user_id, ip_address, user_agent)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	if err := r.db.QueryRow(ctx, query, e.UserID, e.IPAddress, e.UserAgent).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecent returns at most limit entries for userID, newest first.
func (r *AccessLogRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.AccessLogEntry, error) {
	entries := make([]models.AccessLogEntry, 0, limit)
	if _, err := uuid.Parse(userID); err != nil {
		return entries, nil
	}

	query := `
		SELECT id, user_id, ip_address, user_agent, created_at
		FROM access_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.AccessLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan removes entries created before cutoff and reports how many were removed.
func (r *AccessLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM access_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
