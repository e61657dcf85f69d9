package inapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gestimmo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate         = "notification.inapp.repository.create"
	opList           = "notification.inapp.repository.list"
	opCountUnread    = "notification.inapp.repository.count_unread"
	opMarkRead       = "notification.inapp.repository.mark_read"
	opMarkAllRead    = "notification.inapp.repository.mark_all_read"
	opDelete         = "notification.inapp.repository.delete"
	opExistsReminder = "notification.inapp.repository.exists_reminder"

	errRepoNotConfigured = "in-app notification repository not configured"
	errUserIDRequired    = "userId is required"
)

type Notification struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"userId"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	ResourceID   *uuid.UUID     `json:"resourceId,omitempty"`
	ResourceType *string        `json:"resourceType,omitempty"`
	Category     string         `json:"category"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	IsRead       bool           `json:"isRead"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type CreateParams struct {
	TeamID       uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType *string
	Category     string
	Metadata     map[string]any
}

type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if r == nil || r.pool == nil {
		return Notification{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.TeamID == uuid.Nil || p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation("teamId and userId are required").WithOp(opCreate)
	}
	if p.Title == "" || p.Content == "" {
		return Notification{}, apperr.Validation("title and content are required").WithOp(opCreate)
	}

	category := p.Category
	if category == "" {
		category = "info"
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return Notification{}, apperr.Internal(fmt.Sprintf("marshal metadata: %v", err)).WithOp(opCreate)
	}

	var n Notification
	var rawMetadata []byte
	err = r.pool.QueryRow(ctx, `
		INSERT INTO in_app_notifications
		(team_id, user_id, title, content, resource_id, resource_type, category, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, title, content, resource_id, resource_type, category, metadata, is_read, created_at
	`, p.TeamID, p.UserID, p.Title, p.Content, p.ResourceID, p.ResourceType, category, metadataBytes).Scan(
		&n.ID, &n.UserID, &n.Title, &n.Content, &n.ResourceID, &n.ResourceType, &n.Category, &rawMetadata, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return Notification{}, apperr.Validation("invalid teamId or userId").WithOp(opCreate)
			case "23505":
				// The unique reminder index rejected a duplicate window; a
				// concurrent sweep already delivered it.
				return Notification{}, apperr.Conflict("notification already delivered").WithOp(opCreate)
			}
		}
		return Notification{}, apperr.Internal(fmt.Sprintf("create in-app notification failed: %v", err)).WithOp(opCreate)
	}
	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &n.Metadata)
	}

	return n, nil
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if userID == uuid.Nil {
		return nil, 0, apperr.Validation(errUserIDRequired).WithOp(opList)
	}

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM in_app_notifications WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, content, resource_id, resource_type, category, metadata, is_read, created_at
		FROM in_app_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		var n Notification
		var rawMetadata []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.ResourceID, &n.ResourceType, &n.Category, &rawMetadata, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notification failed: %v", err)).WithOp(opList)
		}
		if len(rawMetadata) > 0 {
			_ = json.Unmarshal(rawMetadata, &n.Metadata)
		}
		items = append(items, n)
	}
	if rows.Err() != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rows.Err())).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}
	if userID == uuid.Nil {
		return 0, apperr.Validation(errUserIDRequired).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM in_app_notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread failed: %v", err)).WithOp(opCountUnread)
	}
	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE in_app_notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp(opMarkRead)
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE in_app_notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark all read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opDelete)
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM in_app_notifications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("delete notification failed: %v", err)).WithOp(opDelete)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found").WithOp(opDelete)
	}
	return nil
}

// ExistsReminder reports whether a reminder notification for the given
// resource and window was already created. The reminder sweep uses this as
// its dedup check so each window fires at most once per user.
func (r *Repository) ExistsReminder(ctx context.Context, userID, resourceID uuid.UUID, window string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, apperr.Internal(errRepoNotConfigured).WithOp(opExistsReminder)
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM in_app_notifications
			WHERE user_id = $1
			  AND resource_id = $2
			  AND category = 'reminder'
			  AND metadata->>'reminderType' = $3
		)
	`, userID, resourceID, window).Scan(&exists)
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("reminder dedup check failed: %v", err)).WithOp(opExistsReminder)
	}
	return exists, nil
}
