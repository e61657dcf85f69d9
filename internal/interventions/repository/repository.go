// Package repository persists the interventions bounded context with raw SQL
// over pgx. Status writes are conditional on the expected current status so
// concurrent transitions on the same intervention linearize.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate        = "interventions.repository.create"
	opGetByID       = "interventions.repository.get_by_id"
	opList          = "interventions.repository.list"
	opUpdateStatus  = "interventions.repository.update_status"
	opAppendComment = "interventions.repository.append_comment"
	opListComments  = "interventions.repository.list_comments"

	errRepoNotConfigured = "interventions repository not configured"
)

const interventionColumns = `id, team_id, lot_ref, type, urgency, description, status, created_by,
	scheduled_date, selected_slot_id, tenant_satisfaction_rating, tenant_validated_date,
	final_cost_cents, metadata, created_at, updated_at`

// Repository is the pgx-backed Store implementation.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository on the given pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Compile-time check that Repository implements Store.
var _ Store = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, p CreateParams) (domain.Intervention, error) {
	if r == nil || r.pool == nil {
		return domain.Intervention{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.TeamID == uuid.Nil || p.CreatedBy == uuid.Nil {
		return domain.Intervention{}, apperr.Validation("teamId and createdBy are required").WithOp(opCreate)
	}

	metadata, err := json.Marshal(domain.Metadata{})
	if err != nil {
		return domain.Intervention{}, apperr.Internal(fmt.Sprintf("marshal metadata: %v", err)).WithOp(opCreate)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO interventions (team_id, lot_ref, type, urgency, description, status, created_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+interventionColumns,
		p.TeamID, p.LotRef, p.Type, string(p.Urgency), p.Description, string(domain.StatusDemande), p.CreatedBy, metadata,
	)
	intervention, err := scanIntervention(row)
	if err != nil {
		return domain.Intervention{}, apperr.Internal(fmt.Sprintf("create intervention failed: %v", err)).WithOp(opCreate)
	}
	return intervention, nil
}

func (r *Repository) GetByID(ctx context.Context, teamID, id uuid.UUID) (domain.Intervention, error) {
	if r == nil || r.pool == nil {
		return domain.Intervention{}, apperr.Internal(errRepoNotConfigured).WithOp(opGetByID)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT `+interventionColumns+`
		FROM interventions
		WHERE id = $1 AND team_id = $2`,
		id, teamID,
	)
	intervention, err := scanIntervention(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Intervention{}, apperr.NotFound("intervention not found").WithOp(opGetByID)
		}
		return domain.Intervention{}, apperr.Internal(fmt.Sprintf("get intervention failed: %v", err)).WithOp(opGetByID)
	}
	return intervention, nil
}

func (r *Repository) List(ctx context.Context, teamID uuid.UUID, f ListFilter) ([]domain.Intervention, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	var status *string
	if f.Status != nil {
		value := string(*f.Status)
		status = &value
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM interventions
		WHERE team_id = $1 AND ($2::text IS NULL OR status = $2)`,
		teamID, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count interventions failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+interventionColumns+`
		FROM interventions
		WHERE team_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		teamID, status, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list interventions failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]domain.Intervention, 0, f.Limit)
	for rows.Next() {
		intervention, scanErr := scanIntervention(rows)
		if scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan intervention failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, intervention)
	}
	if rows.Err() != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate interventions failed: %v", rows.Err())).WithOp(opList)
	}

	return items, total, nil
}

// UpdateStatus applies the transition as a single conditional write. When the
// stored status no longer matches ExpectedStatus the update touches zero rows
// and a ConflictError is returned; nothing is partially applied.
func (r *Repository) UpdateStatus(ctx context.Context, u StatusUpdate) (domain.Intervention, error) {
	if r == nil || r.pool == nil {
		return domain.Intervention{}, apperr.Internal(errRepoNotConfigured).WithOp(opUpdateStatus)
	}

	var metadata []byte
	if u.Metadata != nil {
		encoded, err := json.Marshal(u.Metadata)
		if err != nil {
			return domain.Intervention{}, apperr.Internal(fmt.Sprintf("marshal metadata: %v", err)).WithOp(opUpdateStatus)
		}
		metadata = encoded
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE interventions SET
			status = $4,
			scheduled_date = COALESCE($5, scheduled_date),
			selected_slot_id = COALESCE($6, selected_slot_id),
			tenant_validated_date = COALESCE($7, tenant_validated_date),
			tenant_satisfaction_rating = COALESCE($8, tenant_satisfaction_rating),
			final_cost_cents = COALESCE($9, final_cost_cents),
			metadata = COALESCE($10, metadata),
			updated_at = now()
		WHERE id = $1 AND team_id = $2 AND status = $3
		RETURNING `+interventionColumns,
		u.ID, u.TeamID, string(u.ExpectedStatus), string(u.NewStatus),
		u.ScheduledDate, u.SelectedSlotID, u.TenantValidatedDate,
		u.SatisfactionRating, u.FinalCostCents, metadata,
	)
	intervention, err := scanIntervention(row)
	if err == nil {
		return intervention, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Intervention{}, apperr.Internal(fmt.Sprintf("update status failed: %v", err)).WithOp(opUpdateStatus)
	}

	// Zero rows: distinguish a missing intervention from a stale status.
	var current string
	err = r.pool.QueryRow(ctx,
		`SELECT status FROM interventions WHERE id = $1 AND team_id = $2`,
		u.ID, u.TeamID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Intervention{}, apperr.NotFound("intervention not found").WithOp(opUpdateStatus)
	}
	if err != nil {
		return domain.Intervention{}, apperr.Internal(fmt.Sprintf("read current status failed: %v", err)).WithOp(opUpdateStatus)
	}
	return domain.Intervention{}, apperr.Conflict(
		fmt.Sprintf("intervention status changed concurrently (now %s)", current),
	).WithOp(opUpdateStatus)
}

func (r *Repository) AppendComment(ctx context.Context, interventionID, authorID uuid.UUID, role domain.Role, message string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opAppendComment)
	}
	if message == "" {
		return apperr.Validation("message is required").WithOp(opAppendComment)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO intervention_comments (intervention_id, author_id, author_role, message)
		VALUES ($1, $2, $3, $4)`,
		interventionID, authorID, string(role), message,
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("append comment failed: %v", err)).WithOp(opAppendComment)
	}
	return nil
}

func (r *Repository) ListComments(ctx context.Context, interventionID uuid.UUID) ([]domain.Comment, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListComments)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, intervention_id, author_id, author_role, message, created_at
		FROM intervention_comments
		WHERE intervention_id = $1
		ORDER BY created_at ASC`,
		interventionID,
	)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list comments failed: %v", err)).WithOp(opListComments)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var role string
		if scanErr := rows.Scan(&c.ID, &c.InterventionID, &c.AuthorID, &role, &c.Message, &c.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan comment failed: %v", scanErr)).WithOp(opListComments)
		}
		c.AuthorRole = domain.Role(role)
		comments = append(comments, c)
	}
	if rows.Err() != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate comments failed: %v", rows.Err())).WithOp(opListComments)
	}
	return comments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntervention(row rowScanner) (domain.Intervention, error) {
	var i domain.Intervention
	var status, urgency string
	var metadata []byte

	err := row.Scan(
		&i.ID, &i.TeamID, &i.LotRef, &i.Type, &urgency, &i.Description, &status, &i.CreatedBy,
		&i.ScheduledDate, &i.SelectedSlotID, &i.TenantSatisfactionRating, &i.TenantValidatedDate,
		&i.FinalCostCents, &metadata, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return domain.Intervention{}, err
	}

	i.Status = domain.Status(status)
	i.Urgency = domain.Urgency(urgency)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &i.Metadata); err != nil {
			return domain.Intervention{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return i, nil
}
