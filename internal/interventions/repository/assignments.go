package repository

import (
	"context"
	"errors"
	"fmt"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/google/uuid"
)

const (
	opCreateAssignment = "interventions.repository.create_assignment"
	opListAssignments  = "interventions.repository.list_assignments"
)

func (r *Repository) CreateAssignment(ctx context.Context, p AssignmentParams) (domain.Assignment, error) {
	if r == nil || r.pool == nil {
		return domain.Assignment{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreateAssignment)
	}
	if p.UserID == uuid.Nil {
		return domain.Assignment{}, apperr.Validation("userId is required").WithOp(opCreateAssignment)
	}

	var a domain.Assignment
	var role string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO intervention_assignments (intervention_id, user_id, role, is_primary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, intervention_id, user_id, role, is_primary, created_at`,
		p.InterventionID, p.UserID, string(p.Role), p.IsPrimary,
	).Scan(&a.ID, &a.InterventionID, &a.UserID, &role, &a.IsPrimary, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return domain.Assignment{}, apperr.Conflict("user already assigned with this role").WithOp(opCreateAssignment)
			case "23503":
				return domain.Assignment{}, apperr.Validation("invalid interventionId or userId").WithOp(opCreateAssignment)
			}
		}
		return domain.Assignment{}, apperr.Internal(fmt.Sprintf("create assignment failed: %v", err)).WithOp(opCreateAssignment)
	}
	a.Role = domain.AssignmentRole(role)
	return a, nil
}

func (r *Repository) ListAssignments(ctx context.Context, interventionID uuid.UUID) ([]domain.Assignment, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListAssignments)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, intervention_id, user_id, role, is_primary, created_at
		FROM intervention_assignments
		WHERE intervention_id = $1
		ORDER BY created_at ASC`,
		interventionID,
	)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list assignments failed: %v", err)).WithOp(opListAssignments)
	}
	defer rows.Close()

	var assignments []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		var role string
		if scanErr := rows.Scan(&a.ID, &a.InterventionID, &a.UserID, &role, &a.IsPrimary, &a.CreatedAt); scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan assignment failed: %v", scanErr)).WithOp(opListAssignments)
		}
		a.Role = domain.AssignmentRole(role)
		assignments = append(assignments, a)
	}
	if rows.Err() != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate assignments failed: %v", rows.Err())).WithOp(opListAssignments)
	}
	return assignments, nil
}
