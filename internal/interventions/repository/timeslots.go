package repository

import (
	"context"
	"errors"
	"fmt"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	opCreateSlot  = "interventions.repository.create_slot"
	opGetSlot     = "interventions.repository.get_slot"
	opRespondSlot = "interventions.repository.respond_slot"
	opSelectSlot  = "interventions.repository.select_slot"
	opListSlots   = "interventions.repository.list_slots"
)

const slotColumns = `id, intervention_id, slot_date, start_time, end_time, proposed_by, status, created_at`

func (r *Repository) CreateSlot(ctx context.Context, p SlotParams) (domain.TimeSlot, error) {
	if r == nil || r.pool == nil {
		return domain.TimeSlot{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreateSlot)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO intervention_time_slots (intervention_id, slot_date, start_time, end_time, proposed_by, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+slotColumns,
		p.InterventionID, p.SlotDate, p.StartTime, p.EndTime, p.ProposedBy, string(domain.SlotProposed),
	)
	slot, err := scanSlot(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.TimeSlot{}, apperr.Validation("invalid interventionId").WithOp(opCreateSlot)
		}
		return domain.TimeSlot{}, apperr.Internal(fmt.Sprintf("create slot failed: %v", err)).WithOp(opCreateSlot)
	}
	return slot, nil
}

func (r *Repository) GetSlot(ctx context.Context, id uuid.UUID) (domain.TimeSlot, error) {
	if r == nil || r.pool == nil {
		return domain.TimeSlot{}, apperr.Internal(errRepoNotConfigured).WithOp(opGetSlot)
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM intervention_time_slots WHERE id = $1`, id)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TimeSlot{}, apperr.NotFound("time slot not found").WithOp(opGetSlot)
		}
		return domain.TimeSlot{}, apperr.Internal(fmt.Sprintf("get slot failed: %v", err)).WithOp(opGetSlot)
	}
	return slot, nil
}

// RespondSlot records (or replaces) a participant's accept/decline answer.
func (r *Repository) RespondSlot(ctx context.Context, p SlotResponseParams) (domain.SlotResponse, error) {
	if r == nil || r.pool == nil {
		return domain.SlotResponse{}, apperr.Internal(errRepoNotConfigured).WithOp(opRespondSlot)
	}

	var resp domain.SlotResponse
	var role string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO intervention_slot_responses (slot_id, user_id, user_role, response)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slot_id, user_id) DO UPDATE SET response = EXCLUDED.response
		RETURNING id, slot_id, user_id, user_role, response, created_at`,
		p.SlotID, p.UserID, string(p.UserRole), p.Response,
	).Scan(&resp.ID, &resp.SlotID, &resp.UserID, &role, &resp.Response, &resp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.SlotResponse{}, apperr.NotFound("time slot not found").WithOp(opRespondSlot)
		}
		return domain.SlotResponse{}, apperr.Internal(fmt.Sprintf("respond slot failed: %v", err)).WithOp(opRespondSlot)
	}
	resp.UserRole = domain.Role(role)
	return resp, nil
}

// SelectSlot marks the confirmed slot selected and withdraws every other
// still-proposed slot of the intervention in the same transaction. Withdrawn
// slots are kept, never deleted.
func (r *Repository) SelectSlot(ctx context.Context, interventionID, slotID uuid.UUID) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opSelectSlot)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Internal(fmt.Sprintf("begin select slot failed: %v", err)).WithOp(opSelectSlot)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE intervention_time_slots
		SET status = $3
		WHERE id = $1 AND intervention_id = $2 AND status = $4`,
		slotID, interventionID, string(domain.SlotSelected), string(domain.SlotProposed),
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("select slot failed: %v", err)).WithOp(opSelectSlot)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("time slot is no longer proposed").WithOp(opSelectSlot)
	}

	_, err = tx.Exec(ctx, `
		UPDATE intervention_time_slots
		SET status = $3
		WHERE intervention_id = $1 AND id <> $2 AND status = $4`,
		interventionID, slotID, string(domain.SlotWithdrawn), string(domain.SlotProposed),
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("withdraw slots failed: %v", err)).WithOp(opSelectSlot)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal(fmt.Sprintf("commit select slot failed: %v", err)).WithOp(opSelectSlot)
	}
	return nil
}

func (r *Repository) ListSlots(ctx context.Context, interventionID uuid.UUID) ([]domain.TimeSlot, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListSlots)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM intervention_time_slots
		WHERE intervention_id = $1
		ORDER BY slot_date ASC, start_time ASC`,
		interventionID,
	)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list slots failed: %v", err)).WithOp(opListSlots)
	}
	defer rows.Close()

	var slots []domain.TimeSlot
	for rows.Next() {
		slot, scanErr := scanSlot(rows)
		if scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan slot failed: %v", scanErr)).WithOp(opListSlots)
		}
		slots = append(slots, slot)
	}
	if rows.Err() != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate slots failed: %v", rows.Err())).WithOp(opListSlots)
	}
	return slots, nil
}

func scanSlot(row rowScanner) (domain.TimeSlot, error) {
	var s domain.TimeSlot
	var status string
	err := row.Scan(&s.ID, &s.InterventionID, &s.SlotDate, &s.StartTime, &s.EndTime, &s.ProposedBy, &status, &s.CreatedAt)
	if err != nil {
		return domain.TimeSlot{}, err
	}
	s.Status = domain.SlotStatus(status)
	return s, nil
}
