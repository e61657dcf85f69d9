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
	opCreateQuote         = "interventions.repository.create_quote"
	opGetQuote            = "interventions.repository.get_quote"
	opCancelQuote         = "interventions.repository.cancel_quote"
	opCancelPendingQuotes = "interventions.repository.cancel_pending_quotes"
	opListQuotes          = "interventions.repository.list_quotes"
)

const quoteColumns = `id, intervention_id, provider_id, status, amount_cents, deadline, notes, created_by, created_at`

func (r *Repository) CreateQuote(ctx context.Context, p QuoteParams) (domain.Quote, error) {
	if r == nil || r.pool == nil {
		return domain.Quote{}, apperr.Internal(errRepoNotConfigured).WithOp(opCreateQuote)
	}
	if p.ProviderID == uuid.Nil {
		return domain.Quote{}, apperr.Validation("providerId is required").WithOp(opCreateQuote)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO intervention_quotes (intervention_id, provider_id, status, deadline, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+quoteColumns,
		p.InterventionID, p.ProviderID, string(domain.QuotePending), p.Deadline, p.Notes, p.CreatedBy,
	)
	quote, err := scanQuote(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Quote{}, apperr.Validation("invalid interventionId or providerId").WithOp(opCreateQuote)
		}
		return domain.Quote{}, apperr.Internal(fmt.Sprintf("create quote failed: %v", err)).WithOp(opCreateQuote)
	}
	return quote, nil
}

func (r *Repository) GetQuote(ctx context.Context, id uuid.UUID) (domain.Quote, error) {
	if r == nil || r.pool == nil {
		return domain.Quote{}, apperr.Internal(errRepoNotConfigured).WithOp(opGetQuote)
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM intervention_quotes WHERE id = $1`, id)
	quote, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, apperr.NotFound("quote not found").WithOp(opGetQuote)
		}
		return domain.Quote{}, apperr.Internal(fmt.Sprintf("get quote failed: %v", err)).WithOp(opGetQuote)
	}
	return quote, nil
}

// CancelQuote marks a pending quote cancelled. A quote in any other state
// yields a conflict; the intervention itself is never touched.
func (r *Repository) CancelQuote(ctx context.Context, id uuid.UUID) (domain.Quote, error) {
	if r == nil || r.pool == nil {
		return domain.Quote{}, apperr.Internal(errRepoNotConfigured).WithOp(opCancelQuote)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE intervention_quotes
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING `+quoteColumns,
		id, string(domain.QuoteCancelled), string(domain.QuotePending),
	)
	quote, err := scanQuote(row)
	if err == nil {
		return quote, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Quote{}, apperr.Internal(fmt.Sprintf("cancel quote failed: %v", err)).WithOp(opCancelQuote)
	}

	if _, getErr := r.GetQuote(ctx, id); getErr != nil {
		return domain.Quote{}, getErr
	}
	return domain.Quote{}, apperr.Conflict("quote is no longer pending").WithOp(opCancelQuote)
}

// CancelPendingQuotes cancels every still-pending quote of the intervention.
// Called when planning starts so no orphaned solicitations survive the phase.
func (r *Repository) CancelPendingQuotes(ctx context.Context, interventionID uuid.UUID) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCancelPendingQuotes)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE intervention_quotes
		SET status = $2
		WHERE intervention_id = $1 AND status = $3`,
		interventionID, string(domain.QuoteCancelled), string(domain.QuotePending),
	)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("cancel pending quotes failed: %v", err)).WithOp(opCancelPendingQuotes)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) ListQuotes(ctx context.Context, interventionID uuid.UUID) ([]domain.Quote, error) {
	if r == nil || r.pool == nil {
		return nil, apperr.Internal(errRepoNotConfigured).WithOp(opListQuotes)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM intervention_quotes
		WHERE intervention_id = $1
		ORDER BY created_at ASC`,
		interventionID,
	)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list quotes failed: %v", err)).WithOp(opListQuotes)
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		quote, scanErr := scanQuote(rows)
		if scanErr != nil {
			return nil, apperr.Internal(fmt.Sprintf("scan quote failed: %v", scanErr)).WithOp(opListQuotes)
		}
		quotes = append(quotes, quote)
	}
	if rows.Err() != nil {
		return nil, apperr.Internal(fmt.Sprintf("iterate quotes failed: %v", rows.Err())).WithOp(opListQuotes)
	}
	return quotes, nil
}

func scanQuote(row rowScanner) (domain.Quote, error) {
	var q domain.Quote
	var status string
	err := row.Scan(&q.ID, &q.InterventionID, &q.ProviderID, &status, &q.AmountCents, &q.Deadline, &q.Notes, &q.CreatedBy, &q.CreatedAt)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Status = domain.QuoteStatus(status)
	return q, nil
}
