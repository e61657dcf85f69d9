package notification

import (
	"context"
	"fmt"

	"gestimmo_backend/internal/interventions/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recipient is a resolvable notification target.
type Recipient struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// AssignedRecipient is a recipient linked to an intervention with a role.
type AssignedRecipient struct {
	Recipient
	Role domain.AssignmentRole
}

// AudienceReader resolves the notification audiences of an intervention.
// Injected as an interface so module tests can fake the membership data.
type AudienceReader interface {
	// TeamGestionnaires returns every gestionnaire of the team.
	TeamGestionnaires(ctx context.Context, teamID uuid.UUID) ([]Recipient, error)
	// AssignedParticipants returns the users assigned to the intervention.
	AssignedParticipants(ctx context.Context, interventionID uuid.UUID) ([]AssignedRecipient, error)
}

type pgAudienceReader struct {
	pool *pgxpool.Pool
}

// NewAudienceReader builds the database-backed audience reader.
func NewAudienceReader(pool *pgxpool.Pool) AudienceReader {
	return &pgAudienceReader{pool: pool}
}

func (r *pgAudienceReader) TeamGestionnaires(ctx context.Context, teamID uuid.UUID) ([]Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.full_name
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1 AND tm.role = 'gestionnaire'
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team gestionnaires: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan gestionnaire: %w", err)
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *pgAudienceReader) AssignedParticipants(ctx context.Context, interventionID uuid.UUID) ([]AssignedRecipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.full_name, a.role
		FROM intervention_assignments a
		JOIN users u ON u.id = a.user_id
		WHERE a.intervention_id = $1
	`, interventionID)
	if err != nil {
		return nil, fmt.Errorf("list assigned participants: %w", err)
	}
	defer rows.Close()

	var recipients []AssignedRecipient
	for rows.Next() {
		var rec AssignedRecipient
		var role string
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.Name, &role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		rec.Role = domain.AssignmentRole(role)
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}
