package repository

import (
	"context"
	"time"

	"gestimmo_backend/internal/interventions/domain"

	"github.com/google/uuid"
)

// CreateParams contains the data for creating a new intervention request.
type CreateParams struct {
	TeamID      uuid.UUID
	LotRef      string
	Type        string
	Urgency     domain.Urgency
	Description string
	CreatedBy   uuid.UUID
}

// ListFilter narrows intervention listings.
type ListFilter struct {
	Status *domain.Status
	Limit  int
	Offset int
}

// StatusUpdate describes a conditional status write. The write only applies
// when the stored status still equals ExpectedStatus; a stale expectation
// yields a conflict and no mutation. Optional fields are written only when
// non-nil.
type StatusUpdate struct {
	ID             uuid.UUID
	TeamID         uuid.UUID
	ExpectedStatus domain.Status
	NewStatus      domain.Status

	ScheduledDate       *time.Time
	SelectedSlotID      *uuid.UUID
	TenantValidatedDate *time.Time
	SatisfactionRating  *int
	FinalCostCents      *int64
	Metadata            *domain.Metadata
}

// QuoteParams contains the data for soliciting a provider quote.
type QuoteParams struct {
	InterventionID uuid.UUID
	ProviderID     uuid.UUID
	Deadline       *time.Time
	Notes          string
	CreatedBy      uuid.UUID
}

// SlotParams contains the data for proposing a time slot.
type SlotParams struct {
	InterventionID uuid.UUID
	SlotDate       time.Time
	StartTime      string
	EndTime        string
	ProposedBy     uuid.UUID
}

// SlotResponseParams records a participant's answer to a slot.
type SlotResponseParams struct {
	SlotID   uuid.UUID
	UserID   uuid.UUID
	UserRole domain.Role
	Response string
}

// AssignmentParams links a user to an intervention with a role.
type AssignmentParams struct {
	InterventionID uuid.UUID
	UserID         uuid.UUID
	Role           domain.AssignmentRole
	IsPrimary      bool
}

// Store is the persistence contract consumed by the interventions service.
type Store interface {
	Create(ctx context.Context, p CreateParams) (domain.Intervention, error)
	GetByID(ctx context.Context, teamID, id uuid.UUID) (domain.Intervention, error)
	List(ctx context.Context, teamID uuid.UUID, f ListFilter) ([]domain.Intervention, int, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (domain.Intervention, error)

	AppendComment(ctx context.Context, interventionID, authorID uuid.UUID, role domain.Role, message string) error
	ListComments(ctx context.Context, interventionID uuid.UUID) ([]domain.Comment, error)

	CreateQuote(ctx context.Context, p QuoteParams) (domain.Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (domain.Quote, error)
	CancelQuote(ctx context.Context, id uuid.UUID) (domain.Quote, error)
	CancelPendingQuotes(ctx context.Context, interventionID uuid.UUID) (int, error)
	ListQuotes(ctx context.Context, interventionID uuid.UUID) ([]domain.Quote, error)

	CreateSlot(ctx context.Context, p SlotParams) (domain.TimeSlot, error)
	GetSlot(ctx context.Context, id uuid.UUID) (domain.TimeSlot, error)
	RespondSlot(ctx context.Context, p SlotResponseParams) (domain.SlotResponse, error)
	SelectSlot(ctx context.Context, interventionID, slotID uuid.UUID) error
	ListSlots(ctx context.Context, interventionID uuid.UUID) ([]domain.TimeSlot, error)

	CreateAssignment(ctx context.Context, p AssignmentParams) (domain.Assignment, error)
	ListAssignments(ctx context.Context, interventionID uuid.UUID) ([]domain.Assignment, error)
}
