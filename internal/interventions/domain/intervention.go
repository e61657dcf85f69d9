// Package domain provides core business rules for the interventions bounded
// context: the status/role/action vocabulary, the transition table, and the
// intervention aggregate.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is an intervention lifecycle status.
type Status string

const (
	StatusDemande              Status = "demande"
	StatusApprouvee            Status = "approuvee"
	StatusRejetee              Status = "rejetee"
	StatusDemandeDeDevis       Status = "demande_de_devis"
	StatusPlanification        Status = "planification"
	StatusPlanifiee            Status = "planifiee"
	StatusEnCours              Status = "en_cours"
	StatusClotureePrestataire  Status = "cloturee_par_prestataire"
	StatusClotureeLocataire    Status = "cloturee_par_locataire"
	StatusClotureeGestionnaire Status = "cloturee_par_gestionnaire"
	StatusAnnulee              Status = "annulee"
)

// Role is an actor role relative to an intervention.
type Role string

const (
	RoleGestionnaire Role = "gestionnaire"
	RolePrestataire  Role = "prestataire"
	RoleLocataire    Role = "locataire"
	RoleAdmin        Role = "admin"
)

// Action is a role-gated transition operation.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionRequestQuote    Action = "request_quote"
	ActionStartPlanning   Action = "start_planning"
	ActionConfirmSchedule Action = "confirm_schedule"
	ActionStartWork       Action = "start_work"
	ActionCompleteWork    Action = "complete_work"
	ActionValidateWork    Action = "validate_work"
	ActionFinalize        Action = "finalize"
	ActionCancel          Action = "cancel"
)

// Urgency classifies how quickly an intervention must be handled.
type Urgency string

const (
	UrgencyFaible  Urgency = "faible"
	UrgencyNormale Urgency = "normale"
	UrgencyHaute   Urgency = "haute"
	UrgencyUrgente Urgency = "urgente"
)

// MaxContestCount bounds the tenant contest loop for the whole intervention
// lifetime. The counter is cumulative and never reset.
const MaxContestCount = 3

// Metadata holds the free-form lifecycle bookkeeping stored alongside the
// intervention. ContestCount is monotonically non-decreasing.
type Metadata struct {
	ContestCount      int        `json:"contest_count"`
	LastContestReason string     `json:"last_contest_reason,omitempty"`
	LastContestDate   *time.Time `json:"last_contest_date,omitempty"`
	RejectReason      string     `json:"reject_reason,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
}

// Intervention is the aggregate root governed by the workflow engine.
type Intervention struct {
	ID          uuid.UUID  `json:"id"`
	TeamID      uuid.UUID  `json:"teamId"`
	LotRef      string     `json:"lotRef"`
	Type        string     `json:"type"`
	Urgency     Urgency    `json:"urgency"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedBy   uuid.UUID  `json:"createdBy"`

	ScheduledDate  *time.Time `json:"scheduledDate,omitempty"`
	SelectedSlotID *uuid.UUID `json:"selectedSlotId,omitempty"`

	TenantSatisfactionRating *int       `json:"tenantSatisfactionRating,omitempty"`
	TenantValidatedDate      *time.Time `json:"tenantValidatedDate,omitempty"`
	FinalCostCents           *int64     `json:"finalCostCents,omitempty"`

	Metadata Metadata `json:"metadata"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssignmentRole is the role a user holds on a specific intervention.
// Admins oversee every intervention and are never assigned explicitly.
type AssignmentRole string

const (
	AssignGestionnaire AssignmentRole = "gestionnaire"
	AssignPrestataire  AssignmentRole = "prestataire"
	AssignLocataire    AssignmentRole = "locataire"
)

// Assignment links a user to an intervention with a role.
// Unique per (intervention, user, role); added or removed, never mutated.
type Assignment struct {
	ID             uuid.UUID      `json:"id"`
	InterventionID uuid.UUID      `json:"interventionId"`
	UserID         uuid.UUID      `json:"userId"`
	Role           AssignmentRole `json:"role"`
	IsPrimary      bool           `json:"isPrimary"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// QuoteStatus is the lifecycle status of a provider quote.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteCancelled QuoteStatus = "cancelled"
)

// Quote is a priced proposal solicited from a provider.
// At most one quote per intervention may be accepted at any time.
type Quote struct {
	ID             uuid.UUID   `json:"id"`
	InterventionID uuid.UUID   `json:"interventionId"`
	ProviderID     uuid.UUID   `json:"providerId"`
	Status         QuoteStatus `json:"status"`
	AmountCents    *int64      `json:"amountCents,omitempty"`
	Deadline       *time.Time  `json:"deadline,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	CreatedBy      uuid.UUID   `json:"createdBy"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// SlotStatus is the lifecycle status of a proposed time slot.
type SlotStatus string

const (
	SlotProposed  SlotStatus = "proposed"
	SlotSelected  SlotStatus = "selected"
	SlotWithdrawn SlotStatus = "withdrawn"
)

// TimeSlot is a candidate execution window. Exactly one slot per intervention
// may end up selected; confirming one withdraws the others.
type TimeSlot struct {
	ID             uuid.UUID  `json:"id"`
	InterventionID uuid.UUID  `json:"interventionId"`
	SlotDate       time.Time  `json:"slotDate"`
	StartTime      string     `json:"startTime"`
	EndTime        string     `json:"endTime"`
	ProposedBy     uuid.UUID  `json:"proposedBy"`
	Status         SlotStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// SlotResponse records a participant's answer to a proposed slot.
type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slotId"`
	UserID    uuid.UUID `json:"userId"`
	UserRole  Role      `json:"userRole"`
	Response  string    `json:"response"` // "accept" | "decline"
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is one entry of the append-only intervention comment log.
type Comment struct {
	ID             uuid.UUID `json:"id"`
	InterventionID uuid.UUID `json:"interventionId"`
	AuthorID       uuid.UUID `json:"authorId"`
	AuthorRole     Role      `json:"authorRole"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ValidationDecision is the tenant's verdict on declared-complete work.
type ValidationDecision string

const (
	DecisionApproved  ValidationDecision = "approved"
	DecisionContested ValidationDecision = "contested"
)
