package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateInterventionRequest is the request body for filing an intervention.
type CreateInterventionRequest struct {
	LotRef      string `json:"lotRef,omitempty" validate:"max=100"`
	Type        string `json:"type" validate:"required,min=1,max=100"`
	Urgency     string `json:"urgency" validate:"required,oneof=faible normale haute urgente"`
	Description string `json:"description" validate:"required,min=1,max=5000"`
}

// ListInterventionsRequest is the query parameters for listing interventions.
type ListInterventionsRequest struct {
	Status *string `form:"status"`
	Limit  int     `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int     `form:"offset" validate:"omitempty,min=0"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=2000"`
}

// CancelRequest carries the mandatory cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=2000"`
}

// RequestQuoteRequest solicits a quote from a provider.
type RequestQuoteRequest struct {
	ProviderID uuid.UUID  `json:"providerId" validate:"required"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
}

// ProposeSlotRequest proposes a candidate time slot.
type ProposeSlotRequest struct {
	SlotDate  time.Time `json:"slotDate" validate:"required"`
	StartTime string    `json:"startTime" validate:"required,len=5"`
	EndTime   string    `json:"endTime" validate:"required,len=5"`
}

// RespondSlotRequest records a participant's answer to a slot.
type RespondSlotRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline"`
}

// ConfirmScheduleRequest selects either a proposed slot or a direct window.
type ConfirmScheduleRequest struct {
	SlotID     *uuid.UUID `json:"slotId,omitempty"`
	DirectDate *time.Time `json:"directDate,omitempty"`
	StartTime  string     `json:"startTime,omitempty" validate:"omitempty,len=5"`
	EndTime    string     `json:"endTime,omitempty" validate:"omitempty,len=5"`
}

// CompleteWorkRequest carries the provider's optional completion report.
type CompleteWorkRequest struct {
	Report string `json:"report,omitempty" validate:"max=5000"`
}

// ValidateWorkRequest is the tenant's verdict on declared-complete work.
type ValidateWorkRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved contested"`
	Rating   *int   `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Reason   string `json:"reason,omitempty" validate:"max=2000"`
}

// FinalizeRequest closes the intervention with an optional final cost.
type FinalizeRequest struct {
	FinalCostCents *int64 `json:"finalCostCents,omitempty" validate:"omitempty,min=0"`
}

// AssignParticipantRequest links a user to the intervention with a role.
type AssignParticipantRequest struct {
	UserID    uuid.UUID `json:"userId" validate:"required"`
	Role      string    `json:"role" validate:"required,oneof=gestionnaire prestataire locataire"`
	IsPrimary bool      `json:"isPrimary"`
}

// ListResponse wraps a paginated intervention listing.
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}
