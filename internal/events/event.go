// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Intervention Domain Events
// =============================================================================

// InterventionRequested is published when a tenant files a new intervention
// request (the aggregate is born in status demande).
type InterventionRequested struct {
	BaseEvent
	InterventionID uuid.UUID      `json:"interventionId"`
	TeamID         uuid.UUID      `json:"teamId"`
	Type           string         `json:"type"`
	Urgency        domain.Urgency `json:"urgency"`
	CreatedBy      uuid.UUID      `json:"createdBy"`
}

func (e InterventionRequested) EventName() string { return "interventions.requested" }

// InterventionTransitioned is published after every successful status
// transition. The notification module consumes it to compute audiences.
// For requestQuote from demande_de_devis, OldStatus equals NewStatus.
type InterventionTransitioned struct {
	BaseEvent
	InterventionID uuid.UUID     `json:"interventionId"`
	TeamID         uuid.UUID     `json:"teamId"`
	OldStatus      domain.Status `json:"oldStatus"`
	NewStatus      domain.Status `json:"newStatus"`
	Action         domain.Action `json:"action"`
	ActorID        uuid.UUID     `json:"actorId"`
	ActorRole      domain.Role   `json:"actorRole"`

	// Action-specific context, role-appropriate for end users.
	Reason        string     `json:"reason,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	ProviderID    *uuid.UUID `json:"providerId,omitempty"`
	ContestCount  int        `json:"contestCount,omitempty"`
}

func (e InterventionTransitioned) EventName() string { return "interventions.transitioned" }

// InterventionReminderDue is published by the reminder sweep for an upcoming
// scheduled intervention. Window is "24h" or "1h".
type InterventionReminderDue struct {
	BaseEvent
	InterventionID uuid.UUID `json:"interventionId"`
	TeamID         uuid.UUID `json:"teamId"`
	CreatedBy      uuid.UUID `json:"createdBy"`
	Window         string    `json:"window"`
	ScheduledDate  time.Time `json:"scheduledDate"`
}

func (e InterventionReminderDue) EventName() string { return "interventions.reminder.due" }

// =============================================================================
// Notification Events
// =============================================================================

// NotificationOutboxDue signals that a claimed outbox record is due for
// delivery. Published by the scheduler worker, handled by the notification
// module which performs the actual channel send.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
	TeamID   uuid.UUID `json:"teamId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
