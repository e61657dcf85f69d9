// Package service implements the intervention lifecycle workflow engine: the
// role-gated transition operations, the quote and scheduling sub-protocols,
// and the completion/contest/finalize loop. Every status write is a
// compare-and-set on the expected current status, so concurrent conflicting
// requests on the same intervention resolve to exactly one winner.
package service

import (
	"context"
	"fmt"

	"gestimmo_backend/internal/events"
	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/platform/apperr"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
)

// Actor is the verified identity invoking a transition. It comes from the
// authenticated request context; the engine trusts it as-is.
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
	TeamID uuid.UUID
}

// Service orchestrates intervention transitions over the Store.
type Service struct {
	repo repository.Store
	bus  events.Bus
	log  *logger.Logger
}

// New creates the interventions service.
func New(repo repository.Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// CreateRequestInput is the payload for filing a new intervention request.
type CreateRequestInput struct {
	LotRef      string
	Type        string
	Urgency     domain.Urgency
	Description string
}

// CreateRequest files a new intervention in status demande. Tenants file for
// themselves; gestionnaires and admins may file on a tenant's behalf.
func (s *Service) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (domain.Intervention, error) {
	switch actor.Role {
	case domain.RoleLocataire, domain.RoleGestionnaire, domain.RoleAdmin:
	default:
		return domain.Intervention{}, apperr.Authorization("role may not file intervention requests")
	}
	if in.Type == "" || in.Description == "" {
		return domain.Intervention{}, apperr.Validation("type and description are required")
	}
	if _, ok := domain.UrgencyFromString(string(in.Urgency)); !ok {
		return domain.Intervention{}, apperr.Validation("unknown urgency level")
	}

	intervention, err := s.repo.Create(ctx, repository.CreateParams{
		TeamID:      actor.TeamID,
		LotRef:      in.LotRef,
		Type:        in.Type,
		Urgency:     in.Urgency,
		Description: in.Description,
		CreatedBy:   actor.UserID,
	})
	if err != nil {
		return domain.Intervention{}, err
	}

	if actor.Role == domain.RoleLocataire {
		_, err = s.repo.CreateAssignment(ctx, repository.AssignmentParams{
			InterventionID: intervention.ID,
			UserID:         actor.UserID,
			Role:           domain.AssignLocataire,
			IsPrimary:      true,
		})
		if err != nil {
			return domain.Intervention{}, err
		}
	}

	s.publish(ctx, events.InterventionRequested{
		BaseEvent:      events.NewBaseEvent(),
		InterventionID: intervention.ID,
		TeamID:         intervention.TeamID,
		Type:           intervention.Type,
		Urgency:        intervention.Urgency,
		CreatedBy:      intervention.CreatedBy,
	})

	return intervention, nil
}

// Approve moves a pending request to approuvee.
func (s *Service) Approve(ctx context.Context, actor Actor, id uuid.UUID) (domain.Intervention, error) {
	return s.transition(ctx, actor, id, domain.ActionApprove, transitionOptions{})
}

// Reject declines a pending request. The reason is mandatory; it is shown to
// the requesting tenant.
func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (domain.Intervention, error) {
	if reason == "" {
		return domain.Intervention{}, apperr.Validation("a rejection reason is required")
	}
	return s.transition(ctx, actor, id, domain.ActionReject, transitionOptions{
		reason: reason,
		mutate: func(u *repository.StatusUpdate, current domain.Intervention) {
			meta := current.Metadata
			meta.RejectReason = reason
			u.Metadata = &meta
		},
	})
}

// StartPlanning leaves the quote phase (or skips it) and opens scheduling.
// Any still-pending quotes are cancelled so none survive the phase.
func (s *Service) StartPlanning(ctx context.Context, actor Actor, id uuid.UUID) (domain.Intervention, error) {
	intervention, err := s.transition(ctx, actor, id, domain.ActionStartPlanning, transitionOptions{})
	if err != nil {
		return domain.Intervention{}, err
	}

	if cancelled, cancelErr := s.repo.CancelPendingQuotes(ctx, id); cancelErr != nil {
		s.log.Error("cancel pending quotes failed", "interventionId", id, "error", cancelErr)
	} else if cancelled > 0 {
		s.log.Info("pending quotes cancelled on planning start", "interventionId", id, "count", cancelled)
	}

	return intervention, nil
}

// StartWork is performed by the assigned prestataire once on site.
func (s *Service) StartWork(ctx context.Context, actor Actor, id uuid.UUID) (domain.Intervention, error) {
	return s.transition(ctx, actor, id, domain.ActionStartWork, transitionOptions{requireAssignment: true})
}

// Finalize closes the loop after tenant validation. The optional final cost
// is recorded on the aggregate; the status becomes terminal.
func (s *Service) Finalize(ctx context.Context, actor Actor, id uuid.UUID, finalCostCents *int64) (domain.Intervention, error) {
	if finalCostCents != nil && *finalCostCents < 0 {
		return domain.Intervention{}, apperr.Validation("final cost must not be negative")
	}
	return s.transition(ctx, actor, id, domain.ActionFinalize, transitionOptions{
		mutate: func(u *repository.StatusUpdate, _ domain.Intervention) {
			u.FinalCostCents = finalCostCents
		},
	})
}

// Cancel aborts the intervention from any non-terminal state that offers it.
// The reason is mandatory and shown to the tenant and provider. A second
// cancel on an already-terminal intervention fails without side effects.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (domain.Intervention, error) {
	if reason == "" {
		return domain.Intervention{}, apperr.Validation("a cancellation reason is required")
	}
	return s.transition(ctx, actor, id, domain.ActionCancel, transitionOptions{
		reason: reason,
		mutate: func(u *repository.StatusUpdate, current domain.Intervention) {
			meta := current.Metadata
			meta.CancelReason = reason
			u.Metadata = &meta
		},
	})
}

// AssignParticipant links a user to the intervention with a role. Assignments
// drive both permissions on execution actions and the notification audience.
func (s *Service) AssignParticipant(ctx context.Context, actor Actor, id, userID uuid.UUID, role domain.AssignmentRole, isPrimary bool) (domain.Assignment, error) {
	if actor.Role != domain.RoleGestionnaire && actor.Role != domain.RoleAdmin {
		return domain.Assignment{}, apperr.Authorization("only a gestionnaire may assign participants")
	}

	intervention, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if domain.IsTerminal(intervention.Status) {
		return domain.Assignment{}, apperr.Conflict("intervention is closed")
	}

	return s.repo.CreateAssignment(ctx, repository.AssignmentParams{
		InterventionID: id,
		UserID:         userID,
		Role:           role,
		IsPrimary:      isPrimary,
	})
}

// GetByID returns the intervention snapshot within the actor's team scope.
func (s *Service) GetByID(ctx context.Context, actor Actor, id uuid.UUID) (domain.Intervention, error) {
	return s.repo.GetByID(ctx, actor.TeamID, id)
}

// List returns team-scoped interventions, optionally filtered by status.
func (s *Service) List(ctx context.Context, actor Actor, f repository.ListFilter) ([]domain.Intervention, int, error) {
	return s.repo.List(ctx, actor.TeamID, f)
}

// AvailableActions returns the legal actions for the actor on the
// intervention's current status. UIs use this to render only legal buttons.
func (s *Service) AvailableActions(ctx context.Context, actor Actor, id uuid.UUID) ([]domain.Action, error) {
	intervention, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return nil, err
	}
	return domain.AvailableActions(intervention.Status, actor.Role), nil
}

// ListComments returns the append-only comment log.
func (s *Service) ListComments(ctx context.Context, actor Actor, id uuid.UUID) ([]domain.Comment, error) {
	if _, err := s.repo.GetByID(ctx, actor.TeamID, id); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, id)
}

// ListAssignments returns the participants linked to the intervention.
func (s *Service) ListAssignments(ctx context.Context, actor Actor, id uuid.UUID) ([]domain.Assignment, error) {
	if _, err := s.repo.GetByID(ctx, actor.TeamID, id); err != nil {
		return nil, err
	}
	return s.repo.ListAssignments(ctx, id)
}

// transitionOptions parameterizes the shared transition path.
type transitionOptions struct {
	// reason is carried on the transition event for fan-out messages.
	reason string
	// requireAssignment demands the actor hold an assignment matching their
	// role (prestataire and locataire actions act on their own intervention).
	requireAssignment bool
	// mutate applies action-specific fields to the conditional write.
	mutate func(u *repository.StatusUpdate, current domain.Intervention)
	// overrideTarget resolves target statuses that depend on the payload.
	overrideTarget *domain.Status
	// providerID and contestCount enrich the published event.
	providerID   *uuid.UUID
	contestCount int
}

// transition is the single path every status change takes: load, gate on
// (status, role, action), resolve the target, write conditionally, publish.
// An ineligible (status, role, action) fails before any mutation.
func (s *Service) transition(ctx context.Context, actor Actor, id uuid.UUID, action domain.Action, opts transitionOptions) (domain.Intervention, error) {
	current, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.Intervention{}, err
	}

	if !domain.CanPerform(current.Status, actor.Role, action) {
		return domain.Intervention{}, apperr.Authorization(
			fmt.Sprintf("action %s is not permitted for role %s in status %s", action, actor.Role, current.Status),
		)
	}

	if opts.requireAssignment {
		if err := s.requireAssignment(ctx, id, actor); err != nil {
			return domain.Intervention{}, err
		}
	}

	target := current.Status
	if opts.overrideTarget != nil {
		target = *opts.overrideTarget
	} else {
		resolved, ok := domain.TargetFor(current.Status, action)
		if !ok {
			return domain.Intervention{}, apperr.Internal(fmt.Sprintf("no target status for action %s", action))
		}
		target = resolved
	}

	update := repository.StatusUpdate{
		ID:             id,
		TeamID:         actor.TeamID,
		ExpectedStatus: current.Status,
		NewStatus:      target,
	}
	if opts.mutate != nil {
		opts.mutate(&update, current)
	}

	updated, err := s.repo.UpdateStatus(ctx, update)
	if err != nil {
		return domain.Intervention{}, err
	}

	s.publish(ctx, events.InterventionTransitioned{
		BaseEvent:      events.NewBaseEvent(),
		InterventionID: updated.ID,
		TeamID:         updated.TeamID,
		OldStatus:      current.Status,
		NewStatus:      updated.Status,
		Action:         action,
		ActorID:        actor.UserID,
		ActorRole:      actor.Role,
		Reason:         opts.reason,
		ScheduledDate:  updated.ScheduledDate,
		ProviderID:     opts.providerID,
		ContestCount:   opts.contestCount,
	})

	return updated, nil
}

func (s *Service) requireAssignment(ctx context.Context, interventionID uuid.UUID, actor Actor) error {
	assignments, err := s.repo.ListAssignments(ctx, interventionID)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if a.UserID == actor.UserID && string(a.Role) == string(actor.Role) {
			return nil
		}
	}
	return apperr.Authorization("actor is not assigned to this intervention")
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
