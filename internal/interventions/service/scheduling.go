package service

import (
	"context"
	"time"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/platform/apperr"

	"github.com/google/uuid"
)

// ProposeSlotInput is the payload for proposing a candidate time slot.
type ProposeSlotInput struct {
	SlotDate  time.Time
	StartTime string
	EndTime   string
}

// ProposeSlot adds a candidate execution window during planification.
// Gestionnaires, admins and the assigned locataire may propose.
func (s *Service) ProposeSlot(ctx context.Context, actor Actor, id uuid.UUID, in ProposeSlotInput) (domain.TimeSlot, error) {
	if in.SlotDate.IsZero() || in.StartTime == "" || in.EndTime == "" {
		return domain.TimeSlot{}, apperr.Validation("slot date, start and end times are required")
	}
	if in.EndTime <= in.StartTime {
		return domain.TimeSlot{}, apperr.Validation("slot end must be after its start")
	}

	switch actor.Role {
	case domain.RoleGestionnaire, domain.RoleAdmin:
	case domain.RoleLocataire:
		if err := s.requireAssignment(ctx, id, actor); err != nil {
			return domain.TimeSlot{}, err
		}
	default:
		return domain.TimeSlot{}, apperr.Authorization("role may not propose time slots")
	}

	current, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.TimeSlot{}, err
	}
	if current.Status != domain.StatusPlanification {
		return domain.TimeSlot{}, apperr.Conflict("time slots can only be proposed during planning")
	}

	return s.repo.CreateSlot(ctx, repository.SlotParams{
		InterventionID: id,
		SlotDate:       in.SlotDate,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		ProposedBy:     actor.UserID,
	})
}

// RespondSlot records a participant's accept/decline answer to a proposed
// slot. Responses inform the manager's confirmSchedule decision; they do not
// transition the intervention.
func (s *Service) RespondSlot(ctx context.Context, actor Actor, id, slotID uuid.UUID, response string) (domain.SlotResponse, error) {
	if response != "accept" && response != "decline" {
		return domain.SlotResponse{}, apperr.Validation("response must be accept or decline")
	}

	current, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.SlotResponse{}, err
	}
	if current.Status != domain.StatusPlanification {
		return domain.SlotResponse{}, apperr.Conflict("slot responses are only recorded during planning")
	}

	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return domain.SlotResponse{}, err
	}
	if slot.InterventionID != id {
		return domain.SlotResponse{}, apperr.NotFound("time slot not found")
	}
	if slot.Status != domain.SlotProposed {
		return domain.SlotResponse{}, apperr.Conflict("time slot is no longer open for responses")
	}

	return s.repo.RespondSlot(ctx, repository.SlotResponseParams{
		SlotID:   slotID,
		UserID:   actor.UserID,
		UserRole: actor.Role,
		Response: response,
	})
}

// ConfirmScheduleInput selects either a proposed slot or a direct window.
// Exactly one of SlotID and DirectDate must be set.
type ConfirmScheduleInput struct {
	SlotID     *uuid.UUID
	DirectDate *time.Time
	StartTime  string
	EndTime    string
}

// ConfirmSchedule resolves the negotiation to a single confirmed window and
// performs planification -> planifiee. Confirming a slot withdraws the other
// proposed slots; they are not resurrectable.
func (s *Service) ConfirmSchedule(ctx context.Context, actor Actor, id uuid.UUID, in ConfirmScheduleInput) (domain.Intervention, error) {
	if (in.SlotID == nil) == (in.DirectDate == nil) {
		return domain.Intervention{}, apperr.Validation("provide either a slotId or a direct date, not both")
	}

	var scheduled time.Time
	var selectedSlot *uuid.UUID

	if in.SlotID != nil {
		slot, err := s.repo.GetSlot(ctx, *in.SlotID)
		if err != nil {
			return domain.Intervention{}, err
		}
		if slot.InterventionID != id {
			return domain.Intervention{}, apperr.NotFound("time slot not found")
		}
		if slot.Status != domain.SlotProposed {
			return domain.Intervention{}, apperr.Conflict("time slot is no longer available")
		}
		scheduled = combineDateTime(slot.SlotDate, slot.StartTime)
		selectedSlot = in.SlotID
	} else {
		if in.StartTime != "" && in.EndTime != "" && in.EndTime <= in.StartTime {
			return domain.Intervention{}, apperr.Validation("schedule end must be after its start")
		}
		scheduled = combineDateTime(*in.DirectDate, in.StartTime)
	}

	intervention, err := s.transition(ctx, actor, id, domain.ActionConfirmSchedule, transitionOptions{
		mutate: func(u *repository.StatusUpdate, _ domain.Intervention) {
			u.ScheduledDate = &scheduled
			u.SelectedSlotID = selectedSlot
		},
	})
	if err != nil {
		return domain.Intervention{}, err
	}

	if selectedSlot != nil {
		if selectErr := s.repo.SelectSlot(ctx, id, *selectedSlot); selectErr != nil {
			// The transition already committed; slot bookkeeping is repairable.
			s.log.Error("select slot failed after schedule confirmation",
				"interventionId", id, "slotId", *selectedSlot, "error", selectErr)
		}
	}

	return intervention, nil
}

// ListSlots returns all proposed/selected/withdrawn slots, team-scoped.
func (s *Service) ListSlots(ctx context.Context, actor Actor, id uuid.UUID) ([]domain.TimeSlot, error) {
	if _, err := s.repo.GetByID(ctx, actor.TeamID, id); err != nil {
		return nil, err
	}
	return s.repo.ListSlots(ctx, id)
}

// combineDateTime merges a calendar date with an HH:MM wall-clock time.
// An empty or malformed time leaves the date's own clock untouched.
func combineDateTime(date time.Time, clock string) time.Time {
	if clock == "" {
		return date
	}
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location())
}
