package service

import (
	"context"
	"fmt"
	"time"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/platform/apperr"

	"github.com/google/uuid"
)

// CompleteWork is performed by the assigned prestataire when the work is
// done. The optional report is appended to the comment log.
func (s *Service) CompleteWork(ctx context.Context, actor Actor, id uuid.UUID, report string) (domain.Intervention, error) {
	intervention, err := s.transition(ctx, actor, id, domain.ActionCompleteWork, transitionOptions{
		requireAssignment: true,
	})
	if err != nil {
		return domain.Intervention{}, err
	}

	if report != "" {
		if commentErr := s.repo.AppendComment(ctx, id, actor.UserID, actor.Role, report); commentErr != nil {
			s.log.Error("append completion report failed", "interventionId", id, "error", commentErr)
		}
	}

	return intervention, nil
}

// ValidateWorkInput is the tenant's verdict on declared-complete work.
type ValidateWorkInput struct {
	Decision domain.ValidationDecision
	// Rating applies to an approval only, 1 to 5.
	Rating *int
	// Reason is mandatory for a contestation.
	Reason string
}

// ValidateWork resolves cloturee_par_prestataire per the tenant's decision.
// Approval closes the tenant's side; a contestation sends the intervention
// back to planifiee and increments the cumulative contest counter. Once the
// counter has reached its cap, further contestations fail without mutating
// anything.
func (s *Service) ValidateWork(ctx context.Context, actor Actor, id uuid.UUID, in ValidateWorkInput) (domain.Intervention, error) {
	target, ok := domain.ValidationTarget(in.Decision)
	if !ok {
		return domain.Intervention{}, apperr.Validation("decision must be approved or contested")
	}

	switch in.Decision {
	case domain.DecisionApproved:
		if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
			return domain.Intervention{}, apperr.Validation("satisfaction rating must be between 1 and 5")
		}
	case domain.DecisionContested:
		if in.Reason == "" {
			return domain.Intervention{}, apperr.Validation("a contestation reason is required")
		}
	}

	current, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.Intervention{}, err
	}

	// The (status, role, action) gate runs before the contest cap: an
	// ineligible validation attempt fails like any other denied action,
	// whatever the counter says.
	if !domain.CanPerform(current.Status, actor.Role, domain.ActionValidateWork) {
		return domain.Intervention{}, apperr.Authorization(
			fmt.Sprintf("action %s is not permitted for role %s in status %s",
				domain.ActionValidateWork, actor.Role, current.Status),
		)
	}

	contestCount := current.Metadata.ContestCount
	if in.Decision == domain.DecisionContested && contestCount >= domain.MaxContestCount {
		return domain.Intervention{}, apperr.Conflict(
			fmt.Sprintf("maximum contestations reached (%d), contact your manager", domain.MaxContestCount),
		)
	}

	opts := transitionOptions{
		requireAssignment: true,
		overrideTarget:    &target,
	}

	switch in.Decision {
	case domain.DecisionApproved:
		now := time.Now()
		opts.mutate = func(u *repository.StatusUpdate, _ domain.Intervention) {
			u.TenantValidatedDate = &now
			u.SatisfactionRating = in.Rating
		}
	case domain.DecisionContested:
		contestCount++
		opts.reason = in.Reason
		opts.contestCount = contestCount
		now := time.Now()
		opts.mutate = func(u *repository.StatusUpdate, cur domain.Intervention) {
			meta := cur.Metadata
			meta.ContestCount = contestCount
			meta.LastContestReason = in.Reason
			meta.LastContestDate = &now
			u.Metadata = &meta
		}
	}

	return s.transition(ctx, actor, id, domain.ActionValidateWork, opts)
}
