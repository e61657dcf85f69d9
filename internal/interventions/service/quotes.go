package service

import (
	"context"
	"time"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/platform/apperr"

	"github.com/google/uuid"
)

// quotePhaseStatuses are the statuses during which the quote sub-protocol is
// open: quotes may be solicited and cancelled only here.
var quotePhaseStatuses = map[domain.Status]bool{
	domain.StatusApprouvee:      true,
	domain.StatusDemandeDeDevis: true,
}

// RequestQuoteInput is the payload for soliciting a provider quote.
type RequestQuoteInput struct {
	ProviderID uuid.UUID
	Deadline   *time.Time
	Notes      string
}

// RequestQuote solicits a quote from a provider. From approuvee the
// intervention enters demande_de_devis; a later solicitation from
// demande_de_devis leaves the status untouched. Multiple concurrent pending
// quotes to different providers are permitted.
func (s *Service) RequestQuote(ctx context.Context, actor Actor, id uuid.UUID, in RequestQuoteInput) (domain.Quote, error) {
	if in.ProviderID == uuid.Nil {
		return domain.Quote{}, apperr.Validation("providerId is required")
	}
	if in.Deadline != nil && in.Deadline.Before(time.Now()) {
		return domain.Quote{}, apperr.Validation("quote deadline must be in the future")
	}

	current, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !domain.CanPerform(current.Status, actor.Role, domain.ActionRequestQuote) {
		return domain.Quote{}, apperr.Authorization("quote solicitation is not permitted here")
	}

	// Enter the quote phase first; from demande_de_devis this is a no-op
	// transition but still a conditional write, so a concurrent move out of
	// the phase makes the solicitation fail instead of orphaning a quote.
	providerID := in.ProviderID
	if _, err := s.transition(ctx, actor, id, domain.ActionRequestQuote, transitionOptions{
		providerID: &providerID,
	}); err != nil {
		return domain.Quote{}, err
	}

	return s.repo.CreateQuote(ctx, repository.QuoteParams{
		InterventionID: id,
		ProviderID:     in.ProviderID,
		Deadline:       in.Deadline,
		Notes:          in.Notes,
		CreatedBy:      actor.UserID,
	})
}

// CancelQuote withdraws a pending quote. Only valid while the intervention
// has not progressed past the quote phase; never mutates the intervention
// status.
func (s *Service) CancelQuote(ctx context.Context, actor Actor, id, quoteID uuid.UUID) (domain.Quote, error) {
	if actor.Role != domain.RoleGestionnaire && actor.Role != domain.RoleAdmin {
		return domain.Quote{}, apperr.Authorization("only a gestionnaire may cancel quotes")
	}

	current, err := s.repo.GetByID(ctx, actor.TeamID, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !quotePhaseStatuses[current.Status] {
		return domain.Quote{}, apperr.Conflict("intervention has progressed past the quote phase")
	}

	quote, err := s.repo.GetQuote(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	if quote.InterventionID != id {
		return domain.Quote{}, apperr.NotFound("quote not found")
	}

	return s.repo.CancelQuote(ctx, quoteID)
}

// ListQuotes returns all quotes of the intervention, team-scoped.
func (s *Service) ListQuotes(ctx context.Context, actor Actor, id uuid.UUID) ([]domain.Quote, error) {
	if _, err := s.repo.GetByID(ctx, actor.TeamID, id); err != nil {
		return nil, err
	}
	return s.repo.ListQuotes(ctx, id)
}
