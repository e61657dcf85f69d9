package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/interventions/repository"
	"gestimmo_backend/platform/apperr"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store honoring the conditional-write contract of
// UpdateStatus, so concurrency behavior can be exercised without a database.
type fakeStore struct {
	mu            sync.Mutex
	interventions map[uuid.UUID]domain.Intervention
	assignments   map[uuid.UUID][]domain.Assignment
	quotes        map[uuid.UUID]domain.Quote
	slots         map[uuid.UUID]domain.TimeSlot
	responses     map[uuid.UUID][]domain.SlotResponse
	comments      map[uuid.UUID][]domain.Comment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		interventions: make(map[uuid.UUID]domain.Intervention),
		assignments:   make(map[uuid.UUID][]domain.Assignment),
		quotes:        make(map[uuid.UUID]domain.Quote),
		slots:         make(map[uuid.UUID]domain.TimeSlot),
		responses:     make(map[uuid.UUID][]domain.SlotResponse),
		comments:      make(map[uuid.UUID][]domain.Comment),
	}
}

func (f *fakeStore) Create(_ context.Context, p repository.CreateParams) (domain.Intervention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	iv := domain.Intervention{
		ID:          uuid.New(),
		TeamID:      p.TeamID,
		LotRef:      p.LotRef,
		Type:        p.Type,
		Urgency:     p.Urgency,
		Description: p.Description,
		Status:      domain.StatusDemande,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.interventions[iv.ID] = iv
	return iv, nil
}

func (f *fakeStore) GetByID(_ context.Context, teamID, id uuid.UUID) (domain.Intervention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.interventions[id]
	if !ok || iv.TeamID != teamID {
		return domain.Intervention{}, apperr.NotFound("intervention not found")
	}
	return iv, nil
}

func (f *fakeStore) List(_ context.Context, teamID uuid.UUID, filter repository.ListFilter) ([]domain.Intervention, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Intervention
	for _, iv := range f.interventions {
		if iv.TeamID != teamID {
			continue
		}
		if filter.Status != nil && iv.Status != *filter.Status {
			continue
		}
		out = append(out, iv)
	}
	return out, len(out), nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, u repository.StatusUpdate) (domain.Intervention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv, ok := f.interventions[u.ID]
	if !ok || iv.TeamID != u.TeamID {
		return domain.Intervention{}, apperr.NotFound("intervention not found")
	}
	if iv.Status != u.ExpectedStatus {
		return domain.Intervention{}, apperr.Conflict("intervention status changed concurrently")
	}
	iv.Status = u.NewStatus
	if u.ScheduledDate != nil {
		iv.ScheduledDate = u.ScheduledDate
	}
	if u.SelectedSlotID != nil {
		iv.SelectedSlotID = u.SelectedSlotID
	}
	if u.TenantValidatedDate != nil {
		iv.TenantValidatedDate = u.TenantValidatedDate
	}
	if u.SatisfactionRating != nil {
		iv.TenantSatisfactionRating = u.SatisfactionRating
	}
	if u.FinalCostCents != nil {
		iv.FinalCostCents = u.FinalCostCents
	}
	if u.Metadata != nil {
		iv.Metadata = *u.Metadata
	}
	iv.UpdatedAt = time.Now()
	f.interventions[iv.ID] = iv
	return iv, nil
}

func (f *fakeStore) AppendComment(_ context.Context, interventionID, authorID uuid.UUID, role domain.Role, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[interventionID] = append(f.comments[interventionID], domain.Comment{
		ID:             uuid.New(),
		InterventionID: interventionID,
		AuthorID:       authorID,
		AuthorRole:     role,
		Message:        message,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (f *fakeStore) ListComments(_ context.Context, interventionID uuid.UUID) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comments[interventionID], nil
}

func (f *fakeStore) CreateQuote(_ context.Context, p repository.QuoteParams) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := domain.Quote{
		ID:             uuid.New(),
		InterventionID: p.InterventionID,
		ProviderID:     p.ProviderID,
		Status:         domain.QuotePending,
		Deadline:       p.Deadline,
		Notes:          p.Notes,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      time.Now(),
	}
	f.quotes[q.ID] = q
	return q, nil
}

func (f *fakeStore) GetQuote(_ context.Context, id uuid.UUID) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return domain.Quote{}, apperr.NotFound("quote not found")
	}
	return q, nil
}

func (f *fakeStore) CancelQuote(_ context.Context, id uuid.UUID) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return domain.Quote{}, apperr.NotFound("quote not found")
	}
	if q.Status != domain.QuotePending {
		return domain.Quote{}, apperr.Conflict("quote is no longer pending")
	}
	q.Status = domain.QuoteCancelled
	f.quotes[id] = q
	return q, nil
}

func (f *fakeStore) CancelPendingQuotes(_ context.Context, interventionID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, q := range f.quotes {
		if q.InterventionID == interventionID && q.Status == domain.QuotePending {
			q.Status = domain.QuoteCancelled
			f.quotes[id] = q
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListQuotes(_ context.Context, interventionID uuid.UUID) ([]domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Quote
	for _, q := range f.quotes {
		if q.InterventionID == interventionID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSlot(_ context.Context, p repository.SlotParams) (domain.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot := domain.TimeSlot{
		ID:             uuid.New(),
		InterventionID: p.InterventionID,
		SlotDate:       p.SlotDate,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		ProposedBy:     p.ProposedBy,
		Status:         domain.SlotProposed,
		CreatedAt:      time.Now(),
	}
	f.slots[slot.ID] = slot
	return slot, nil
}

func (f *fakeStore) GetSlot(_ context.Context, id uuid.UUID) (domain.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[id]
	if !ok {
		return domain.TimeSlot{}, apperr.NotFound("time slot not found")
	}
	return slot, nil
}

func (f *fakeStore) RespondSlot(_ context.Context, p repository.SlotResponseParams) (domain.SlotResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := domain.SlotResponse{
		ID:        uuid.New(),
		SlotID:    p.SlotID,
		UserID:    p.UserID,
		UserRole:  p.UserRole,
		Response:  p.Response,
		CreatedAt: time.Now(),
	}
	f.responses[p.SlotID] = append(f.responses[p.SlotID], resp)
	return resp, nil
}

func (f *fakeStore) SelectSlot(_ context.Context, interventionID, slotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	selected, ok := f.slots[slotID]
	if !ok || selected.InterventionID != interventionID {
		return apperr.NotFound("time slot not found")
	}
	if selected.Status != domain.SlotProposed {
		return apperr.Conflict("time slot is no longer available")
	}
	for id, slot := range f.slots {
		if slot.InterventionID != interventionID || slot.Status != domain.SlotProposed {
			continue
		}
		if id == slotID {
			slot.Status = domain.SlotSelected
		} else {
			slot.Status = domain.SlotWithdrawn
		}
		f.slots[id] = slot
	}
	return nil
}

func (f *fakeStore) ListSlots(_ context.Context, interventionID uuid.UUID) ([]domain.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TimeSlot
	for _, slot := range f.slots {
		if slot.InterventionID == interventionID {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAssignment(_ context.Context, p repository.AssignmentParams) (domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assignments[p.InterventionID] {
		if a.UserID == p.UserID && a.Role == p.Role {
			return domain.Assignment{}, apperr.Conflict("user already assigned with this role")
		}
	}
	a := domain.Assignment{
		ID:             uuid.New(),
		InterventionID: p.InterventionID,
		UserID:         p.UserID,
		Role:           p.Role,
		IsPrimary:      p.IsPrimary,
		CreatedAt:      time.Now(),
	}
	f.assignments[p.InterventionID] = append(f.assignments[p.InterventionID], a)
	return a, nil
}

func (f *fakeStore) ListAssignments(_ context.Context, interventionID uuid.UUID) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignments[interventionID], nil
}

// setStatus force-sets intervention state for test arrangement.
func (f *fakeStore) setStatus(id uuid.UUID, status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv := f.interventions[id]
	iv.Status = status
	f.interventions[id] = iv
}

func (f *fakeStore) setContestCount(id uuid.UUID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iv := f.interventions[id]
	iv.Metadata.ContestCount = n
	f.interventions[id] = iv
}

type fixture struct {
	store *fakeStore
	svc   *Service

	teamID       uuid.UUID
	gestionnaire Actor
	prestataire  Actor
	locataire    Actor
	admin        Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	teamID := uuid.New()
	store := newFakeStore()
	return &fixture{
		store:        store,
		svc:          New(store, nil, logger.New("development")),
		teamID:       teamID,
		gestionnaire: Actor{UserID: uuid.New(), Role: domain.RoleGestionnaire, TeamID: teamID},
		prestataire:  Actor{UserID: uuid.New(), Role: domain.RolePrestataire, TeamID: teamID},
		locataire:    Actor{UserID: uuid.New(), Role: domain.RoleLocataire, TeamID: teamID},
		admin:        Actor{UserID: uuid.New(), Role: domain.RoleAdmin, TeamID: teamID},
	}
}

// newRequest files an intervention as the fixture's locataire.
func (fx *fixture) newRequest(t *testing.T) domain.Intervention {
	t.Helper()
	iv, err := fx.svc.CreateRequest(context.Background(), fx.locataire, CreateRequestInput{
		LotRef:      "A-204",
		Type:        "plomberie",
		Urgency:     domain.UrgencyHaute,
		Description: "Fuite sous l'evier de la cuisine",
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return iv
}

func (fx *fixture) assignProvider(t *testing.T, interventionID uuid.UUID) {
	t.Helper()
	_, err := fx.svc.AssignParticipant(context.Background(), fx.gestionnaire, interventionID,
		fx.prestataire.UserID, domain.AssignPrestataire, true)
	if err != nil {
		t.Fatalf("AssignParticipant: %v", err)
	}
}

func TestCreateRequestAssignsTenantCreator(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)

	if iv.Status != domain.StatusDemande {
		t.Fatalf("status = %s, want demande", iv.Status)
	}
	assignments, err := fx.svc.ListAssignments(context.Background(), fx.gestionnaire, iv.ID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].UserID != fx.locataire.UserID || assignments[0].Role != domain.AssignLocataire {
		t.Fatalf("creator tenant not assigned: %+v", assignments)
	}
}

func TestUnauthorizedActionLeavesStateUnchanged(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)

	// A tenant may not approve their own request.
	_, err := fx.svc.Approve(context.Background(), fx.locataire, iv.ID)
	if apperr.GetKind(err) != apperr.KindAuthorization {
		t.Fatalf("kind = %v, want authorization", apperr.GetKind(err))
	}

	after, err := fx.svc.GetByID(context.Background(), fx.gestionnaire, iv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Status != domain.StatusDemande {
		t.Fatalf("status mutated by denied action: %s", after.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)

	if _, err := fx.svc.Reject(context.Background(), fx.gestionnaire, iv.ID, ""); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("empty reason: kind = %v, want validation", apperr.GetKind(err))
	}

	rejected, err := fx.svc.Reject(context.Background(), fx.gestionnaire, iv.ID, "hors perimetre du bail")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != domain.StatusRejetee {
		t.Fatalf("status = %s, want rejetee", rejected.Status)
	}
	if rejected.Metadata.RejectReason != "hors perimetre du bail" {
		t.Fatalf("reject reason not recorded: %+v", rejected.Metadata)
	}
}

func TestCancelRequiresReasonAndIsDeniedOnTerminal(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	if _, err := fx.svc.Approve(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, err := fx.svc.Cancel(context.Background(), fx.gestionnaire, iv.ID, ""); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("empty reason: kind = %v, want validation", apperr.GetKind(err))
	}

	cancelled, err := fx.svc.Cancel(context.Background(), fx.gestionnaire, iv.ID, "locataire a resilie le bail")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.StatusAnnulee {
		t.Fatalf("status = %s, want annulee", cancelled.Status)
	}

	// Second cancel hits a terminal status and must not mutate anything.
	if _, err := fx.svc.Cancel(context.Background(), fx.gestionnaire, iv.ID, "encore"); apperr.GetKind(err) != apperr.KindAuthorization {
		t.Fatalf("terminal cancel: kind = %v, want authorization", apperr.GetKind(err))
	}
}

func TestConcurrentApproveHasOneWinner(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)

	// Simulate the loser's stale expectation: the winner commits first.
	if _, err := fx.svc.Approve(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("winner approve: %v", err)
	}
	_, err := fx.svc.Reject(context.Background(), fx.admin, iv.ID, "doublon")
	if apperr.GetKind(err) != apperr.KindAuthorization {
		// The loser re-reads approuvee, where reject is no longer offered.
		t.Fatalf("loser reject: kind = %v, want authorization", apperr.GetKind(err))
	}
}

func TestConcurrentUpdateStatusConflicts(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)

	// Both racers loaded demande; only the first conditional write lands.
	first := repository.StatusUpdate{
		ID: iv.ID, TeamID: fx.teamID,
		ExpectedStatus: domain.StatusDemande, NewStatus: domain.StatusApprouvee,
	}
	if _, err := fx.store.UpdateStatus(context.Background(), first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	second := repository.StatusUpdate{
		ID: iv.ID, TeamID: fx.teamID,
		ExpectedStatus: domain.StatusDemande, NewStatus: domain.StatusRejetee,
	}
	if _, err := fx.store.UpdateStatus(context.Background(), second); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("second write: kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestRequestQuoteEntersAndStaysInQuotePhase(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	if _, err := fx.svc.Approve(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	q1, err := fx.svc.RequestQuote(context.Background(), fx.gestionnaire, iv.ID, RequestQuoteInput{ProviderID: uuid.New()})
	if err != nil {
		t.Fatalf("first RequestQuote: %v", err)
	}
	after, _ := fx.svc.GetByID(context.Background(), fx.gestionnaire, iv.ID)
	if after.Status != domain.StatusDemandeDeDevis {
		t.Fatalf("status = %s, want demande_de_devis", after.Status)
	}

	// A second solicitation keeps the status put and coexists with the first.
	q2, err := fx.svc.RequestQuote(context.Background(), fx.gestionnaire, iv.ID, RequestQuoteInput{ProviderID: uuid.New()})
	if err != nil {
		t.Fatalf("second RequestQuote: %v", err)
	}
	after, _ = fx.svc.GetByID(context.Background(), fx.gestionnaire, iv.ID)
	if after.Status != domain.StatusDemandeDeDevis {
		t.Fatalf("status = %s, want demande_de_devis", after.Status)
	}
	if q1.Status != domain.QuotePending || q2.Status != domain.QuotePending {
		t.Fatalf("both quotes should be pending: %s, %s", q1.Status, q2.Status)
	}
}

func TestStartPlanningCancelsPendingQuotes(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	if _, err := fx.svc.Approve(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := fx.svc.RequestQuote(context.Background(), fx.gestionnaire, iv.ID, RequestQuoteInput{ProviderID: uuid.New()}); err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}

	if _, err := fx.svc.StartPlanning(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("StartPlanning: %v", err)
	}

	quotes, err := fx.svc.ListQuotes(context.Background(), fx.gestionnaire, iv.ID)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	for _, q := range quotes {
		if q.Status == domain.QuotePending {
			t.Fatalf("pending quote survived planning start: %+v", q)
		}
	}
}

func TestCancelQuoteDeniedPastQuotePhase(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	if _, err := fx.svc.Approve(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	q, err := fx.svc.RequestQuote(context.Background(), fx.gestionnaire, iv.ID, RequestQuoteInput{ProviderID: uuid.New()})
	if err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	if _, err := fx.svc.StartPlanning(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("StartPlanning: %v", err)
	}

	if _, err := fx.svc.CancelQuote(context.Background(), fx.gestionnaire, iv.ID, q.ID); apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestConfirmScheduleWithSlotWithdrawsOthers(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	if _, err := fx.svc.Approve(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := fx.svc.StartPlanning(context.Background(), fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("StartPlanning: %v", err)
	}

	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	slotA, err := fx.svc.ProposeSlot(context.Background(), fx.gestionnaire, iv.ID, ProposeSlotInput{
		SlotDate: date, StartTime: "09:00", EndTime: "11:00",
	})
	if err != nil {
		t.Fatalf("ProposeSlot A: %v", err)
	}
	if _, err := fx.svc.ProposeSlot(context.Background(), fx.gestionnaire, iv.ID, ProposeSlotInput{
		SlotDate: date, StartTime: "14:00", EndTime: "16:00",
	}); err != nil {
		t.Fatalf("ProposeSlot B: %v", err)
	}

	confirmed, err := fx.svc.ConfirmSchedule(context.Background(), fx.gestionnaire, iv.ID, ConfirmScheduleInput{SlotID: &slotA.ID})
	if err != nil {
		t.Fatalf("ConfirmSchedule: %v", err)
	}
	if confirmed.Status != domain.StatusPlanifiee {
		t.Fatalf("status = %s, want planifiee", confirmed.Status)
	}
	if confirmed.ScheduledDate == nil || confirmed.ScheduledDate.Hour() != 9 {
		t.Fatalf("scheduled date not derived from slot: %v", confirmed.ScheduledDate)
	}

	slots, _ := fx.svc.ListSlots(context.Background(), fx.gestionnaire, iv.ID)
	for _, s := range slots {
		switch s.ID {
		case slotA.ID:
			if s.Status != domain.SlotSelected {
				t.Fatalf("selected slot status = %s", s.Status)
			}
		default:
			if s.Status != domain.SlotWithdrawn {
				t.Fatalf("losing slot status = %s, want withdrawn", s.Status)
			}
		}
	}
}

func TestConfirmScheduleRejectsAmbiguousInput(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusPlanification)

	if _, err := fx.svc.ConfirmSchedule(context.Background(), fx.gestionnaire, iv.ID, ConfirmScheduleInput{}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("neither input: kind = %v, want validation", apperr.GetKind(err))
	}
	slotID := uuid.New()
	date := time.Now().Add(48 * time.Hour)
	if _, err := fx.svc.ConfirmSchedule(context.Background(), fx.gestionnaire, iv.ID, ConfirmScheduleInput{
		SlotID: &slotID, DirectDate: &date,
	}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("both inputs: kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestStartWorkRequiresAssignment(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusPlanifiee)

	if _, err := fx.svc.StartWork(context.Background(), fx.prestataire, iv.ID); apperr.GetKind(err) != apperr.KindAuthorization {
		t.Fatalf("unassigned provider: kind = %v, want authorization", apperr.GetKind(err))
	}

	fx.assignProvider(t, iv.ID)
	started, err := fx.svc.StartWork(context.Background(), fx.prestataire, iv.ID)
	if err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	if started.Status != domain.StatusEnCours {
		t.Fatalf("status = %s, want en_cours", started.Status)
	}
}

func TestCompleteWorkAppendsReport(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusEnCours)
	fx.assignProvider(t, iv.ID)

	done, err := fx.svc.CompleteWork(context.Background(), fx.prestataire, iv.ID, "Remplacement du siphon effectue")
	if err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}
	if done.Status != domain.StatusClotureePrestataire {
		t.Fatalf("status = %s, want cloturee_par_prestataire", done.Status)
	}
	comments, _ := fx.svc.ListComments(context.Background(), fx.gestionnaire, iv.ID)
	if len(comments) != 1 || comments[0].Message != "Remplacement du siphon effectue" {
		t.Fatalf("report not appended: %+v", comments)
	}
}

func TestValidateWorkApprovedRecordsRating(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusClotureePrestataire)

	rating := 4
	validated, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionApproved,
		Rating:   &rating,
	})
	if err != nil {
		t.Fatalf("ValidateWork: %v", err)
	}
	if validated.Status != domain.StatusClotureeLocataire {
		t.Fatalf("status = %s, want cloturee_par_locataire", validated.Status)
	}
	if validated.TenantValidatedDate == nil {
		t.Fatal("tenant validated date not set")
	}
	if validated.TenantSatisfactionRating == nil || *validated.TenantSatisfactionRating != 4 {
		t.Fatalf("rating not recorded: %v", validated.TenantSatisfactionRating)
	}
}

func TestValidateWorkRejectsOutOfRangeRating(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusClotureePrestataire)

	rating := 6
	_, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionApproved,
		Rating:   &rating,
	})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestValidateWorkContestedLoopsBackAndCounts(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusClotureePrestataire)

	if _, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
	}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("empty reason: kind = %v, want validation", apperr.GetKind(err))
	}

	contested, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
		Reason:   "la fuite persiste",
	})
	if err != nil {
		t.Fatalf("ValidateWork: %v", err)
	}
	if contested.Status != domain.StatusPlanifiee {
		t.Fatalf("status = %s, want planifiee", contested.Status)
	}
	if contested.Metadata.ContestCount != 1 {
		t.Fatalf("contest count = %d, want 1", contested.Metadata.ContestCount)
	}
	if contested.Metadata.LastContestReason != "la fuite persiste" {
		t.Fatalf("contest reason not recorded: %+v", contested.Metadata)
	}
}

func TestContestCountIsBounded(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusClotureePrestataire)
	fx.store.setContestCount(iv.ID, domain.MaxContestCount-1)

	// The third contestation is still allowed.
	contested, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
		Reason:   "toujours pas resolu",
	})
	if err != nil {
		t.Fatalf("third contest: %v", err)
	}
	if contested.Metadata.ContestCount != domain.MaxContestCount {
		t.Fatalf("contest count = %d, want %d", contested.Metadata.ContestCount, domain.MaxContestCount)
	}

	// A fourth attempt fails with a conflict and mutates nothing.
	fx.store.setStatus(iv.ID, domain.StatusClotureePrestataire)
	_, err = fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
		Reason:   "encore",
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("fourth contest: kind = %v, want conflict", apperr.GetKind(err))
	}
	after, _ := fx.svc.GetByID(context.Background(), fx.gestionnaire, iv.ID)
	if after.Status != domain.StatusClotureePrestataire || after.Metadata.ContestCount != domain.MaxContestCount {
		t.Fatalf("capped contest mutated state: status=%s count=%d", after.Status, after.Metadata.ContestCount)
	}

	// Approval remains available after the cap.
	approved, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("approve after cap: %v", err)
	}
	if approved.Status != domain.StatusClotureeLocataire {
		t.Fatalf("status = %s, want cloturee_par_locataire", approved.Status)
	}
}

func TestContestInIneligibleStatusIsDenied(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)

	// A capped intervention back in planifiee: validation is not offered
	// there, so the denial must read as an authorization failure, not as the
	// contest-limit conflict.
	fx.store.setStatus(iv.ID, domain.StatusPlanifiee)
	fx.store.setContestCount(iv.ID, domain.MaxContestCount)

	_, err := fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
		Reason:   "le probleme persiste",
	})
	if apperr.GetKind(err) != apperr.KindAuthorization {
		t.Fatalf("planifiee contest: kind = %v, want authorization", apperr.GetKind(err))
	}

	fx.store.setStatus(iv.ID, domain.StatusAnnulee)
	_, err = fx.svc.ValidateWork(context.Background(), fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
		Reason:   "le probleme persiste",
	})
	if apperr.GetKind(err) != apperr.KindAuthorization {
		t.Fatalf("terminal contest: kind = %v, want authorization", apperr.GetKind(err))
	}

	after, _ := fx.svc.GetByID(context.Background(), fx.gestionnaire, iv.ID)
	if after.Status != domain.StatusAnnulee || after.Metadata.ContestCount != domain.MaxContestCount {
		t.Fatalf("denied contest mutated state: status=%s count=%d", after.Status, after.Metadata.ContestCount)
	}
}

func TestFinalizeRecordsFinalCost(t *testing.T) {
	fx := newFixture(t)
	iv := fx.newRequest(t)
	fx.store.setStatus(iv.ID, domain.StatusClotureeLocataire)

	negative := int64(-1)
	if _, err := fx.svc.Finalize(context.Background(), fx.gestionnaire, iv.ID, &negative); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("negative cost: kind = %v, want validation", apperr.GetKind(err))
	}

	cost := int64(42_000)
	final, err := fx.svc.Finalize(context.Background(), fx.gestionnaire, iv.ID, &cost)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if final.Status != domain.StatusClotureeGestionnaire {
		t.Fatalf("status = %s, want cloturee_par_gestionnaire", final.Status)
	}
	if final.FinalCostCents == nil || *final.FinalCostCents != cost {
		t.Fatalf("final cost not recorded: %v", final.FinalCostCents)
	}
}

func TestFullLifecycleHappyPathWithOneContest(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	iv := fx.newRequest(t)

	if _, err := fx.svc.Approve(ctx, fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := fx.svc.RequestQuote(ctx, fx.gestionnaire, iv.ID, RequestQuoteInput{ProviderID: fx.prestataire.UserID}); err != nil {
		t.Fatalf("RequestQuote: %v", err)
	}
	if _, err := fx.svc.StartPlanning(ctx, fx.gestionnaire, iv.ID); err != nil {
		t.Fatalf("StartPlanning: %v", err)
	}
	fx.assignProvider(t, iv.ID)

	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	slot, err := fx.svc.ProposeSlot(ctx, fx.gestionnaire, iv.ID, ProposeSlotInput{
		SlotDate: date, StartTime: "10:00", EndTime: "12:00",
	})
	if err != nil {
		t.Fatalf("ProposeSlot: %v", err)
	}
	if _, err := fx.svc.RespondSlot(ctx, fx.locataire, iv.ID, slot.ID, "accept"); err != nil {
		t.Fatalf("RespondSlot: %v", err)
	}
	if _, err := fx.svc.ConfirmSchedule(ctx, fx.gestionnaire, iv.ID, ConfirmScheduleInput{SlotID: &slot.ID}); err != nil {
		t.Fatalf("ConfirmSchedule: %v", err)
	}
	if _, err := fx.svc.StartWork(ctx, fx.prestataire, iv.ID); err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	if _, err := fx.svc.CompleteWork(ctx, fx.prestataire, iv.ID, "intervention terminee"); err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}

	// Tenant contests once; the intervention loops back to planifiee.
	contested, err := fx.svc.ValidateWork(ctx, fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionContested,
		Reason:   "le robinet goutte encore",
	})
	if err != nil {
		t.Fatalf("contest: %v", err)
	}
	if contested.Status != domain.StatusPlanifiee || contested.Metadata.ContestCount != 1 {
		t.Fatalf("after contest: status=%s count=%d", contested.Status, contested.Metadata.ContestCount)
	}

	// Second pass through execution.
	if _, err := fx.svc.StartWork(ctx, fx.prestataire, iv.ID); err != nil {
		t.Fatalf("second StartWork: %v", err)
	}
	if _, err := fx.svc.CompleteWork(ctx, fx.prestataire, iv.ID, ""); err != nil {
		t.Fatalf("second CompleteWork: %v", err)
	}
	rating := 5
	if _, err := fx.svc.ValidateWork(ctx, fx.locataire, iv.ID, ValidateWorkInput{
		Decision: domain.DecisionApproved,
		Rating:   &rating,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	cost := int64(18_500)
	final, err := fx.svc.Finalize(ctx, fx.gestionnaire, iv.ID, &cost)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if final.Status != domain.StatusClotureeGestionnaire {
		t.Fatalf("final status = %s, want cloturee_par_gestionnaire", final.Status)
	}
	if final.Metadata.ContestCount != 1 {
		t.Fatalf("contest count = %d, want 1 (cumulative, never reset)", final.Metadata.ContestCount)
	}
}
