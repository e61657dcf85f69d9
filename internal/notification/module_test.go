package notification

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gestimmo_backend/internal/events"
	"gestimmo_backend/internal/interventions/domain"
	"gestimmo_backend/internal/notification/inapp"
	"gestimmo_backend/internal/notification/outbox"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://app.example.com" }

type testEmailSender struct {
	updateCalls   int
	reminderCalls int
	lastRecipient string
	lastBody      string
}

func (s *testEmailSender) SendInterventionUpdateEmail(_ context.Context, toEmail, _, _, body, _ string) error {
	s.updateCalls++
	s.lastRecipient = toEmail
	s.lastBody = body
	return nil
}

func (s *testEmailSender) SendInterventionReminderEmail(_ context.Context, toEmail, _, _, _, _ string) error {
	s.reminderCalls++
	s.lastRecipient = toEmail
	return nil
}

func (s *testEmailSender) SendCustomEmail(context.Context, string, string, string) error { return nil }

type testPushSender struct {
	calls     int
	lastUser  uuid.UUID
	lastTitle string
}

func (s *testPushSender) Send(_ context.Context, userID uuid.UUID, title, _ string, _ map[string]string) error {
	s.calls++
	s.lastUser = userID
	s.lastTitle = title
	return nil
}

func TestTransitionMessageIncludesReasons(t *testing.T) {
	rejected := events.InterventionTransitioned{
		Action:    domain.ActionReject,
		NewStatus: domain.StatusRejetee,
		Reason:    "hors perimetre",
	}
	_, body := transitionMessage(rejected, "plomberie")
	if !strings.Contains(body, "hors perimetre") {
		t.Fatalf("reject body missing reason: %q", body)
	}
	if !strings.Contains(body, "plomberie") {
		t.Fatalf("reject body missing type: %q", body)
	}

	contested := events.InterventionTransitioned{
		Action:       domain.ActionValidateWork,
		NewStatus:    domain.StatusPlanifiee,
		Reason:       "fuite persistante",
		ContestCount: 2,
	}
	title, body := transitionMessage(contested, "plomberie")
	if !strings.Contains(title, "contest") {
		t.Fatalf("contest title = %q", title)
	}
	if !strings.Contains(body, "fuite persistante") || !strings.Contains(body, "2") {
		t.Fatalf("contest body missing reason or count: %q", body)
	}

	approved := events.InterventionTransitioned{
		Action:    domain.ActionValidateWork,
		NewStatus: domain.StatusClotureeLocataire,
	}
	title, _ = transitionMessage(approved, "plomberie")
	if !strings.Contains(title, "valid") {
		t.Fatalf("approval title = %q", title)
	}
}

func TestTransitionMessageScheduleIncludesDate(t *testing.T) {
	when := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	e := events.InterventionTransitioned{
		Action:        domain.ActionConfirmSchedule,
		NewStatus:     domain.StatusPlanifiee,
		ScheduledDate: &when,
	}
	_, body := transitionMessage(e, "chauffage")
	if !strings.Contains(body, "15/09/2026") {
		t.Fatalf("schedule body missing date: %q", body)
	}
}

func TestReminderWindowLabels(t *testing.T) {
	if got := reminderWindowLabel("24h"); got != "demain" {
		t.Fatalf("24h label = %q", got)
	}
	if got := reminderWindowLabel("1h"); got != "dans une heure" {
		t.Fatalf("1h label = %q", got)
	}
}

func TestDeliverEmailUpdate(t *testing.T) {
	sender := &testEmailSender{}
	m := New(nil, sender, testNotificationConfig{}, logger.New("development"))

	payload, _ := json.Marshal(updateEmailPayload{
		Subject: "Intervention planifiée",
		Heading: "Intervention planifiée",
		Body:    "L'intervention plomberie est planifiée.",
	})
	rec := outbox.Record{
		ID:        uuid.New(),
		Kind:      outbox.KindEmail,
		Template:  templateInterventionUpdate,
		Recipient: "locataire@example.com",
		Payload:   payload,
	}

	if err := m.deliver(context.Background(), rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if sender.updateCalls != 1 {
		t.Fatalf("update calls = %d, want 1", sender.updateCalls)
	}
	if sender.lastRecipient != "locataire@example.com" {
		t.Fatalf("recipient = %q", sender.lastRecipient)
	}
}

func TestDeliverEmailUnknownTemplateFails(t *testing.T) {
	m := New(nil, &testEmailSender{}, testNotificationConfig{}, logger.New("development"))

	rec := outbox.Record{
		Kind:      outbox.KindEmail,
		Template:  "nope",
		Recipient: "x@example.com",
		Payload:   json.RawMessage(`{}`),
	}
	if err := m.deliver(context.Background(), rec); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestDeliverPush(t *testing.T) {
	m := New(nil, &testEmailSender{}, testNotificationConfig{}, logger.New("development"))
	push := &testPushSender{}
	m.SetPushSender(push)

	userID := uuid.New()
	payload, _ := json.Marshal(pushPayload{Title: "Rappel d'intervention", Body: "demain"})
	rec := outbox.Record{
		Kind:      outbox.KindPush,
		Template:  templateInterventionReminder,
		Recipient: userID.String(),
		Payload:   payload,
	}

	if err := m.deliver(context.Background(), rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if push.calls != 1 || push.lastUser != userID {
		t.Fatalf("push calls = %d user = %s", push.calls, push.lastUser)
	}
}

func TestDeliverPushWithoutGatewayIsConsumed(t *testing.T) {
	m := New(nil, &testEmailSender{}, testNotificationConfig{}, logger.New("development"))

	rec := outbox.Record{
		Kind:      outbox.KindPush,
		Recipient: uuid.New().String(),
		Payload:   json.RawMessage(`{}`),
	}
	if err := m.deliver(context.Background(), rec); err != nil {
		t.Fatalf("push without gateway should not error: %v", err)
	}
}

type fakeAudience struct {
	gestionnaires []Recipient
	participants  []AssignedRecipient
}

func (f *fakeAudience) TeamGestionnaires(context.Context, uuid.UUID) ([]Recipient, error) {
	return f.gestionnaires, nil
}

func (f *fakeAudience) AssignedParticipants(context.Context, uuid.UUID) ([]AssignedRecipient, error) {
	return f.participants, nil
}

// fakeInAppStore records created rows and answers the reminder dedup check
// from them, mirroring the production check-then-insert behavior.
type fakeInAppStore struct {
	rows []inapp.CreateParams
}

func (f *fakeInAppStore) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	f.rows = append(f.rows, p)
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID}, nil
}

func (f *fakeInAppStore) List(context.Context, uuid.UUID, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}

func (f *fakeInAppStore) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (f *fakeInAppStore) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeInAppStore) MarkAllRead(context.Context, uuid.UUID) error { return nil }

func (f *fakeInAppStore) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeInAppStore) ExistsReminder(_ context.Context, userID, resourceID uuid.UUID, window string) (bool, error) {
	for _, p := range f.rows {
		if p.UserID == userID && p.ResourceID != nil && *p.ResourceID == resourceID &&
			p.Category == "reminder" && p.Metadata != nil && p.Metadata["reminderType"] == window {
			return true, nil
		}
	}
	return false, nil
}

// rowsFor returns the user ids of all recorded in-app rows, with counts.
func (f *fakeInAppStore) rowsFor() map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, p := range f.rows {
		counts[p.UserID]++
	}
	return counts
}

type fakeOutboxStore struct {
	inserts []outbox.InsertParams
}

func (f *fakeOutboxStore) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	f.inserts = append(f.inserts, p)
	return uuid.New(), nil
}

func (f *fakeOutboxStore) GetByID(context.Context, uuid.UUID) (outbox.Record, error) {
	return outbox.Record{}, nil
}

func (f *fakeOutboxStore) MarkProcessing(context.Context, uuid.UUID) error { return nil }

func (f *fakeOutboxStore) MarkSucceeded(context.Context, uuid.UUID) error { return nil }

func (f *fakeOutboxStore) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

func (f *fakeOutboxStore) recipients(kind outbox.Kind) []string {
	var out []string
	for _, p := range f.inserts {
		if p.Kind == kind {
			out = append(out, p.Recipient)
		}
	}
	return out
}

func newFanOutModule(aud AudienceReader, store *fakeInAppStore, ob *fakeOutboxStore) *Module {
	log := logger.New("development")
	m := New(nil, &testEmailSender{}, testNotificationConfig{}, log)
	m.SetAudienceReader(aud)
	m.inAppService = inapp.NewService(store, log)
	m.outbox = ob
	return m
}

func recipient(email string) Recipient {
	return Recipient{UserID: uuid.New(), Email: email}
}

func TestTransitionFanOutAudienceGroups(t *testing.T) {
	// The actor is a team gestionnaire without an assignment; one colleague
	// is assigned (group B), one is only a team member (group A), and the
	// tenant and provider are assigned participants (group C).
	actor := recipient("g1@example.com")
	assignedGest := recipient("g2@example.com")
	plainGest := recipient("g3@example.com")
	tenant := recipient("loc@example.com")
	provider := recipient("pres@example.com")

	aud := &fakeAudience{
		gestionnaires: []Recipient{actor, assignedGest, plainGest},
		participants: []AssignedRecipient{
			{Recipient: assignedGest, Role: domain.AssignGestionnaire},
			{Recipient: tenant, Role: domain.AssignLocataire},
			{Recipient: provider, Role: domain.AssignPrestataire},
		},
	}
	store := &fakeInAppStore{}
	ob := &fakeOutboxStore{}
	m := newFanOutModule(aud, store, ob)

	e := events.InterventionTransitioned{
		BaseEvent:      events.NewBaseEvent(),
		InterventionID: uuid.New(),
		TeamID:         uuid.New(),
		OldStatus:      domain.StatusDemande,
		NewStatus:      domain.StatusApprouvee,
		Action:         domain.ActionApprove,
		ActorID:        actor.UserID,
		ActorRole:      domain.RoleGestionnaire,
	}
	if err := m.handleTransitioned(context.Background(), e); err != nil {
		t.Fatalf("handleTransitioned: %v", err)
	}

	// In-app rows: all three team gestionnaires (actor included), plus the
	// assigned tenant and provider. Exactly one row each.
	rows := store.rowsFor()
	for _, rec := range []Recipient{actor, assignedGest, plainGest, tenant, provider} {
		if rows[rec.UserID] != 1 {
			t.Fatalf("in-app rows for %s = %d, want 1", rec.Email, rows[rec.UserID])
		}
	}
	if len(store.rows) != 5 {
		t.Fatalf("in-app rows = %d, want 5", len(store.rows))
	}

	// Email and push go to the assigned gestionnaire, tenant and provider.
	emails := ob.recipients(outbox.KindEmail)
	if len(emails) != 3 {
		t.Fatalf("outbox emails = %v, want 3", emails)
	}
	for _, want := range []string{assignedGest.Email, tenant.Email, provider.Email} {
		found := false
		for _, got := range emails {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("no outbox email for %s in %v", want, emails)
		}
	}
	pushes := ob.recipients(outbox.KindPush)
	if len(pushes) != 3 {
		t.Fatalf("outbox pushes = %v, want 3", pushes)
	}
	for _, got := range append(emails, pushes...) {
		if got == actor.Email || got == actor.UserID.String() ||
			got == plainGest.Email || got == plainGest.UserID.String() {
			t.Fatalf("urgent channel reached a group A member: %s", got)
		}
	}
}

func TestTransitionFanOutExcludesActingAssignedGestionnaire(t *testing.T) {
	assignedGest := recipient("g2@example.com")
	tenant := recipient("loc@example.com")

	aud := &fakeAudience{
		gestionnaires: []Recipient{assignedGest},
		participants: []AssignedRecipient{
			{Recipient: assignedGest, Role: domain.AssignGestionnaire},
			{Recipient: tenant, Role: domain.AssignLocataire},
		},
	}
	store := &fakeInAppStore{}
	ob := &fakeOutboxStore{}
	m := newFanOutModule(aud, store, ob)

	e := events.InterventionTransitioned{
		BaseEvent:      events.NewBaseEvent(),
		InterventionID: uuid.New(),
		TeamID:         uuid.New(),
		OldStatus:      domain.StatusPlanification,
		NewStatus:      domain.StatusPlanifiee,
		Action:         domain.ActionConfirmSchedule,
		ActorID:        assignedGest.UserID,
		ActorRole:      domain.RoleGestionnaire,
	}
	if err := m.handleTransitioned(context.Background(), e); err != nil {
		t.Fatalf("handleTransitioned: %v", err)
	}

	// The acting gestionnaire keeps their in-app row but gets no urgent
	// channels; the tenant gets everything.
	rows := store.rowsFor()
	if rows[assignedGest.UserID] != 1 || rows[tenant.UserID] != 1 {
		t.Fatalf("in-app rows = %v", rows)
	}
	for _, p := range ob.inserts {
		if p.Recipient == assignedGest.Email || p.Recipient == assignedGest.UserID.String() {
			t.Fatalf("urgent channel reached the actor: %+v", p)
		}
	}
	if len(ob.inserts) != 2 {
		t.Fatalf("outbox inserts = %d, want 2 (tenant email+push)", len(ob.inserts))
	}
}

func TestReminderFanOutSkipsCreatorAndDedupsPerWindow(t *testing.T) {
	creatorGest := recipient("g1@example.com")
	tenant := recipient("loc@example.com")
	provider := recipient("pres@example.com")

	aud := &fakeAudience{
		participants: []AssignedRecipient{
			{Recipient: creatorGest, Role: domain.AssignGestionnaire},
			{Recipient: tenant, Role: domain.AssignLocataire},
			{Recipient: provider, Role: domain.AssignPrestataire},
		},
	}
	store := &fakeInAppStore{}
	ob := &fakeOutboxStore{}
	m := newFanOutModule(aud, store, ob)

	e := events.InterventionReminderDue{
		BaseEvent:      events.NewBaseEvent(),
		InterventionID: uuid.New(),
		TeamID:         uuid.New(),
		CreatedBy:      creatorGest.UserID,
		Window:         "24h",
		ScheduledDate:  time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := m.handleReminderDue(context.Background(), e); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	// The sweep fires again for the same window; the stored in-app row is the
	// dedup marker, so nothing new is delivered on any channel.
	if err := m.handleReminderDue(context.Background(), e); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	rows := store.rowsFor()
	if rows[creatorGest.UserID] != 0 {
		t.Fatalf("creator gestionnaire received a reminder: %v", rows)
	}
	if rows[tenant.UserID] != 1 || rows[provider.UserID] != 1 {
		t.Fatalf("reminder rows = %v, want exactly one per participant", rows)
	}
	if len(ob.inserts) != 4 {
		t.Fatalf("outbox inserts = %d, want 4 (email+push for tenant and provider)", len(ob.inserts))
	}

	// A different window is a distinct reminder and goes out once more.
	e.Window = "1h"
	if err := m.handleReminderDue(context.Background(), e); err != nil {
		t.Fatalf("1h sweep: %v", err)
	}
	rows = store.rowsFor()
	if rows[tenant.UserID] != 2 || rows[provider.UserID] != 2 {
		t.Fatalf("rows after 1h window = %v, want 2 per participant", rows)
	}
	if len(ob.inserts) != 8 {
		t.Fatalf("outbox inserts after 1h window = %d, want 8", len(ob.inserts))
	}
}

func TestDetailURL(t *testing.T) {
	m := New(nil, &testEmailSender{}, testNotificationConfig{}, logger.New("development"))
	id := uuid.New()
	want := "https://app.example.com/interventions/" + id.String()
	if got := m.detailURL(id); got != want {
		t.Fatalf("detailURL = %q, want %q", got, want)
	}
}
