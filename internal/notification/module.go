// Package notification fans domain events out to the three delivery
// channels: in-app rows (authoritative, written synchronously with the
// event), and email/push (outbox rows drained later by the scheduler).
// Domain modules publish events and never talk to a channel directly.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"gestimmo_backend/internal/email"
	"gestimmo_backend/internal/events"
	apphttp "gestimmo_backend/internal/http"
	"gestimmo_backend/internal/interventions/domain"
	notifhandler "gestimmo_backend/internal/notification/handler"
	"gestimmo_backend/internal/notification/inapp"
	"gestimmo_backend/internal/notification/outbox"
	"gestimmo_backend/platform/config"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resourceTypeIntervention = "intervention"

// PushSender delivers a push notification to a user's devices.
type PushSender interface {
	Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
}

// outboxStore is the slice of the outbox repository the fan-out and drain
// paths touch. Faked in tests alongside the audience reader.
type outboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// updateEmailPayload is the outbox payload for a status-change email.
type updateEmailPayload struct {
	Subject   string `json:"subject"`
	Heading   string `json:"heading"`
	Body      string `json:"body"`
	DetailURL string `json:"detailUrl"`
}

// reminderEmailPayload is the outbox payload for a reminder email.
type reminderEmailPayload struct {
	InterventionType string `json:"interventionType"`
	ScheduledDate    string `json:"scheduledDate"`
	WindowLabel      string `json:"windowLabel"`
	DetailURL        string `json:"detailUrl"`
}

// pushPayload is the outbox payload for a push delivery.
type pushPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

const (
	templateInterventionUpdate   = "intervention_update"
	templateInterventionReminder = "intervention_reminder"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	pool         *pgxpool.Pool
	sender       email.Sender
	push         PushSender
	cfg          config.NotificationConfig
	log          *logger.Logger
	audience     AudienceReader
	outbox       outboxStore
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
}

// New creates a new notification module.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	inAppRepo := inapp.NewRepository(pool)
	inAppSvc := inapp.NewService(inAppRepo, log)

	m := &Module{
		pool:         pool,
		sender:       sender,
		cfg:          cfg,
		log:          log,
		outbox:       outbox.New(pool),
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
	}
	if pool != nil {
		m.audience = NewAudienceReader(pool)
	}
	return m
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers the in-app notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}
	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
}

// RegisterHandlers subscribes the module to the domain events it fans out.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.InterventionRequested{}.EventName(), events.HandlerFunc(m.handleRequested))
	bus.Subscribe(events.InterventionTransitioned{}.EventName(), events.HandlerFunc(m.handleTransitioned))
	bus.Subscribe(events.InterventionReminderDue{}.EventName(), events.HandlerFunc(m.handleReminderDue))
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), events.HandlerFunc(m.handleOutboxDue))
}

// SetPushSender injects the push gateway client.
func (m *Module) SetPushSender(sender PushSender) { m.push = sender }

// SetAudienceReader overrides the membership source (used by tests).
func (m *Module) SetAudienceReader(reader AudienceReader) { m.audience = reader }

// InAppService exposes the in-app notification service for integration points.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// handleRequested notifies the team's gestionnaires of a new request.
func (m *Module) handleRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(events.InterventionRequested)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if m.audience == nil {
		return nil
	}

	gestionnaires, err := m.audience.TeamGestionnaires(ctx, e.TeamID)
	if err != nil {
		return err
	}

	resourceID := e.InterventionID
	title := "Nouvelle demande d'intervention"
	content := fmt.Sprintf("Une demande d'intervention %s (urgence %s) attend votre approbation.", e.Type, e.Urgency)

	for _, rec := range gestionnaires {
		if rec.UserID == e.CreatedBy {
			continue
		}
		if err := m.inAppService.Send(ctx, inapp.SendParams{
			TeamID:       e.TeamID,
			UserID:       rec.UserID,
			Title:        title,
			Content:      content,
			ResourceID:   &resourceID,
			ResourceType: resourceTypeIntervention,
		}); err != nil {
			m.log.Error("in-app notification failed", "userId", rec.UserID, "error", err)
		}
	}
	return nil
}

// handleTransitioned computes the three audience groups of a transition and
// records deliveries. Channel failures are logged and counted, never
// propagated to the transition that triggered them.
func (m *Module) handleTransitioned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.InterventionTransitioned)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if m.audience == nil {
		return nil
	}

	interventionType := m.resolveInterventionType(ctx, e.InterventionID, e.TeamID)
	title, body := transitionMessage(e, interventionType)
	resourceID := e.InterventionID
	failures := 0

	// Group A: every team gestionnaire gets the in-app record, assigned or
	// not. The actor is not excluded here; their own bell entry doubles as
	// the audit trail of what they did.
	gestionnaires, err := m.audience.TeamGestionnaires(ctx, e.TeamID)
	if err != nil {
		return err
	}
	for _, rec := range gestionnaires {
		if err := m.inAppService.Send(ctx, inapp.SendParams{
			TeamID:       e.TeamID,
			UserID:       rec.UserID,
			Title:        title,
			Content:      body,
			ResourceID:   &resourceID,
			ResourceType: resourceTypeIntervention,
		}); err != nil {
			failures++
			m.log.Error("in-app notification failed", "userId", rec.UserID, "error", err)
		}
	}

	participants, err := m.audience.AssignedParticipants(ctx, e.InterventionID)
	if err != nil {
		return err
	}

	for _, rec := range participants {
		switch rec.Role {
		case domain.AssignGestionnaire:
			// Group B: assigned gestionnaires get the urgent channels on top
			// of the in-app row already written via group A. The actor is
			// excluded from this group only.
			if rec.UserID == e.ActorID {
				continue
			}
			failures += m.enqueueUpdateDeliveries(ctx, e.TeamID, e.InterventionID, rec.Recipient, title, body)
		case domain.AssignLocataire, domain.AssignPrestataire:
			// Group C: tenant and provider get every channel.
			if err := m.inAppService.Send(ctx, inapp.SendParams{
				TeamID:       e.TeamID,
				UserID:       rec.UserID,
				Title:        title,
				Content:      body,
				ResourceID:   &resourceID,
				ResourceType: resourceTypeIntervention,
			}); err != nil {
				failures++
				m.log.Error("in-app notification failed", "userId", rec.UserID, "error", err)
			}
			failures += m.enqueueUpdateDeliveries(ctx, e.TeamID, e.InterventionID, rec.Recipient, title, body)
		}
	}

	if failures > 0 {
		m.log.Warn("transition fan-out finished with failures",
			"interventionId", e.InterventionID, "action", e.Action, "failures", failures)
	}
	return nil
}

// enqueueUpdateDeliveries inserts the email and push outbox rows for one
// recipient. Returns the number of failed insertions.
func (m *Module) enqueueUpdateDeliveries(ctx context.Context, teamID, interventionID uuid.UUID, rec Recipient, title, body string) int {
	failures := 0

	if rec.Email != "" {
		_, err := m.outbox.Insert(ctx, outbox.InsertParams{
			TeamID:    teamID,
			Kind:      outbox.KindEmail,
			Template:  templateInterventionUpdate,
			Recipient: rec.Email,
			Payload: updateEmailPayload{
				Subject:   title,
				Heading:   title,
				Body:      body,
				DetailURL: m.detailURL(interventionID),
			},
		})
		if err != nil {
			failures++
			m.log.Error("outbox email insert failed", "recipient", rec.Email, "error", err)
		}
	}

	_, err := m.outbox.Insert(ctx, outbox.InsertParams{
		TeamID:    teamID,
		Kind:      outbox.KindPush,
		Template:  templateInterventionUpdate,
		Recipient: rec.UserID.String(),
		Payload: pushPayload{
			Title: title,
			Body:  body,
			Data:  map[string]string{"interventionId": interventionID.String()},
		},
	})
	if err != nil {
		failures++
		m.log.Error("outbox push insert failed", "userId", rec.UserID, "error", err)
	}

	return failures
}

// handleReminderDue delivers one reminder window to every participant that
// has not received it yet. The in-app row doubles as the dedup marker, so a
// re-run of the sweep never double-sends.
func (m *Module) handleReminderDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.InterventionReminderDue)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if m.audience == nil {
		return nil
	}

	participants, err := m.audience.AssignedParticipants(ctx, e.InterventionID)
	if err != nil {
		return err
	}

	interventionType := m.resolveInterventionType(ctx, e.InterventionID, e.TeamID)
	if interventionType == "" {
		interventionType = "intervention"
	}
	windowLabel := reminderWindowLabel(e.Window)
	scheduled := e.ScheduledDate.Format("02/01/2006 à 15h04")
	title := "Rappel d'intervention"
	content := fmt.Sprintf("L'intervention %s est prévue %s (%s).", interventionType, windowLabel, scheduled)
	resourceID := e.InterventionID

	for _, rec := range participants {
		// Reminders skip whoever filed the request to avoid telling tenants
		// about visits they asked for twice over.
		if rec.Role == domain.AssignGestionnaire && rec.UserID == e.CreatedBy {
			continue
		}

		already, err := m.inAppService.HasReminder(ctx, rec.UserID, e.InterventionID, e.Window)
		if err != nil {
			m.log.Error("reminder dedup check failed", "userId", rec.UserID, "error", err)
			continue
		}
		if already {
			continue
		}

		if err := m.inAppService.Send(ctx, inapp.SendParams{
			TeamID:       e.TeamID,
			UserID:       rec.UserID,
			Title:        title,
			Content:      content,
			ResourceID:   &resourceID,
			ResourceType: resourceTypeIntervention,
			Category:     "reminder",
			Metadata:     map[string]any{"reminderType": e.Window},
		}); err != nil {
			m.log.Error("reminder in-app insert failed", "userId", rec.UserID, "error", err)
			continue
		}

		if rec.Email != "" {
			_, err := m.outbox.Insert(ctx, outbox.InsertParams{
				TeamID:    e.TeamID,
				Kind:      outbox.KindEmail,
				Template:  templateInterventionReminder,
				Recipient: rec.Email,
				Payload: reminderEmailPayload{
					InterventionType: interventionType,
					ScheduledDate:    scheduled,
					WindowLabel:      windowLabel,
					DetailURL:        m.detailURL(e.InterventionID),
				},
			})
			if err != nil {
				m.log.Error("reminder outbox email insert failed", "recipient", rec.Email, "error", err)
			}
		}

		if _, err := m.outbox.Insert(ctx, outbox.InsertParams{
			TeamID:    e.TeamID,
			Kind:      outbox.KindPush,
			Template:  templateInterventionReminder,
			Recipient: rec.UserID.String(),
			Payload: pushPayload{
				Title: title,
				Body:  content,
				Data:  map[string]string{"interventionId": e.InterventionID.String()},
			},
		}); err != nil {
			m.log.Error("reminder outbox push insert failed", "userId", rec.UserID, "error", err)
		}
	}
	return nil
}

// handleOutboxDue performs the actual channel send for a claimed outbox
// record. Returning an error requeues the asynq task for retry.
func (m *Module) handleOutboxDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.NotificationOutboxDue)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	rec, err := m.outbox.GetByID(ctx, e.OutboxID)
	if err != nil {
		return fmt.Errorf("load outbox record %s: %w", e.OutboxID, err)
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	if err := m.deliver(ctx, rec); err != nil {
		m.log.DeliveryFailure(string(rec.Kind), rec.Recipient, err)
		if markErr := m.outbox.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
			m.log.Error("mark outbox failed errored", "outboxId", rec.ID, "error", markErr)
		}
		return err
	}

	return m.outbox.MarkSucceeded(ctx, rec.ID)
}

func (m *Module) deliver(ctx context.Context, rec outbox.Record) error {
	switch rec.Kind {
	case outbox.KindEmail:
		return m.deliverEmail(ctx, rec)
	case outbox.KindPush:
		return m.deliverPush(ctx, rec)
	default:
		return fmt.Errorf("unknown outbox kind %q", rec.Kind)
	}
}

func (m *Module) deliverEmail(ctx context.Context, rec outbox.Record) error {
	if m.sender == nil {
		return fmt.Errorf("email sender not configured")
	}

	switch rec.Template {
	case templateInterventionUpdate:
		var p updateEmailPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return m.sender.SendInterventionUpdateEmail(ctx, rec.Recipient, p.Subject, p.Heading, p.Body, p.DetailURL)
	case templateInterventionReminder:
		var p reminderEmailPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode reminder payload: %w", err)
		}
		return m.sender.SendInterventionReminderEmail(ctx, rec.Recipient, p.InterventionType, p.ScheduledDate, p.WindowLabel, p.DetailURL)
	default:
		return fmt.Errorf("unknown email template %q", rec.Template)
	}
}

func (m *Module) deliverPush(ctx context.Context, rec outbox.Record) error {
	if m.push == nil {
		// No gateway configured. The record is consumed, not retried.
		return nil
	}

	userID, err := uuid.Parse(rec.Recipient)
	if err != nil {
		return fmt.Errorf("invalid push recipient %q: %w", rec.Recipient, err)
	}

	var p pushPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return fmt.Errorf("decode push payload: %w", err)
	}
	return m.push.Send(ctx, userID, p.Title, p.Body, p.Data)
}

func (m *Module) resolveInterventionType(ctx context.Context, interventionID, teamID uuid.UUID) string {
	if m.pool == nil {
		return ""
	}
	var interventionType string
	err := m.pool.QueryRow(ctx,
		`SELECT type FROM interventions WHERE id = $1 AND team_id = $2`,
		interventionID, teamID,
	).Scan(&interventionType)
	if err != nil {
		return ""
	}
	return interventionType
}

func (m *Module) detailURL(interventionID uuid.UUID) string {
	return fmt.Sprintf("%s/interventions/%s", m.cfg.GetAppBaseURL(), interventionID)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
