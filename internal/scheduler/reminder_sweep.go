package scheduler

import (
	"context"
	"time"

	"gestimmo_backend/internal/events"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultReminderSweepInterval = time.Hour

// reminderWindow is a named time range ahead of now in which a scheduled
// intervention becomes due for a reminder.
type reminderWindow struct {
	Name string
	From time.Time
	To   time.Time
}

// reminderWindows computes the sweep ranges. The tolerance around each window
// absorbs cron-interval drift; duplicate hits are deduplicated downstream
// against the stored in-app reminder row.
func reminderWindows(now time.Time) []reminderWindow {
	return []reminderWindow{
		{Name: "24h", From: now.Add(23 * time.Hour), To: now.Add(25 * time.Hour)},
		{Name: "1h", From: now.Add(50 * time.Minute), To: now.Add(70 * time.Minute)},
	}
}

// ReminderSweep periodically scans planned interventions and publishes a
// reminder event for each one whose scheduled date falls inside a window.
type ReminderSweep struct {
	pool     *pgxpool.Pool
	bus      events.Bus
	log      *logger.Logger
	interval time.Duration
}

func NewReminderSweep(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger, interval time.Duration) *ReminderSweep {
	if interval <= 0 {
		interval = defaultReminderSweepInterval
	}

	return &ReminderSweep{
		pool:     pool,
		bus:      bus,
		log:      log,
		interval: interval,
	}
}

func (s *ReminderSweep) Run(ctx context.Context) {
	if s == nil || s.pool == nil || s.bus == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReminderSweep) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	for _, window := range reminderWindows(time.Now()) {
		if err := s.sweepWindow(ctx, window); err != nil {
			s.log.Warn("reminder sweep failed", "window", window.Name, "error", err)
		}
	}
}

func (s *ReminderSweep) sweepWindow(ctx context.Context, window reminderWindow) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, team_id, created_by, scheduled_date
		FROM interventions
		WHERE status = 'planifiee' AND scheduled_date BETWEEN $1 AND $2
	`, window.From, window.To)
	if err != nil {
		return err
	}
	defer rows.Close()

	type due struct {
		id            uuid.UUID
		teamID        uuid.UUID
		createdBy     uuid.UUID
		scheduledDate time.Time
	}

	var hits []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.id, &d.teamID, &d.createdBy, &d.scheduledDate); err != nil {
			return err
		}
		hits = append(hits, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range hits {
		s.bus.Publish(ctx, events.InterventionReminderDue{
			BaseEvent:      events.NewBaseEvent(),
			InterventionID: d.id,
			TeamID:         d.teamID,
			CreatedBy:      d.createdBy,
			Window:         window.Name,
			ScheduledDate:  d.scheduledDate,
		})
	}

	if len(hits) > 0 {
		s.log.Info("reminder sweep published", "window", window.Name, "count", len(hits))
	}

	return nil
}
