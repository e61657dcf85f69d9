package scheduler

import (
	"context"
	"time"

	"gestimmo_backend/internal/notification/outbox"
	"gestimmo_backend/platform/config"
	"gestimmo_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const dispatchBatchSize = 50

// NotificationOutboxDispatcher claims due outbox records and hands them to
// asynq. A claimed record that cannot be enqueued is put back to pending so
// the next tick retries it.
type NotificationOutboxDispatcher struct {
	client *Client
	repo   *outbox.Repository
	log    *logger.Logger
}

func NewNotificationOutboxDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &NotificationOutboxDispatcher{
		client: client,
		repo:   outbox.New(pool),
		log:    log,
	}, nil
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := d.repo.ClaimPending(ctx, dispatchBatchSize)
		if err != nil {
			d.log.Warn("outbox claim failed", "error", err)
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)

		for _, rec := range records {
			rec := rec
			g.Go(func() error {
				payload := NotificationOutboxDuePayload{
					OutboxID: rec.ID.String(),
					TeamID:   rec.TeamID.String(),
				}

				if err := d.client.EnqueueNotificationOutboxDue(gctx, payload, rec.RunAt); err != nil {
					msg := err.Error()
					_ = d.repo.MarkPending(gctx, rec.ID, &msg)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}
