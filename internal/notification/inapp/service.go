package inapp

import (
	"context"

	"gestimmo_backend/platform/apperr"
	"gestimmo_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service depends on. *Repository is
// the production implementation; fan-out tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ExistsReminder(ctx context.Context, userID, resourceID uuid.UUID, window string) (bool, error)
}

type Service struct {
	repo Store
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

type SendParams struct {
	TeamID       uuid.UUID
	UserID       uuid.UUID
	Title        string
	Content      string
	ResourceID   *uuid.UUID
	ResourceType string
	Category     string // "info", "success", "warning", "error", "reminder"
	Metadata     map[string]any
}

// Send persists the notification for later retrieval from the bell menu.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	if s == nil || s.repo == nil {
		return apperr.Internal("in-app notification service not configured")
	}

	if p.Category == "" {
		p.Category = "info"
	}

	var resourceType *string
	if p.ResourceType != "" {
		resourceType = &p.ResourceType
	}

	_, err := s.repo.Create(ctx, CreateParams{
		TeamID:       p.TeamID,
		UserID:       p.UserID,
		Title:        p.Title,
		Content:      p.Content,
		ResourceID:   p.ResourceID,
		ResourceType: resourceType,
		Category:     p.Category,
		Metadata:     p.Metadata,
	})
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		}
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return s.repo.List(ctx, userID, pageSize, (page-1)*pageSize)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// HasReminder reports whether the reminder for (user, resource, window) was
// already delivered.
func (s *Service) HasReminder(ctx context.Context, userID, resourceID uuid.UUID, window string) (bool, error) {
	return s.repo.ExistsReminder(ctx, userID, resourceID, window)
}
