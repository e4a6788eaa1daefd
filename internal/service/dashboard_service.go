package service

import (
	"context"
	"fmt"

	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/google/uuid"
)

type DashboardStats struct {
	TotalRequests       int64  `json:"total_requests"`
	InProgress          int64  `json:"in_progress"`
	Approved            int64  `json:"approved"`
	Rejected            int64  `json:"rejected"`
	Cancelled           int64  `json:"cancelled"`
	MyPendingApprovals  int64  `json:"my_pending_approvals"`
	UnreadNotifications int64  `json:"unread_notifications"`
	TotalUsers          *int64 `json:"total_users,omitempty"`
	TotalTemplates      *int64 `json:"total_templates,omitempty"`
}

type DashboardService interface {
	GetStats(ctx context.Context, actor model.Actor) (*DashboardStats, error)
}

type dashboardService struct {
	requests      repository.RequestRepository
	users         repository.UserRepository
	templates     repository.TemplateRepository
	notifications repository.NotificationRepository
}

func NewDashboardService(
	requests repository.RequestRepository,
	users repository.UserRepository,
	templates repository.TemplateRepository,
	notifications repository.NotificationRepository,
) DashboardService {
	return &dashboardService{requests: requests, users: users, templates: templates, notifications: notifications}
}

// GetStats counts the requests the actor can see; administrators also get
// user and template totals.
func (s *dashboardService) GetStats(ctx context.Context, actor model.Actor) (*DashboardStats, error) {
	var visibleTo *uuid.UUID
	if !actor.Role.Can(model.CapViewAllRequests) {
		visibleTo = &actor.ID
	}

	counts, err := s.requests.CountByStatus(ctx, visibleTo)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}
	pending, err := s.requests.CountAwaiting(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending approvals: %w", err)
	}
	unread, err := s.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	stats := &DashboardStats{
		InProgress:          counts[model.StatusInProgress],
		Approved:            counts[model.StatusApproved],
		Rejected:            counts[model.StatusRejected],
		Cancelled:           counts[model.StatusCancelled],
		MyPendingApprovals:  pending,
		UnreadNotifications: unread,
	}
	for _, n := range counts {
		stats.TotalRequests += n
	}

	if actor.Role.Can(model.CapAdminister) {
		users, err := s.users.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count users: %w", err)
		}
		templates, err := s.templates.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count templates: %w", err)
		}
		stats.TotalUsers = &users
		stats.TotalTemplates = &templates
	}
	return stats, nil
}
