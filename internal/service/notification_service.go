package service

import (
	"context"
	"fmt"

	"workflowbridge/internal/apperr"
	"workflowbridge/internal/broadcast"
	"workflowbridge/internal/mailer"
	"workflowbridge/internal/metrics"
	"workflowbridge/internal/model"
	"workflowbridge/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotifyInput describes one user-facing notification and its optional email.
type NotifyInput struct {
	UserID        uuid.UUID
	RequestID     uuid.UUID
	RequestNumber string
	DepartmentID  uuid.UUID
	Type          model.NotificationType
	Message       string
	Email         *mailer.Email
}

// Notifier records a notification and pushes it over every channel.
// Failures are logged and counted, never returned.
type Notifier interface {
	Notify(ctx context.Context, in NotifyInput)
}

type NotificationPage struct {
	Items       []model.Notification `json:"items"`
	Total       int64                `json:"total"`
	UnreadCount int64                `json:"unread_count"`
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, actor model.Actor, unreadOnly bool, offset, limit int) (*NotificationPage, error)
	MarkRead(ctx context.Context, actor model.Actor, id string) error
	MarkAllRead(ctx context.Context, actor model.Actor) (int64, error)
}

type notificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	broadcaster   broadcast.Broadcaster
	mail          mailer.Sender
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	broadcaster broadcast.Broadcaster,
	mail mailer.Sender,
	m *metrics.Metrics,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		users:         users,
		broadcaster:   broadcaster,
		mail:          mail,
		metrics:       m,
		logger:        logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, in NotifyInput) {
	log := s.logger.With(
		zap.String("user_id", in.UserID.String()),
		zap.String("request_number", in.RequestNumber),
		zap.String("type", string(in.Type)),
	)

	n := &model.Notification{
		UserID:        in.UserID,
		RequestID:     in.RequestID,
		RequestNumber: in.RequestNumber,
		Type:          in.Type,
		Message:       in.Message,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		log.Error("failed to store notification", zap.Error(err))
		s.metrics.SideEffectFailed(metrics.ChannelNotification)
		return
	}

	if err := s.broadcaster.Publish(ctx, broadcast.EventNotificationCreated, broadcast.NotificationPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		RequestID:      n.RequestID,
		RequestNumber:  n.RequestNumber,
		DepartmentID:   in.DepartmentID,
		Type:           string(n.Type),
		Message:        n.Message,
	}); err != nil {
		log.Warn("failed to broadcast notification", zap.Error(err))
		s.metrics.SideEffectFailed(metrics.ChannelBroadcast)
	}

	if in.Email == nil {
		return
	}
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		log.Warn("email recipient lookup failed", zap.Error(err))
		s.metrics.SideEffectFailed(metrics.ChannelEmail)
		return
	}
	if err := s.mail.Send(ctx, user.Email, in.Email.Subject, in.Email.HTML); err != nil {
		log.Warn("failed to send notification email", zap.Error(err))
		s.metrics.SideEffectFailed(metrics.ChannelEmail)
	}
}

func (s *notificationService) List(ctx context.Context, actor model.Actor, unreadOnly bool, offset, limit int) (*NotificationPage, error) {
	items, total, err := s.notifications.ListForUser(ctx, actor.ID, unreadOnly, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return &NotificationPage{Items: items, Total: total, UnreadCount: unread}, nil
}

// MarkRead only touches the caller's own notifications.
func (s *notificationService) MarkRead(ctx context.Context, actor model.Actor, id string) error {
	nID, err := parseID("notification", id)
	if err != nil {
		return err
	}
	found, err := s.notifications.MarkRead(ctx, actor.ID, nID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !found {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor model.Actor) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}
