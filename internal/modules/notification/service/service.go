package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"anoa.com/memberclub/internal/entity"
	notifRepo "anoa.com/memberclub/internal/modules/notification/repository"
	"anoa.com/memberclub/pkg/apperror"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotificationNotFound = apperror.New(http.StatusNotFound, "notification not found", apperror.ErrNotFound)

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	NotifyRankUp(ctx context.Context, userID uuid.UUID, fromRank, toRank string, total int) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
	log         *logger.Logger
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client, log *logger.Logger) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
		log:         log,
	}
}

// Channel is where a member's live notifications are published.
func Channel(userID uuid.UUID) string {
	return fmt.Sprintf("member_notifications:%s", userID.String())
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	// 1. Save to DB
	if err := s.repo.Create(ctx, notification); err != nil {
		return apperror.Unavailable("store notification", err)
	}

	// 2. Publish to Redis if Redis is available
	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err == nil {
			if err := s.redisClient.Publish(ctx, Channel(notification.UserID), payload).Err(); err != nil {
				s.log.WithUserID(notification.UserID).WithError(err).Warn("failed to publish notification")
			}
		}
	}

	return nil
}

func (s *notificationService) NotifyRankUp(ctx context.Context, userID uuid.UUID, fromRank, toRank string, total int) error {
	return s.CreateNotification(ctx, &entity.Notification{
		UserID:  userID,
		Type:    entity.NotificationRankUp,
		Message: fmt.Sprintf("You moved up from %s to %s with %d points!", fromRank, toRank, total),
	})
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.repo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Unavailable("list notifications", err)
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}
	return notifications, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.MarkAsRead(ctx, userID, id)
	if err != nil {
		return apperror.Unavailable("mark notification read", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return apperror.Unavailable("mark notifications read", err)
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperror.Unavailable("count unread notifications", err)
	}
	return count, nil
}
