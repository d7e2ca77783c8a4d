package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

// NotificationService owns the fan-out stage and the notification resource
// endpoints.
type NotificationService struct {
	repo  NotificationRepository
	tasks TaskRepository
	users UserRepository
}

func NewNotificationService(repo NotificationRepository, tasks TaskRepository, users UserRepository) *NotificationService {
	return &NotificationService{repo: repo, tasks: tasks, users: users}
}

// Publish turns events into notification documents in one batch write.
// Failures are logged here; the caller decides whether they are fatal for
// its own operation.
func (s *NotificationService) Publish(ctx context.Context, events ...models.NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now()
	notifications := make([]models.Notification, 0, len(events))
	for _, ev := range events {
		notifications = append(notifications, models.Notification{
			User:      ev.Recipient,
			Actor:     ev.Actor,
			Task:      ev.Task,
			Message:   ev.Message,
			Read:      false,
			CreatedAt: now,
		})
	}
	if err := s.repo.InsertMany(ctx, notifications); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_FANOUT_FAILED, Description: Failed to write %d notification(s): %v", len(notifications), err)
		return dependency("notification fan-out", err)
	}
	return nil
}

// List returns the caller's notifications newest-first, with task titles and
// actor references expanded.
func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID) ([]models.NotificationView, error) {
	notifications, err := s.repo.FindByRecipient(ctx, userID)
	if err != nil {
		return nil, dependency("list notifications", err)
	}

	views := make([]models.NotificationView, 0, len(notifications))
	for _, n := range notifications {
		view := models.NotificationView{
			ID:        n.ID,
			User:      n.User,
			Task:      n.Task,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
		if !n.Task.IsZero() {
			if task, err := s.tasks.FindByID(ctx, n.Task); err == nil {
				view.TaskTitle = task.Title
			}
		}
		if !n.Actor.IsZero() {
			if actor, err := s.users.FindByID(ctx, n.Actor); err == nil {
				ref := actor.Ref()
				view.Actor = &ref
			}
		}
		views = append(views, view)
	}
	return views, nil
}

type CreateNotificationInput struct {
	User    string `json:"user"`
	Task    string `json:"task"`
	Message string `json:"message"`
}

// Create handles the explicit notification-creation endpoint.
func (s *NotificationService) Create(ctx context.Context, actor models.User, in CreateNotificationInput) (models.Notification, error) {
	recipientID, err := primitive.ObjectIDFromHex(in.User)
	if err != nil {
		return models.Notification{}, validationf("Valid user ID is required")
	}
	taskID, err := primitive.ObjectIDFromHex(in.Task)
	if err != nil {
		return models.Notification{}, validationf("Valid task ID is required")
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return models.Notification{}, validationf("Message is required")
	}

	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Notification{}, &NotFoundError{Resource: "Task"}
		}
		return models.Notification{}, dependency("load task", err)
	}

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		User:      recipientID,
		Actor:     actor.ID,
		Task:      taskID,
		Message:   message,
		Read:      false,
		CreatedAt: time.Now(),
	}
	if err := s.repo.InsertMany(ctx, []models.Notification{notification}); err != nil {
		return models.Notification{}, dependency("create notification", err)
	}
	return notification, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) (models.Notification, error) {
	notification, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Notification{}, &NotFoundError{Resource: "Notification"}
		}
		return models.Notification{}, dependency("mark notification read", err)
	}
	return notification, nil
}

// MarkAllRead marks every unread notification for the caller and returns how
// many were modified. Calling it again immediately yields zero.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	modified, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, dependency("mark all notifications read", err)
	}
	return modified, nil
}

// Delete permanently removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	deleted, err := s.repo.Delete(ctx, notificationID, userID)
	if err != nil {
		return dependency("delete notification", err)
	}
	if deleted == 0 {
		return &NotFoundError{Resource: "Notification"}
	}
	return nil
}
