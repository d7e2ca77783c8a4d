package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

// CommentService manages the comment threads embedded in a task and the
// @mention notifications they trigger.
type CommentService struct {
	tasks    TaskRepository
	views    *TaskService
	notifier Notifier
	mentions *MentionResolver
}

func NewCommentService(tasks TaskRepository, views *TaskService, notifier Notifier, mentions *MentionResolver) *CommentService {
	return &CommentService{tasks: tasks, views: views, notifier: notifier, mentions: mentions}
}

func (s *CommentService) AddComment(ctx context.Context, actor models.User, taskID primitive.ObjectID, text string) (models.TaskView, error) {
	if strings.TrimSpace(text) == "" {
		return models.TaskView{}, validationf("Comment is required")
	}

	task, err := s.views.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	if !task.IsParticipant(actor.ID) {
		return models.TaskView{}, &AuthorizationError{Message: "Not authorized to comment on this task"}
	}

	now := time.Now()
	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		User:      actor.ID,
		Comment:   text,
		CreatedAt: now,
		Replies:   []models.Reply{},
	}
	task.Comments = append(task.Comments, comment)
	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityCommentAdded,
		Text:      text,
		CreatedAt: now,
	})

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, dependency("update task", err)
	}

	s.notifyMentions(ctx, actor, task, ExtractMentions(text), text)
	return s.views.PopulateTask(ctx, task)
}

func (s *CommentService) EditComment(ctx context.Context, actor models.User, taskID, commentID primitive.ObjectID, text string) (models.TaskView, error) {
	if strings.TrimSpace(text) == "" {
		return models.TaskView{}, validationf("Comment is required")
	}

	task, err := s.views.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	comment := task.FindComment(commentID)
	if comment == nil {
		return models.TaskView{}, &NotFoundError{Resource: "Comment"}
	}
	if comment.User != actor.ID {
		return models.TaskView{}, &AuthorizationError{Message: "Not authorized to edit this comment"}
	}

	oldText := comment.Comment
	now := time.Now()
	comment.Comment = text
	comment.UpdatedAt = &now
	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityCommentEdited,
		Old:       oldText,
		New:       text,
		CreatedAt: now,
	})

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, dependency("update task", err)
	}

	// Only usernames new to the text get a notification on edit.
	s.notifyMentions(ctx, actor, task, NewMentions(oldText, text), text)
	return s.views.PopulateTask(ctx, task)
}

func (s *CommentService) DeleteComment(ctx context.Context, actor models.User, taskID, commentID primitive.ObjectID) (models.TaskView, error) {
	task, err := s.views.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	idx := -1
	for i := range task.Comments {
		if task.Comments[i].ID == commentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.TaskView{}, &NotFoundError{Resource: "Comment"}
	}
	comment := task.Comments[idx]
	if comment.User != actor.ID && !task.IsOwner(actor.ID) {
		return models.TaskView{}, &AuthorizationError{Message: "Not authorized to delete this comment"}
	}

	task.Comments = append(task.Comments[:idx], task.Comments[idx+1:]...)
	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityCommentDeleted,
		Text:      comment.Comment,
		CreatedAt: time.Now(),
	})

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, dependency("update task", err)
	}
	return s.views.PopulateTask(ctx, task)
}

func (s *CommentService) AddReply(ctx context.Context, actor models.User, taskID, commentID primitive.ObjectID, text string) (models.TaskView, error) {
	if strings.TrimSpace(text) == "" {
		return models.TaskView{}, validationf("Reply is required")
	}

	task, err := s.views.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	if !task.IsParticipant(actor.ID) {
		return models.TaskView{}, &AuthorizationError{Message: "Not authorized to comment on this task"}
	}
	comment := task.FindComment(commentID)
	if comment == nil {
		return models.TaskView{}, &NotFoundError{Resource: "Comment"}
	}

	now := time.Now()
	comment.Replies = append(comment.Replies, models.Reply{
		ID:        primitive.NewObjectID(),
		User:      actor.ID,
		Comment:   text,
		CreatedAt: now,
	})
	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityReplyAdded,
		Text:      text,
		CreatedAt: now,
	})

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, dependency("update task", err)
	}

	s.notifyMentions(ctx, actor, task, ExtractMentions(text), text)
	return s.views.PopulateTask(ctx, task)
}

func (s *CommentService) EditReply(ctx context.Context, actor models.User, taskID, commentID, replyID primitive.ObjectID, text string) (models.TaskView, error) {
	if strings.TrimSpace(text) == "" {
		return models.TaskView{}, validationf("Reply is required")
	}

	task, err := s.views.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	comment := task.FindComment(commentID)
	if comment == nil {
		return models.TaskView{}, &NotFoundError{Resource: "Comment"}
	}
	reply := comment.FindReply(replyID)
	if reply == nil {
		return models.TaskView{}, &NotFoundError{Resource: "Reply"}
	}
	if reply.User != actor.ID {
		return models.TaskView{}, &AuthorizationError{Message: "Not authorized to edit this reply"}
	}

	oldText := reply.Comment
	now := time.Now()
	reply.Comment = text
	reply.UpdatedAt = &now
	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityReplyEdited,
		Old:       oldText,
		New:       text,
		CreatedAt: now,
	})

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, dependency("update task", err)
	}

	s.notifyMentions(ctx, actor, task, NewMentions(oldText, text), text)
	return s.views.PopulateTask(ctx, task)
}

func (s *CommentService) DeleteReply(ctx context.Context, actor models.User, taskID, commentID, replyID primitive.ObjectID) (models.TaskView, error) {
	task, err := s.views.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	comment := task.FindComment(commentID)
	if comment == nil {
		return models.TaskView{}, &NotFoundError{Resource: "Comment"}
	}
	idx := -1
	for i := range comment.Replies {
		if comment.Replies[i].ID == replyID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.TaskView{}, &NotFoundError{Resource: "Reply"}
	}
	reply := comment.Replies[idx]
	if reply.User != actor.ID && !task.IsOwner(actor.ID) {
		return models.TaskView{}, &AuthorizationError{Message: "Not authorized to delete this reply"}
	}

	comment.Replies = append(comment.Replies[:idx], comment.Replies[idx+1:]...)
	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityReplyDeleted,
		Text:      reply.Comment,
		CreatedAt: time.Now(),
	})

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, dependency("update task", err)
	}
	return s.views.PopulateTask(ctx, task)
}

// notifyMentions resolves @usernames to accounts and fans a notification out
// to each, skipping the author. Delivery failures are logged, never surfaced.
func (s *CommentService) notifyMentions(ctx context.Context, actor models.User, task models.Task, names []string, text string) {
	if len(names) == 0 {
		return
	}
	mentioned, err := s.mentions.Resolve(ctx, names)
	if err != nil {
		logging.Logger.Errorf("Event ID: MENTION_RESOLVE_FAILED, Description: %v", err)
		return
	}

	var events []models.NotificationEvent
	for _, user := range mentioned {
		if user.ID == actor.ID {
			continue
		}
		events = append(events, models.NotificationEvent{
			Recipient: user.ID,
			Actor:     actor.ID,
			Task:      task.ID,
			Message:   fmt.Sprintf("%s mentioned you in %s: %s", actor.Username, task.Title, text),
		})
	}
	if err := s.notifier.Publish(ctx, events...); err != nil {
		logging.Logger.Errorf("Event ID: MENTION_NOTIFICATION_FAILED, Description: %v", err)
	}
}
