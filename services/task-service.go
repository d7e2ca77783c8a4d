package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

// TaskService owns the Task aggregate: CRUD, the general update
// orchestration, the recent-activity feed and file downloads.
type TaskService struct {
	tasks         TaskRepository
	users         UserRepository
	notifier      Notifier
	notifications NotificationRepository
	invitations   *InvitationService
	files         FileStore
}

func NewTaskService(tasks TaskRepository, users UserRepository, notifier Notifier, notifications NotificationRepository, invitations *InvitationService, files FileStore) *TaskService {
	return &TaskService{
		tasks:         tasks,
		users:         users,
		notifier:      notifier,
		notifications: notifications,
		invitations:   invitations,
		files:         files,
	}
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	Tags        []string
	StartDate   *time.Time
	DueDate     *time.Time
	AssignedTo  []string
	Subtask     []models.Subtask
	Attachments []models.Attachment
}

// CreateTask inserts the task and runs the optional invite batch. The task
// starts with an empty assignment list: membership only arrives through
// accepted invitations.
func (s *TaskService) CreateTask(ctx context.Context, actor models.User, in CreateTaskInput) (models.TaskView, InviteOutcome, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.TaskView{}, InviteOutcome{}, validationf("Title is required")
	}

	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !models.ValidTaskStatus(status) {
		return models.TaskView{}, InviteOutcome{}, validationf("Invalid status")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityLow
	}
	if !models.ValidTaskPriority(priority) {
		return models.TaskView{}, InviteOutcome{}, validationf("Invalid priority")
	}

	now := time.Now()
	task := models.Task{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		Tags:        in.Tags,
		StartDate:   in.StartDate,
		DueDate:     in.DueDate,
		Owner:       actor.ID,
		AssignedTo:  []primitive.ObjectID{},
		Subtask:     sanitizeSubtasks(in.Subtask),
		Attachment:  in.Attachments,
		Comments:    []models.Comment{},
		CreatedAt:   now,
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityTaskCreated,
		TaskTitle: task.Title,
		CreatedAt: now,
	})
	if len(in.Attachments) > 0 {
		task.Activity = append(task.Activity, uploadEntry(actor, in.Attachments, now))
	}

	if err := s.tasks.Insert(ctx, &task); err != nil {
		return models.TaskView{}, InviteOutcome{}, dependency("create task", err)
	}

	outcome := InviteOutcome{}
	if len(in.AssignedTo) > 0 {
		targets, invalidEmails, err := s.invitations.ResolveTargets(ctx, in.AssignedTo)
		if err != nil {
			return models.TaskView{}, InviteOutcome{}, err
		}
		outcome.InvalidEmails = invalidEmails

		invited, err := s.invitations.InviteUsers(ctx, &task, actor, targets)
		if err != nil {
			return models.TaskView{}, InviteOutcome{}, err
		}
		outcome.Invited = invited

		if len(invited) > 0 {
			task.Activity = append(task.Activity, models.ActivityEntry{
				User:      actor.ID,
				Username:  actor.Username,
				Type:      models.ActivityMembersInvited,
				TaskTitle: task.Title,
				Names:     usernames(invited),
				CreatedAt: time.Now(),
			})
			if err := s.tasks.Update(ctx, task); err != nil {
				return models.TaskView{}, InviteOutcome{}, dependency("update task", err)
			}
		}
	}

	view, err := s.PopulateTask(ctx, task)
	if err != nil {
		return models.TaskView{}, InviteOutcome{}, err
	}
	return view, outcome, nil
}

// GetTasks lists tasks the user owns or has accepted membership of.
func (s *TaskService) GetTasks(ctx context.Context, user models.User) ([]models.TaskView, error) {
	tasks, err := s.tasks.FindVisible(ctx, user.ID, user.AssignedTasks)
	if err != nil {
		return nil, dependency("list tasks", err)
	}
	views := make([]models.TaskView, 0, len(tasks))
	for _, task := range tasks {
		view, err := s.PopulateTask(ctx, task)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// GetTaskByID fetches one visible task. Tasks the user cannot see report as
// missing, not forbidden.
func (s *TaskService) GetTaskByID(ctx context.Context, user models.User, taskID primitive.ObjectID) (models.TaskView, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, err
	}
	if !task.IsOwner(user.ID) && !user.IsAssignedTo(taskID) {
		return models.TaskView{}, &NotFoundError{Resource: "Task"}
	}
	return s.PopulateTask(ctx, task)
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	Tags        *[]string
	StartDate   *time.Time
	DueDate     *time.Time

	AssignedTo          []string
	AssignedToSet       bool
	AssignedToOperation string // add, remove or replace (default)

	Subtask    *[]models.Subtask
	SubtaskSet bool

	Attachments         []models.Attachment
	AttachmentOperation string // append or replace (default)
}

// UpdateTask applies a general update: assignment changes run through the
// membership engine first, then attachments, then activity entries are
// computed against the pre-update field values, and finally the aggregate
// is persisted in one write.
func (s *TaskService) UpdateTask(ctx context.Context, actor models.User, taskID primitive.ObjectID, in UpdateTaskInput) (models.TaskView, InviteOutcome, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return models.TaskView{}, InviteOutcome{}, err
	}
	if !task.IsParticipant(actor.ID) {
		return models.TaskView{}, InviteOutcome{}, &AuthorizationError{Message: "Not authorized to update this task"}
	}

	outcome := InviteOutcome{}
	var invited, removed []models.User

	if in.AssignedToSet {
		targets, invalidEmails, err := s.invitations.ResolveTargets(ctx, in.AssignedTo)
		if err != nil {
			return models.TaskView{}, InviteOutcome{}, err
		}
		outcome.InvalidEmails = invalidEmails

		var toInvite []ResolvedTarget
		var toRemove []primitive.ObjectID

		switch in.AssignedToOperation {
		case "add":
			toInvite = targets
		case "remove":
			for _, t := range targets {
				toRemove = append(toRemove, t.User.ID)
			}
		default: // replace
			keep := make(map[primitive.ObjectID]bool, len(targets))
			for _, t := range targets {
				keep[t.User.ID] = true
				toInvite = append(toInvite, t)
			}
			for _, id := range task.AssignedTo {
				if !keep[id] {
					toRemove = append(toRemove, id)
				}
			}
		}

		if len(toInvite) > 0 {
			invited, err = s.invitations.InviteUsers(ctx, &task, actor, toInvite)
			if err != nil {
				return models.TaskView{}, InviteOutcome{}, err
			}
			outcome.Invited = invited
		}
		if len(toRemove) > 0 {
			removed, err = s.invitations.Remove(ctx, &task, toRemove)
			if err != nil {
				return models.TaskView{}, InviteOutcome{}, err
			}
		}
	}

	now := time.Now()
	var newAttachments []models.Attachment
	var uploadedImages []string
	if len(in.Attachments) > 0 {
		newAttachments = in.Attachments
		for _, a := range newAttachments {
			if a.Type == models.AttachmentImage {
				uploadedImages = append(uploadedImages, a.OriginalName)
			}
		}
		if in.AttachmentOperation == "append" {
			task.Attachment = append(task.Attachment, newAttachments...)
		} else {
			// Replacing drops the old files from storage best-effort.
			for _, old := range task.Attachment {
				if old.PublicID == "" {
					continue
				}
				if err := s.files.Delete(ctx, old.PublicID); err != nil {
					logging.Logger.Errorf("Event ID: ATTACHMENT_DELETE_FAILED, Description: Failed to delete attachment '%s': %v", old.PublicID, err)
				}
			}
			task.Attachment = newAttachments
		}
	}

	// Activity entries reference the field values still on the loaded task;
	// entry order matches the legacy log: uploads, status, priority,
	// invitations, removals.
	if len(newAttachments) > 0 {
		task.Activity = append(task.Activity, uploadEntry(actor, newAttachments, now))
	}
	if in.Status != nil && *in.Status != task.Status {
		if !models.ValidTaskStatus(*in.Status) {
			return models.TaskView{}, InviteOutcome{}, validationf("Invalid status")
		}
		task.Activity = append(task.Activity, models.ActivityEntry{
			User:      actor.ID,
			Username:  actor.Username,
			Type:      models.ActivityStatusChanged,
			Old:       string(task.Status),
			New:       string(*in.Status),
			CreatedAt: now,
		})
		task.Status = *in.Status
	}
	if in.Priority != nil && *in.Priority != task.Priority {
		if !models.ValidTaskPriority(*in.Priority) {
			return models.TaskView{}, InviteOutcome{}, validationf("Invalid priority")
		}
		task.Activity = append(task.Activity, models.ActivityEntry{
			User:      actor.ID,
			Username:  actor.Username,
			Type:      models.ActivityPriorityChanged,
			Old:       string(task.Priority),
			New:       string(*in.Priority),
			CreatedAt: now,
		})
		task.Priority = *in.Priority
	}
	if len(invited) > 0 {
		task.Activity = append(task.Activity, models.ActivityEntry{
			User:      actor.ID,
			Username:  actor.Username,
			Type:      models.ActivityMembersInvited,
			TaskTitle: task.Title,
			Names:     usernames(invited),
			CreatedAt: now,
		})
	}
	if len(removed) > 0 {
		task.Activity = append(task.Activity, models.ActivityEntry{
			User:      actor.ID,
			Username:  actor.Username,
			Type:      models.ActivityMembersRemoved,
			TaskTitle: task.Title,
			Names:     usernames(removed),
			CreatedAt: now,
		})
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Tags != nil {
		task.Tags = *in.Tags
	}
	if in.StartDate != nil {
		task.StartDate = in.StartDate
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if in.SubtaskSet && in.Subtask != nil {
		task.Subtask = sanitizeSubtasks(*in.Subtask)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return models.TaskView{}, InviteOutcome{}, dependency("update task", err)
	}

	// New images notify the other participants; failures here never fail
	// the update.
	if len(uploadedImages) > 0 {
		var events []models.NotificationEvent
		message := fmt.Sprintf("%s updated image(s) %s for task %s.", actor.Username, strings.Join(uploadedImages, ", "), task.Title)
		if task.Owner != actor.ID {
			events = append(events, models.NotificationEvent{Recipient: task.Owner, Actor: actor.ID, Task: task.ID, Message: message})
		}
		for _, id := range task.AssignedTo {
			if id != actor.ID {
				events = append(events, models.NotificationEvent{Recipient: id, Actor: actor.ID, Task: task.ID, Message: message})
			}
		}
		if err := s.notifier.Publish(ctx, events...); err != nil {
			logging.Logger.Errorf("Event ID: IMAGE_UPDATE_NOTIFICATION_FAILED, Description: %v", err)
		}
	}

	view, err := s.PopulateTask(ctx, task)
	if err != nil {
		return models.TaskView{}, InviteOutcome{}, err
	}
	return view, outcome, nil
}

// DeleteTask removes the task, cleans up stored attachments best-effort and
// retracts the task from every user's directory entries.
func (s *TaskService) DeleteTask(ctx context.Context, actor models.User, taskID primitive.ObjectID) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.IsOwner(actor.ID) {
		return &AuthorizationError{Message: "Not authorized to delete this task"}
	}

	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      actor.ID,
		Username:  actor.Username,
		Type:      models.ActivityTaskDeleted,
		TaskTitle: task.Title,
		CreatedAt: time.Now(),
	})
	if err := s.tasks.Update(ctx, task); err != nil {
		return dependency("update task", err)
	}

	for _, attachment := range task.Attachment {
		if attachment.PublicID == "" {
			continue
		}
		if err := s.files.Delete(ctx, attachment.PublicID); err != nil {
			logging.Logger.Errorf("Event ID: ATTACHMENT_DELETE_FAILED, Description: Failed to delete attachment '%s': %v", attachment.PublicID, err)
		}
	}

	if err := s.users.RetractTaskFromAll(ctx, taskID); err != nil {
		logging.Logger.Errorf("Event ID: ASSIGNEE_RETRACT_FAILED, Description: Failed to retract task %s from user directory: %v", taskID.Hex(), err)
	}
	if err := s.notifications.DeleteForTask(ctx, taskID); err != nil {
		logging.Logger.Errorf("Event ID: TASK_NOTIFICATIONS_DELETE_FAILED, Description: Failed to purge notifications for task %s: %v", taskID.Hex(), err)
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return dependency("delete task", err)
	}
	return nil
}

// RecentActivity flattens the activity of every task the user participates
// in, newest first, truncated to limit. Upload entries carry their files:
// joined by the attachment ids captured at write time, with a ±1s window
// fallback for entries written before ids were recorded.
func (s *TaskService) RecentActivity(ctx context.Context, user models.User, limit int) ([]models.RecentActivityView, error) {
	if limit <= 0 {
		limit = 10
	}

	tasks, err := s.tasks.FindParticipating(ctx, user.ID)
	if err != nil {
		return nil, dependency("load tasks", err)
	}

	var actorIDs []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool)
	for _, task := range tasks {
		for _, entry := range task.Activity {
			if !seen[entry.User] {
				seen[entry.User] = true
				actorIDs = append(actorIDs, entry.User)
			}
		}
	}
	avatars := make(map[primitive.ObjectID]string)
	if actors, err := s.users.FindManyByIDs(ctx, actorIDs); err == nil {
		for _, actor := range actors {
			avatars[actor.ID] = actor.Avatar
		}
	}

	var feed []models.RecentActivityView
	for _, task := range tasks {
		for _, entry := range task.Activity {
			feed = append(feed, models.RecentActivityView{
				TaskID:    task.ID,
				TaskTitle: task.Title,
				User:      entry.Username,
				Avatar:    avatars[entry.User],
				Action:    entry.Render(),
				CreatedAt: entry.CreatedAt,
				Files:     uploadFiles(task, entry),
			})
		}
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

// DownloadFile streams an attachment back through the storage engine.
func (s *TaskService) DownloadFile(ctx context.Context, user models.User, taskID primitive.ObjectID, fileName string) (io.ReadCloser, string, int64, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, "", 0, err
	}
	if !task.IsParticipant(user.ID) {
		return nil, "", 0, &NotFoundError{Resource: "Task"}
	}

	var attachment *models.Attachment
	for i := range task.Attachment {
		if task.Attachment[i].OriginalName == fileName {
			attachment = &task.Attachment[i]
			break
		}
	}
	if attachment == nil {
		return nil, "", 0, &NotFoundError{Resource: "File"}
	}

	body, contentType, length, err := s.files.Fetch(ctx, attachment.URL)
	if err != nil {
		return nil, "", 0, dependency("fetch file", err)
	}
	return body, contentType, length, nil
}

// PopulateTask expands every user reference on the aggregate, mirroring the
// legacy populate chain.
func (s *TaskService) PopulateTask(ctx context.Context, task models.Task) (models.TaskView, error) {
	ids := []primitive.ObjectID{task.Owner}
	ids = append(ids, task.AssignedTo...)
	for _, entry := range task.Activity {
		ids = append(ids, entry.User)
	}
	for _, comment := range task.Comments {
		ids = append(ids, comment.User)
		for _, reply := range comment.Replies {
			ids = append(ids, reply.User)
		}
	}

	unique := ids[:0]
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	users, err := s.users.FindManyByIDs(ctx, unique)
	if err != nil {
		return models.TaskView{}, dependency("populate task", err)
	}
	refs := make(map[primitive.ObjectID]models.UserRef, len(users))
	for _, u := range users {
		refs[u.ID] = u.Ref()
	}

	view := models.TaskView{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Tags:        task.Tags,
		StartDate:   task.StartDate,
		DueDate:     task.DueDate,
		Owner:       refs[task.Owner],
		Subtask:     task.Subtask,
		Attachment:  task.Attachment,
		CreatedAt:   task.CreatedAt,
	}
	view.AssignedTo = make([]models.UserRef, 0, len(task.AssignedTo))
	for _, id := range task.AssignedTo {
		view.AssignedTo = append(view.AssignedTo, refs[id])
	}
	view.Activity = make([]models.ActivityView, 0, len(task.Activity))
	for _, entry := range task.Activity {
		view.Activity = append(view.Activity, models.ActivityView{
			User:      refs[entry.User],
			Type:      entry.Type,
			Action:    entry.Render(),
			CreatedAt: entry.CreatedAt,
		})
	}
	view.Comments = make([]models.CommentView, 0, len(task.Comments))
	for _, comment := range task.Comments {
		commentView := models.CommentView{
			ID:        comment.ID,
			User:      refs[comment.User],
			Comment:   comment.Comment,
			CreatedAt: comment.CreatedAt,
			UpdatedAt: comment.UpdatedAt,
			Replies:   make([]models.ReplyView, 0, len(comment.Replies)),
		}
		for _, reply := range comment.Replies {
			commentView.Replies = append(commentView.Replies, models.ReplyView{
				ID:        reply.ID,
				User:      refs[reply.User],
				Comment:   reply.Comment,
				CreatedAt: reply.CreatedAt,
				UpdatedAt: reply.UpdatedAt,
			})
		}
		view.Comments = append(view.Comments, commentView)
	}
	return view, nil
}

func (s *TaskService) loadTask(ctx context.Context, taskID primitive.ObjectID) (models.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, &NotFoundError{Resource: "Task"}
		}
		return models.Task{}, dependency("load task", err)
	}
	return task, nil
}

func sanitizeSubtasks(subtasks []models.Subtask) []models.Subtask {
	cleaned := make([]models.Subtask, 0, len(subtasks))
	for _, sub := range subtasks {
		title := strings.TrimSpace(sub.Title)
		if title == "" {
			continue
		}
		cleaned = append(cleaned, models.Subtask{Title: title, Completed: sub.Completed})
	}
	return cleaned
}

func uploadEntry(actor models.User, attachments []models.Attachment, at time.Time) models.ActivityEntry {
	names := make([]string, 0, len(attachments))
	ids := make([]primitive.ObjectID, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.OriginalName)
		ids = append(ids, a.ID)
	}
	return models.ActivityEntry{
		User:          actor.ID,
		Username:      actor.Username,
		Type:          models.ActivityFilesUploaded,
		Names:         names,
		AttachmentIDs: ids,
		CreatedAt:     at,
	}
}

func uploadFiles(task models.Task, entry models.ActivityEntry) []models.ActivityFileView {
	if entry.Type != models.ActivityFilesUploaded {
		return nil
	}

	var files []models.ActivityFileView
	if len(entry.AttachmentIDs) > 0 {
		wanted := make(map[primitive.ObjectID]bool, len(entry.AttachmentIDs))
		for _, id := range entry.AttachmentIDs {
			wanted[id] = true
		}
		for _, a := range task.Attachment {
			if wanted[a.ID] {
				files = append(files, models.ActivityFileView{Name: a.OriginalName, URL: a.URL, Size: a.Size})
			}
		}
		return files
	}

	// Entries from before attachment ids were recorded: fall back to the
	// old close-in-time join.
	for _, a := range task.Attachment {
		uploadedAt := a.UploadedAt
		if uploadedAt.IsZero() {
			uploadedAt = entry.CreatedAt
		}
		delta := uploadedAt.Sub(entry.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= time.Second {
			files = append(files, models.ActivityFileView{Name: a.OriginalName, URL: a.URL, Size: a.Size})
		}
	}
	return files
}

func usernames(users []models.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}
