package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

// InvitationService is the membership engine: it orchestrates invite,
// accept/decline/join-by-token and keeps the user directory and the task
// assignment list in step.
//
// Cross-aggregate writes are not transactional. Directory writes happen
// first and use idempotent conditional updates; a failure aborts the
// remaining batch and surfaces as a DependencyError without rolling back
// what already landed. The task document itself is persisted by the caller
// in one write.
type InvitationService struct {
	users         UserRepository
	tasks         TaskRepository
	notifier      Notifier
	notifications NotificationRepository
	mailer        Mailer
	appBaseURL    string
}

func NewInvitationService(users UserRepository, tasks TaskRepository, notifier Notifier, notifications NotificationRepository, mailer Mailer, appBaseURL string) *InvitationService {
	return &InvitationService{
		users:         users,
		tasks:         tasks,
		notifier:      notifier,
		notifications: notifications,
		mailer:        mailer,
		appBaseURL:    appBaseURL,
	}
}

// ResolvedTarget is one invite target mapped to a concrete user. ViaEmail
// marks targets that arrived as an email address; those get a tokenized
// invitation and an emailed join link.
type ResolvedTarget struct {
	User     models.User
	ViaEmail bool
}

// InviteOutcome reports what an invite batch actually did.
type InviteOutcome struct {
	Invited       []models.User
	InvalidEmails []string
}

// ResolveTargets maps raw targets (hex user ids or email addresses) to
// users. Malformed ids and ids matching nobody are silently dropped;
// unresolvable emails are collected as warnings rather than failing the
// batch.
func (s *InvitationService) ResolveTargets(ctx context.Context, targets []string) ([]ResolvedTarget, []string, error) {
	var resolved []ResolvedTarget
	var invalidEmails []string
	seen := make(map[primitive.ObjectID]bool)

	for _, raw := range targets {
		target := strings.TrimSpace(raw)
		if target == "" {
			continue
		}

		if strings.Contains(target, "@") {
			user, err := s.users.FindByEmail(ctx, target)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					invalidEmails = append(invalidEmails, target)
					continue
				}
				return nil, nil, dependency("resolve invite email", err)
			}
			if !seen[user.ID] {
				seen[user.ID] = true
				resolved = append(resolved, ResolvedTarget{User: user, ViaEmail: true})
			}
			continue
		}

		id, err := primitive.ObjectIDFromHex(target)
		if err != nil {
			continue
		}
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			return nil, nil, dependency("resolve invite target", err)
		}
		if !seen[user.ID] {
			seen[user.ID] = true
			resolved = append(resolved, ResolvedTarget{User: user})
		}
	}
	return resolved, invalidEmails, nil
}

// InviteUsers issues pending invitations for every target that is not the
// owner, not already assigned and not already holding a pending invitation
// for this task. Each invited user gets one notification; email-path
// targets additionally get an invitation email with a join link.
//
// The returned slice holds the users actually invited; the caller appends
// the summarizing activity entry after the directory writes succeeded.
func (s *InvitationService) InviteUsers(ctx context.Context, task *models.Task, actor models.User, targets []ResolvedTarget) ([]models.User, error) {
	var invited []models.User
	var events []models.NotificationEvent
	type pendingEmail struct {
		to   string
		link string
	}
	var emails []pendingEmail

	for _, target := range targets {
		user := target.User
		if task.IsOwner(user.ID) || task.IsAssignee(user.ID) {
			continue
		}
		if user.PendingInvitation(task.ID) != nil {
			continue
		}

		invitation := models.Invitation{
			TaskID:    task.ID,
			Status:    models.InvitationPending,
			InvitedAt: time.Now(),
		}
		if target.ViaEmail {
			invitation.Token = uuid.NewString()
		}

		if err := s.users.PushInvitation(ctx, user.ID, invitation); err != nil {
			return nil, dependency("create invitation", err)
		}

		events = append(events, models.NotificationEvent{
			Recipient: user.ID,
			Actor:     actor.ID,
			Task:      task.ID,
			Message:   fmt.Sprintf("%s invited you to join %s.", actor.Username, task.Title),
		})
		if target.ViaEmail {
			emails = append(emails, pendingEmail{
				to:   user.Email,
				link: s.joinLink(invitation.Token),
			})
		}
		invited = append(invited, user)
	}

	if err := s.notifier.Publish(ctx, events...); err != nil {
		return nil, err
	}

	for _, email := range emails {
		if err := s.mailer.SendInvitation(email.to, task.Title, email.link); err != nil {
			return nil, dependency("send invitation email", err)
		}
	}

	return invited, nil
}

func (s *InvitationService) joinLink(token string) string {
	return fmt.Sprintf("%s/tasks/join/%s", strings.TrimRight(s.appBaseURL, "/"), token)
}

// Remove retracts the given users from the task: their invitation record
// and assigned-task index entry are removed and every notification tied to
// the (user, task) pair is deleted. The task's own assignment list is
// updated in memory; the caller persists the aggregate.
func (s *InvitationService) Remove(ctx context.Context, task *models.Task, userIDs []primitive.ObjectID) ([]models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	removed, err := s.users.FindManyByIDs(ctx, userIDs)
	if err != nil {
		return nil, dependency("load removed users", err)
	}

	if err := s.users.RetractTask(ctx, userIDs, task.ID); err != nil {
		return nil, dependency("retract invitations", err)
	}
	for _, id := range userIDs {
		if err := s.notifications.DeleteForUserTask(ctx, id, task.ID); err != nil {
			return nil, dependency("delete notifications", err)
		}
		task.RemoveAssignee(id)
	}

	return removed, nil
}

// Accept responds to a pending invitation. The status flip is a conditional
// update: only the pending record transitions, so a concurrent duplicate
// accept observes zero modified documents and fails NotFound.
func (s *InvitationService) Accept(ctx context.Context, user models.User, taskID primitive.ObjectID) (models.Task, error) {
	return s.respond(ctx, user, taskID, true, false)
}

// Decline responds to a pending invitation without any membership change.
func (s *InvitationService) Decline(ctx context.Context, user models.User, taskID primitive.ObjectID) (models.Task, error) {
	return s.respond(ctx, user, taskID, false, false)
}

// JoinByToken accepts the unique pending invitation carrying the token. An
// unknown token and an already-consumed one are indistinguishable: both are
// NotFound.
func (s *InvitationService) JoinByToken(ctx context.Context, token string) (models.Task, models.User, error) {
	if token == "" {
		return models.Task{}, models.User{}, &NotFoundError{Resource: "Invitation"}
	}

	user, err := s.users.FindByInvitationToken(ctx, token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, models.User{}, &NotFoundError{Resource: "Invitation"}
		}
		return models.Task{}, models.User{}, dependency("resolve invite token", err)
	}

	var taskID primitive.ObjectID
	for _, inv := range user.Invitations {
		if inv.Token == token && inv.Status == models.InvitationPending {
			taskID = inv.TaskID
			break
		}
	}
	if taskID.IsZero() {
		return models.Task{}, models.User{}, &NotFoundError{Resource: "Invitation"}
	}

	task, err := s.respond(ctx, user, taskID, true, true)
	if err != nil {
		return models.Task{}, models.User{}, err
	}
	return task, user, nil
}

func (s *InvitationService) respond(ctx context.Context, user models.User, taskID primitive.ObjectID, accept, viaLink bool) (models.Task, error) {
	if user.PendingInvitation(taskID) == nil {
		return models.Task{}, &NotFoundError{Resource: "Invitation"}
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, &NotFoundError{Resource: "Task"}
		}
		return models.Task{}, dependency("load task", err)
	}

	to := models.InvitationDeclined
	if accept {
		to = models.InvitationAccepted
	}
	modified, err := s.users.SetInvitationStatus(ctx, user.ID, taskID, models.InvitationPending, to)
	if err != nil {
		return models.Task{}, dependency("update invitation", err)
	}
	if modified == 0 {
		// Someone else consumed the pending invitation first.
		return models.Task{}, &NotFoundError{Resource: "Invitation"}
	}

	entryType := models.ActivityInvitationDeclined
	if accept {
		entryType = models.ActivityInvitationAccepted
		if err := s.users.AddAssignedTask(ctx, user.ID, taskID); err != nil {
			return models.Task{}, dependency("update assigned tasks", err)
		}
		task.AddAssignee(user.ID)
	}

	task.Activity = append(task.Activity, models.ActivityEntry{
		User:      user.ID,
		Username:  user.Username,
		Type:      entryType,
		TaskTitle: task.Title,
		ViaLink:   viaLink,
		CreatedAt: time.Now(),
	})
	if err := s.tasks.Update(ctx, task); err != nil {
		return models.Task{}, dependency("update task", err)
	}

	if err := s.notifications.MarkReadForUserTask(ctx, user.ID, taskID); err != nil {
		logging.Logger.Errorf("Event ID: INVITATION_NOTIFICATIONS_MARK_READ_FAILED, Description: Failed to mark notifications read for user %s task %s: %v", user.ID.Hex(), taskID.Hex(), err)
	}

	return task, nil
}
