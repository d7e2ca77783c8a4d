package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateTaskDefaultsAndActivity(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")

	view, _, err := env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{Title: "Write report"})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	if view.Status != models.StatusPending || view.Priority != models.PriorityLow {
		t.Fatalf("defaults not applied: status=%s priority=%s", view.Status, view.Priority)
	}
	if len(view.AssignedTo) != 0 {
		t.Fatal("new task must start with no assignees")
	}
	if len(view.Activity) != 1 || view.Activity[0].Type != models.ActivityTaskCreated {
		t.Fatalf("expected single taskCreated entry, got %+v", view.Activity)
	}
	if view.Activity[0].Action != "alice created task Write report" {
		t.Fatalf("activity line %q", view.Activity[0].Action)
	}
}

func TestCreateTaskRejectsMissingTitleAndBadEnums(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")

	_, _, err := env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{Title: "   "})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("want ValidationError for blank title, got %v", err)
	}

	_, _, err = env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{
		Title:  "x",
		Status: models.TaskStatus("archived"),
	})
	if !errors.As(err, &validation) {
		t.Fatalf("want ValidationError for bad status, got %v", err)
	}
}

func TestCreateTaskWithAttachmentsAndInvites(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")
	invitee := env.user("bob", "bob@test.dev")

	attachment := models.Attachment{
		ID:           primitive.NewObjectID(),
		URL:          "https://files.test/report.pdf",
		OriginalName: "report.pdf",
		Type:         models.AttachmentPDF,
		Size:         1.25,
		UploadedAt:   time.Now(),
	}

	view, outcome, err := env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{
		Title:       "Quarterly report",
		Attachments: []models.Attachment{attachment},
		AssignedTo:  []string{invitee.ID.Hex(), "nobody@test.dev"},
	})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	if len(view.Attachment) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(view.Attachment))
	}
	got := view.Attachment[0]
	if got.OriginalName != "report.pdf" || got.Type != models.AttachmentPDF || got.Size != 1.25 {
		t.Fatalf("attachment metadata mangled: %+v", got)
	}

	if len(outcome.InvalidEmails) != 1 || outcome.InvalidEmails[0] != "nobody@test.dev" {
		t.Fatalf("expected unknown email warning, got %v", outcome.InvalidEmails)
	}

	types := activityTypes(view.Activity)
	want := []models.ActivityType{
		models.ActivityTaskCreated,
		models.ActivityFilesUploaded,
		models.ActivityMembersInvited,
	}
	if len(types) != len(want) {
		t.Fatalf("activity types %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("activity types %v, want %v", types, want)
		}
	}

	if len(view.AssignedTo) != 0 {
		t.Fatal("invited users must stay out of assignedTo until they accept")
	}
	stored := mustFind(t, env, invitee.ID)
	if stored.PendingInvitation(view.ID) == nil {
		t.Fatal("expected pending invitation for bob")
	}
}

func TestUpdateTaskActivityOrderAndValues(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")
	task := env.task(owner, "Sprint board")

	status := models.StatusInProgress
	priority := models.PriorityHigh
	attachment := models.Attachment{
		ID:           primitive.NewObjectID(),
		URL:          "https://files.test/mock.png",
		OriginalName: "mock.png",
		Type:         models.AttachmentImage,
		UploadedAt:   time.Now(),
	}

	view, _, err := env.taskSvc.UpdateTask(context.Background(), owner, task.ID, UpdateTaskInput{
		Status:              &status,
		Priority:            &priority,
		Attachments:         []models.Attachment{attachment},
		AttachmentOperation: "append",
	})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}

	types := activityTypes(view.Activity)
	want := []models.ActivityType{
		models.ActivityFilesUploaded,
		models.ActivityStatusChanged,
		models.ActivityPriorityChanged,
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("activity order %v, want %v", types, want)
		}
	}

	statusLine := view.Activity[1].Action
	if statusLine != "alice changed status from pending to inProgress" {
		t.Fatalf("status line %q", statusLine)
	}
	priorityLine := view.Activity[2].Action
	if priorityLine != "alice changed priority from low to high" {
		t.Fatalf("priority line %q", priorityLine)
	}
}

func TestUpdateTaskRequiresParticipant(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")
	stranger := env.user("mallory", "mallory@test.dev")
	task := env.task(owner, "Sprint board")

	title := "Hijacked"
	_, _, err := env.taskSvc.UpdateTask(context.Background(), stranger, task.ID, UpdateTaskInput{Title: &title})
	var authz *AuthorizationError
	if !errors.As(err, &authz) {
		t.Fatalf("want AuthorizationError, got %v", err)
	}
	if authz.Message != "Not authorized to update this task" {
		t.Fatalf("message %q", authz.Message)
	}
}

func TestUpdateTaskRemovesMembers(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")
	member := env.user("bob", "bob@test.dev")
	task := env.task(owner, "Sprint board")

	invite(t, env, &task, owner, member)
	if _, err := env.invitationSvc.Accept(context.Background(), mustFind(t, env, member.ID), task.ID); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	view, _, err := env.taskSvc.UpdateTask(context.Background(), owner, task.ID, UpdateTaskInput{
		AssignedTo:          []string{member.ID.Hex()},
		AssignedToSet:       true,
		AssignedToOperation: "remove",
	})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	if len(view.AssignedTo) != 0 {
		t.Fatalf("bob still assigned: %+v", view.AssignedTo)
	}

	last := view.Activity[len(view.Activity)-1]
	if last.Type != models.ActivityMembersRemoved || last.Action != "alice removed bob from Sprint board" {
		t.Fatalf("removal entry %+v", last)
	}
	storedMember := mustFind(t, env, member.ID)
	if storedMember.IsAssignedTo(task.ID) {
		t.Fatal("bob's assignedTasks not retracted")
	}
}

func TestRecentActivityLimitsNewestFirst(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		task := env.task(owner, "Task")
		task.Title = "Task " + string(rune('A'+i))
		task.Activity = []models.ActivityEntry{{
			User:      owner.ID,
			Username:  owner.Username,
			Type:      models.ActivityTaskCreated,
			TaskTitle: task.Title,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}}
		env.tasks.tasks[task.ID] = task
	}

	feed, err := env.taskSvc.RecentActivity(context.Background(), owner, 2)
	if err != nil {
		t.Fatalf("RecentActivity returned error: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(feed))
	}
	if feed[0].TaskTitle != "Task E" || feed[1].TaskTitle != "Task D" {
		t.Fatalf("feed not newest-first: %s, %s", feed[0].TaskTitle, feed[1].TaskTitle)
	}
	if feed[0].Action != "alice created task Task E" {
		t.Fatalf("feed action %q", feed[0].Action)
	}
}

func TestRecentActivityAttachesUploadFiles(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")

	attachment := models.Attachment{
		ID:           primitive.NewObjectID(),
		URL:          "https://files.test/diagram.png",
		OriginalName: "diagram.png",
		Type:         models.AttachmentImage,
		Size:         0.5,
		UploadedAt:   time.Now(),
	}
	if _, _, err := env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{
		Title:       "Design",
		Attachments: []models.Attachment{attachment},
	}); err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	feed, err := env.taskSvc.RecentActivity(context.Background(), owner, 10)
	if err != nil {
		t.Fatalf("RecentActivity returned error: %v", err)
	}

	var uploadRow *models.RecentActivityView
	for i := range feed {
		if len(feed[i].Files) > 0 {
			uploadRow = &feed[i]
		}
	}
	if uploadRow == nil {
		t.Fatal("no feed row carries files")
	}
	file := uploadRow.Files[0]
	if file.Name != "diagram.png" || file.URL != "https://files.test/diagram.png" || file.Size != 0.5 {
		t.Fatalf("file metadata %+v", file)
	}
}

func TestDeleteTaskOwnerOnlyAndCascades(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")
	member := env.user("bob", "bob@test.dev")

	attachment := models.Attachment{
		ID:           primitive.NewObjectID(),
		URL:          "https://files.test/spec.pdf",
		OriginalName: "spec.pdf",
		PublicID:     "pid-spec.pdf",
		Type:         models.AttachmentPDF,
		UploadedAt:   time.Now(),
	}
	view, _, err := env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{
		Title:       "Doomed",
		Attachments: []models.Attachment{attachment},
		AssignedTo:  []string{member.ID.Hex()},
	})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	if _, err := env.invitationSvc.Accept(context.Background(), mustFind(t, env, member.ID), view.ID); err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	var authz *AuthorizationError
	if err := env.taskSvc.DeleteTask(context.Background(), mustFind(t, env, member.ID), view.ID); !errors.As(err, &authz) {
		t.Fatalf("member delete: want AuthorizationError, got %v", err)
	}

	if err := env.taskSvc.DeleteTask(context.Background(), owner, view.ID); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}

	if _, err := env.tasks.FindByID(context.Background(), view.ID); err == nil {
		t.Fatal("task document still present")
	}
	if len(env.files.deletes) != 1 || env.files.deletes[0] != "pid-spec.pdf" {
		t.Fatalf("file deletes %v", env.files.deletes)
	}
	stored := mustFind(t, env, member.ID)
	if stored.IsAssignedTo(view.ID) || len(stored.Invitations) != 0 {
		t.Fatalf("membership residue after delete: %+v", stored)
	}
	if residual := env.notifications.forUserTask(member.ID, view.ID); len(residual) != 0 {
		t.Fatalf("notification residue after delete: %d", len(residual))
	}
}

func TestDownloadFileMasksAccessAsNotFound(t *testing.T) {
	env := newTestEnv()
	owner := env.user("alice", "alice@test.dev")
	stranger := env.user("mallory", "mallory@test.dev")

	env.files.contents["https://files.test/notes.pdf"] = []byte("pdf-bytes")
	view, _, err := env.taskSvc.CreateTask(context.Background(), owner, CreateTaskInput{
		Title: "Docs",
		Attachments: []models.Attachment{{
			ID:           primitive.NewObjectID(),
			URL:          "https://files.test/notes.pdf",
			OriginalName: "notes.pdf",
			Type:         models.AttachmentPDF,
			UploadedAt:   time.Now(),
		}},
	})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	body, contentType, _, err := env.taskSvc.DownloadFile(context.Background(), owner, view.ID, "notes.pdf")
	if err != nil {
		t.Fatalf("DownloadFile returned error: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "pdf-bytes" || contentType == "" {
		t.Fatalf("unexpected stream: %q (%s)", data, contentType)
	}

	var notFound *NotFoundError
	if _, _, _, err := env.taskSvc.DownloadFile(context.Background(), stranger, view.ID, "notes.pdf"); !errors.As(err, &notFound) {
		t.Fatalf("stranger download: want NotFoundError, got %v", err)
	}
	if _, _, _, err := env.taskSvc.DownloadFile(context.Background(), owner, view.ID, "ghost.pdf"); !errors.As(err, &notFound) {
		t.Fatalf("missing file: want NotFoundError, got %v", err)
	}
	if notFound.Error() != "File not found" {
		t.Fatalf("message %q", notFound.Error())
	}
}

func activityTypes(entries []models.ActivityView) []models.ActivityType {
	types := make([]models.ActivityType, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	return types
}
