package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestListExpandsTaskTitleAndActor(t *testing.T) {
	env := newTestEnv()
	alice := env.user("alice", "alice@test.dev")
	bob := env.user("bob", "bob@test.dev")
	task := env.task(alice, "Sprint board")

	older := models.Notification{
		ID:        primitive.NewObjectID(),
		User:      bob.ID,
		Actor:     alice.ID,
		Task:      task.ID,
		Message:   "alice invited you to join Sprint board.",
		CreatedAt: time.Now().Add(-time.Minute),
	}
	newer := models.Notification{
		ID:        primitive.NewObjectID(),
		User:      bob.ID,
		Message:   "Welcome aboard",
		CreatedAt: time.Now(),
	}
	env.notifications.InsertMany(context.Background(), []models.Notification{older, newer})

	views, err := env.notificationSvc.List(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(views))
	}
	if views[0].ID != newer.ID {
		t.Fatal("list not newest-first")
	}

	invited := views[1]
	if invited.TaskTitle != "Sprint board" {
		t.Fatalf("task title %q", invited.TaskTitle)
	}
	if invited.Actor == nil || invited.Actor.Username != "alice" {
		t.Fatalf("actor not expanded: %+v", invited.Actor)
	}
	if views[0].Actor != nil || views[0].TaskTitle != "" {
		t.Fatalf("system notification should stay bare: %+v", views[0])
	}
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	env := newTestEnv()
	bob := env.user("bob", "bob@test.dev")

	env.notifications.InsertMany(context.Background(), []models.Notification{
		{ID: primitive.NewObjectID(), User: bob.ID, Message: "one", CreatedAt: time.Now()},
		{ID: primitive.NewObjectID(), User: bob.ID, Message: "two", CreatedAt: time.Now()},
	})

	modified, err := env.notificationSvc.MarkAllRead(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("MarkAllRead returned error: %v", err)
	}
	if modified != 2 {
		t.Fatalf("first pass modified %d, want 2", modified)
	}

	modified, err = env.notificationSvc.MarkAllRead(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("second MarkAllRead returned error: %v", err)
	}
	if modified != 0 {
		t.Fatalf("second pass modified %d, want 0", modified)
	}
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	env := newTestEnv()
	bob := env.user("bob", "bob@test.dev")
	eve := env.user("eve", "eve@test.dev")

	note := models.Notification{ID: primitive.NewObjectID(), User: bob.ID, Message: "hi", CreatedAt: time.Now()}
	env.notifications.InsertMany(context.Background(), []models.Notification{note})

	var notFound *NotFoundError
	if _, err := env.notificationSvc.MarkRead(context.Background(), eve.ID, note.ID); !errors.As(err, &notFound) {
		t.Fatalf("cross-user mark: want NotFoundError, got %v", err)
	}

	updated, err := env.notificationSvc.MarkRead(context.Background(), bob.ID, note.ID)
	if err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}
	if !updated.Read {
		t.Fatal("notification not marked read")
	}
}

func TestDeleteMissingNotificationIsNotFound(t *testing.T) {
	env := newTestEnv()
	bob := env.user("bob", "bob@test.dev")

	var notFound *NotFoundError
	err := env.notificationSvc.Delete(context.Background(), bob.ID, primitive.NewObjectID())
	if !errors.As(err, &notFound) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
	if notFound.Error() != "Notification not found" {
		t.Fatalf("message %q", notFound.Error())
	}
}

func TestCreateValidatesInput(t *testing.T) {
	env := newTestEnv()
	alice := env.user("alice", "alice@test.dev")
	bob := env.user("bob", "bob@test.dev")
	task := env.task(alice, "Sprint board")

	var validation *ValidationError
	if _, err := env.notificationSvc.Create(context.Background(), alice, CreateNotificationInput{
		User: "not-hex", Task: task.ID.Hex(), Message: "x",
	}); !errors.As(err, &validation) {
		t.Fatalf("bad user id: want ValidationError, got %v", err)
	}

	var notFound *NotFoundError
	if _, err := env.notificationSvc.Create(context.Background(), alice, CreateNotificationInput{
		User: bob.ID.Hex(), Task: primitive.NewObjectID().Hex(), Message: "x",
	}); !errors.As(err, &notFound) {
		t.Fatalf("missing task: want NotFoundError, got %v", err)
	}

	created, err := env.notificationSvc.Create(context.Background(), alice, CreateNotificationInput{
		User: bob.ID.Hex(), Task: task.ID.Hex(), Message: "  heads up  ",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Message != "heads up" || created.Actor != alice.ID || created.Read {
		t.Fatalf("created notification %+v", created)
	}
}
