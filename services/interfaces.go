package services

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

// UserRepository is the user-directory contract. Implementations return
// mongo.ErrNoDocuments for lookups that match nothing; the services translate
// that into the error taxonomy.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByOTP(ctx context.Context, otp string) (models.User, error)
	FindVerified(ctx context.Context) ([]models.User, error)
	FindManyByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	FindManyByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	FindByInvitationToken(ctx context.Context, token string) (models.User, error)

	// UpdateAccount persists the mutable account fields (profile, avatar,
	// verification state, OTP, new-user flag).
	UpdateAccount(ctx context.Context, user models.User) error

	PushInvitation(ctx context.Context, userID primitive.ObjectID, inv models.Invitation) error

	// SetInvitationStatus transitions the user's invitation for the task
	// from one status to another and reports how many documents changed.
	// A zero count means the invitation was not in the expected state,
	// which is how a concurrent duplicate response is detected.
	SetInvitationStatus(ctx context.Context, userID, taskID primitive.ObjectID, from, to models.InvitationStatus) (int64, error)

	AddAssignedTask(ctx context.Context, userID, taskID primitive.ObjectID) error

	// RetractTask removes the task from the given users' invitation lists
	// and assigned-task indexes.
	RetractTask(ctx context.Context, userIDs []primitive.ObjectID, taskID primitive.ObjectID) error

	// RetractTaskFromAll removes every trace of the task from the whole
	// directory; used when the task itself is deleted.
	RetractTaskFromAll(ctx context.Context, taskID primitive.ObjectID) error
}

// TaskRepository persists the Task aggregate. Update writes the whole
// document; that single write is the unit of atomicity for task mutations.
type TaskRepository interface {
	Insert(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Task, error)

	// FindVisible returns tasks owned by the user plus the listed accepted
	// assignments.
	FindVisible(ctx context.Context, owner primitive.ObjectID, assigned []primitive.ObjectID) ([]models.Task, error)

	// FindParticipating returns tasks where the user is owner or appears in
	// the assignment list.
	FindParticipating(ctx context.Context, userID primitive.ObjectID) ([]models.Task, error)

	Update(ctx context.Context, task models.Task) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// NotificationRepository persists derived notification records.
type NotificationRepository interface {
	InsertMany(ctx context.Context, notifications []models.Notification) error
	FindByRecipient(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipient primitive.ObjectID) (models.Notification, error)
	MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id, recipient primitive.ObjectID) (int64, error)
	MarkReadForUserTask(ctx context.Context, userID, taskID primitive.ObjectID) error
	DeleteForUserTask(ctx context.Context, userID, taskID primitive.ObjectID) error
	DeleteForTask(ctx context.Context, taskID primitive.ObjectID) error
	HasWithMessagePrefix(ctx context.Context, userID primitive.ObjectID, prefix string) (bool, error)
}

// Notifier is the fan-out stage mutating operations hand their
// NotificationEvents to.
type Notifier interface {
	Publish(ctx context.Context, events ...models.NotificationEvent) error
}

// Mailer sends templated outbound email.
type Mailer interface {
	SendOTP(to, username, otp string) error
	SendInvitation(to, taskTitle, joinLink string) error
}

// FileStore is the attachment storage engine: upload returns a public URL
// and an opaque storage handle used for later deletion.
type FileStore interface {
	Upload(ctx context.Context, filename, contentType string, data io.Reader) (url, publicID string, err error)
	Delete(ctx context.Context, publicID string) error
	Fetch(ctx context.Context, url string) (body io.ReadCloser, contentType string, length int64, err error)
}

// FileUpload carries one incoming multipart file into a service.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.Reader
}
