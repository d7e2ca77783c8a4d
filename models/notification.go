package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is a derived, denormalized record. It is written best-effort:
// a failed notification write never rolls back the mutation it describes.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Actor     primitive.ObjectID `bson:"actor,omitempty" json:"actor,omitempty"`
	Task      primitive.ObjectID `bson:"task,omitempty" json:"task,omitempty"`
	Message   string             `bson:"message" json:"message"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// NotificationEvent is the single shape every mutating operation emits when
// it wants a notification delivered. The fan-out stage turns events into
// Notification documents and owns the failure handling.
type NotificationEvent struct {
	Recipient primitive.ObjectID
	Actor     primitive.ObjectID
	Task      primitive.ObjectID
	Message   string
}
