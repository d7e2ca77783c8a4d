package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Invitation is embedded in the User document and tracks one membership
// offer for one task. Token is set only for invitations issued to an email
// address; it backs the join-by-link flow.
type Invitation struct {
	TaskID    primitive.ObjectID `bson:"taskId" json:"taskId"`
	Status    InvitationStatus   `bson:"status" json:"status"`
	InvitedAt time.Time          `bson:"invitedAt" json:"invitedAt"`
	Token     string             `bson:"token,omitempty" json:"token,omitempty"`
}

type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username      string               `bson:"username" json:"username"`
	Email         string               `bson:"email" json:"email"`
	Password      string               `bson:"password" json:"-"`
	IsVerified    bool                 `bson:"isVerified" json:"isVerified"`
	Avatar        string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	AvatarID      string               `bson:"avatarId,omitempty" json:"-"`
	OTP           string               `bson:"otp,omitempty" json:"-"`
	Firstname     string               `bson:"firstname" json:"firstname"`
	Lastname      string               `bson:"lastname" json:"lastname"`
	AssignedTasks []primitive.ObjectID `bson:"assignedTasks" json:"assignedTasks"`
	Invitations   []Invitation         `bson:"invitations" json:"invitations"`
	IsNewUser     bool                 `bson:"isNewUser" json:"isNewUser"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// PendingInvitation returns the pending invitation for the given task, if any.
func (u *User) PendingInvitation(taskID primitive.ObjectID) *Invitation {
	for i := range u.Invitations {
		if u.Invitations[i].TaskID == taskID && u.Invitations[i].Status == InvitationPending {
			return &u.Invitations[i]
		}
	}
	return nil
}

// IsAssignedTo reports whether the task is in the user's accepted set.
func (u *User) IsAssignedTo(taskID primitive.ObjectID) bool {
	for _, id := range u.AssignedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// UserRef is the populated shape embedded in task and notification responses.
type UserRef struct {
	ID       primitive.ObjectID `json:"id"`
	Username string             `json:"username"`
	Email    string             `json:"email"`
	Avatar   string             `json:"avatar,omitempty"`
}

func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Email: u.Email, Avatar: u.Avatar}
}
