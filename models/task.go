package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "inProgress"
	StatusCompleted  TaskStatus = "completed"
)

func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentPDF      AttachmentType = "pdf"
	AttachmentDocument AttachmentType = "document"
	AttachmentOther    AttachmentType = "other"
)

// AttachmentTypeFromMIME mirrors the upload classification of the original
// system: image/* is an image, application/pdf is a pdf, everything else a
// document.
func AttachmentTypeFromMIME(mime string) AttachmentType {
	switch {
	case len(mime) >= 6 && mime[:6] == "image/":
		return AttachmentImage
	case mime == "application/pdf":
		return AttachmentPDF
	case mime == "":
		return AttachmentOther
	default:
		return AttachmentDocument
	}
}

type Attachment struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	URL          string             `bson:"url" json:"url"`
	OriginalName string             `bson:"originalName" json:"originalName"`
	PublicID     string             `bson:"publicId,omitempty" json:"publicId,omitempty"`
	Type         AttachmentType     `bson:"type" json:"type"`
	Size         float64            `bson:"size" json:"size"`
	UploadedAt   time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}

type Subtask struct {
	Title     string `bson:"title" json:"title"`
	Completed bool   `bson:"completed" json:"completed"`
}

type Reply struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time         `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time         `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	Replies   []Reply            `bson:"replies" json:"replies"`
}

// Task is the aggregate root: the document plus its embedded subtasks,
// attachments, activity log and comment tree is loaded, mutated in memory
// and persisted as one write.
type Task struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Status      TaskStatus           `bson:"status" json:"status"`
	Priority    TaskPriority         `bson:"priority" json:"priority"`
	Tags        []string             `bson:"tags" json:"tags"`
	StartDate   *time.Time           `bson:"startDate,omitempty" json:"startDate,omitempty"`
	DueDate     *time.Time           `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	Owner       primitive.ObjectID   `bson:"owner" json:"owner"`
	AssignedTo  []primitive.ObjectID `bson:"assignedTo" json:"assignedTo"`
	Subtask     []Subtask            `bson:"subtask" json:"subtask"`
	Attachment  []Attachment         `bson:"attachment" json:"attachment"`
	Activity    []ActivityEntry      `bson:"activity" json:"activity"`
	Comments    []Comment            `bson:"comments" json:"comments"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
}

// IsOwner reports whether the user created the task.
func (t *Task) IsOwner(userID primitive.ObjectID) bool {
	return t.Owner == userID
}

// IsAssignee reports whether the user is an accepted member.
func (t *Task) IsAssignee(userID primitive.ObjectID) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether the user may read or mutate the task.
func (t *Task) IsParticipant(userID primitive.ObjectID) bool {
	return t.IsOwner(userID) || t.IsAssignee(userID)
}

// AddAssignee appends the user to assignedTo unless already present or the
// owner. The owner is never a member of their own assignment list.
func (t *Task) AddAssignee(userID primitive.ObjectID) {
	if t.IsOwner(userID) || t.IsAssignee(userID) {
		return
	}
	t.AssignedTo = append(t.AssignedTo, userID)
}

// RemoveAssignee drops the user from assignedTo.
func (t *Task) RemoveAssignee(userID primitive.ObjectID) {
	kept := t.AssignedTo[:0]
	for _, id := range t.AssignedTo {
		if id != userID {
			kept = append(kept, id)
		}
	}
	t.AssignedTo = kept
}

// FindComment returns the comment with the given id, or nil.
func (t *Task) FindComment(commentID primitive.ObjectID) *Comment {
	for i := range t.Comments {
		if t.Comments[i].ID == commentID {
			return &t.Comments[i]
		}
	}
	return nil
}

// FindReply returns the reply with the given id inside the comment, or nil.
func (c *Comment) FindReply(replyID primitive.ObjectID) *Reply {
	for i := range c.Replies {
		if c.Replies[i].ID == replyID {
			return &c.Replies[i]
		}
	}
	return nil
}
