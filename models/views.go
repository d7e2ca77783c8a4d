package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The view types mirror the populated documents the legacy API returned:
// user references expanded to {id, username, email, avatar} on the owner,
// assignment list, activity log and comment tree.

type ReplyView struct {
	ID        primitive.ObjectID `json:"id"`
	User      UserRef            `json:"user"`
	Comment   string             `json:"comment"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
}

type CommentView struct {
	ID        primitive.ObjectID `json:"id"`
	User      UserRef            `json:"user"`
	Comment   string             `json:"comment"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
	Replies   []ReplyView        `json:"replies"`
}

type ActivityView struct {
	User      UserRef      `json:"user"`
	Type      ActivityType `json:"type"`
	Action    string       `json:"action"`
	CreatedAt time.Time    `json:"createdAt"`
}

type TaskView struct {
	ID          primitive.ObjectID `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      TaskStatus         `json:"status"`
	Priority    TaskPriority       `json:"priority"`
	Tags        []string           `json:"tags"`
	StartDate   *time.Time         `json:"startDate,omitempty"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
	Owner       UserRef            `json:"owner"`
	AssignedTo  []UserRef          `json:"assignedTo"`
	Subtask     []Subtask          `json:"subtask"`
	Attachment  []Attachment       `json:"attachment"`
	Activity    []ActivityView     `json:"activity"`
	Comments    []CommentView      `json:"comments"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// ActivityFileView is the attachment metadata reattached to an upload entry
// in the recent-activity feed.
type ActivityFileView struct {
	Name string  `json:"name"`
	URL  string  `json:"url"`
	Size float64 `json:"size"`
}

// RecentActivityView is one row of the cross-task recent-activity feed.
type RecentActivityView struct {
	TaskID    primitive.ObjectID `json:"taskId"`
	TaskTitle string             `json:"taskTitle"`
	User      string             `json:"user"`
	Avatar    string             `json:"avatar"`
	Action    string             `json:"action"`
	CreatedAt time.Time          `json:"createdAt"`
	Files     []ActivityFileView `json:"files"`
}

// NotificationView is a notification with its task title and actor expanded.
type NotificationView struct {
	ID        primitive.ObjectID `json:"id"`
	User      primitive.ObjectID `json:"user"`
	Actor     *UserRef           `json:"actor,omitempty"`
	Task      primitive.ObjectID `json:"task,omitempty"`
	TaskTitle string             `json:"taskTitle,omitempty"`
	Message   string             `json:"message"`
	Read      bool               `json:"read"`
	CreatedAt time.Time          `json:"createdAt"`
}
