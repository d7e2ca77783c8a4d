package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActivityType string

const (
	ActivityTaskCreated        ActivityType = "taskCreated"
	ActivityFilesUploaded      ActivityType = "filesUploaded"
	ActivityStatusChanged      ActivityType = "statusChanged"
	ActivityPriorityChanged    ActivityType = "priorityChanged"
	ActivityMembersInvited     ActivityType = "membersInvited"
	ActivityMembersRemoved     ActivityType = "membersRemoved"
	ActivityInvitationAccepted ActivityType = "invitationAccepted"
	ActivityInvitationDeclined ActivityType = "invitationDeclined"
	ActivityCommentAdded       ActivityType = "commentAdded"
	ActivityCommentEdited      ActivityType = "commentEdited"
	ActivityCommentDeleted     ActivityType = "commentDeleted"
	ActivityReplyAdded         ActivityType = "replyAdded"
	ActivityReplyEdited        ActivityType = "replyEdited"
	ActivityReplyDeleted       ActivityType = "replyDeleted"
	ActivityTaskDeleted        ActivityType = "taskDeleted"
)

// ActivityEntry is one append-only audit line on a task. Entries are stored
// structurally (type plus the fields that type needs) and rendered to the
// legacy human-readable string at the presentation boundary; Username and
// TaskTitle are snapshots taken at write time so rendering never needs a
// directory lookup.
//
// Upload entries carry the ObjectIDs of the attachments they introduced so
// the recent-activity view can join entry to files without guessing from
// timestamps.
type ActivityEntry struct {
	User          primitive.ObjectID   `bson:"user" json:"-"`
	Username      string               `bson:"username" json:"-"`
	Type          ActivityType         `bson:"type" json:"type"`
	TaskTitle     string               `bson:"taskTitle,omitempty" json:"-"`
	Old           string               `bson:"old,omitempty" json:"-"`
	New           string               `bson:"new,omitempty" json:"-"`
	Names         []string             `bson:"names,omitempty" json:"-"`
	Text          string               `bson:"text,omitempty" json:"-"`
	ViaLink       bool                 `bson:"viaLink,omitempty" json:"-"`
	AttachmentIDs []primitive.ObjectID `bson:"attachmentIds,omitempty" json:"-"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
}

// Render produces the legacy activity line for this entry. Consumers parse
// these strings, so the formats are load-bearing and must not drift.
func (e ActivityEntry) Render() string {
	user := e.Username
	switch e.Type {
	case ActivityTaskCreated:
		return fmt.Sprintf("%s created task %s", user, e.TaskTitle)
	case ActivityFilesUploaded:
		return fmt.Sprintf("%s uploaded file(s): %s", user, strings.Join(e.Names, ", "))
	case ActivityStatusChanged:
		return fmt.Sprintf("%s changed status from %s to %s", user, e.Old, e.New)
	case ActivityPriorityChanged:
		return fmt.Sprintf("%s changed priority from %s to %s", user, e.Old, e.New)
	case ActivityMembersInvited:
		return fmt.Sprintf("%s invited %s to join %s", user, strings.Join(e.Names, ", "), e.TaskTitle)
	case ActivityMembersRemoved:
		return fmt.Sprintf("%s removed %s from %s", user, strings.Join(e.Names, ", "), e.TaskTitle)
	case ActivityInvitationAccepted:
		if e.ViaLink {
			return fmt.Sprintf("%s accepted invitation to join %s via invite link", user, e.TaskTitle)
		}
		return fmt.Sprintf("%s accepted invitation to join %s", user, e.TaskTitle)
	case ActivityInvitationDeclined:
		return fmt.Sprintf("%s declined invitation to join %s", user, e.TaskTitle)
	case ActivityCommentAdded:
		return fmt.Sprintf("%s added comment %s", user, e.Text)
	case ActivityCommentEdited:
		return fmt.Sprintf("%s edited comment from %q to %q", user, e.Old, e.New)
	case ActivityCommentDeleted:
		return fmt.Sprintf("%s deleted comment: %q", user, e.Text)
	case ActivityReplyAdded:
		return fmt.Sprintf("%s replied comment %s", user, e.Text)
	case ActivityReplyEdited:
		return fmt.Sprintf("%s edited reply from %q to %q", user, e.Old, e.New)
	case ActivityReplyDeleted:
		return fmt.Sprintf("%s deleted reply: %q", user, e.Text)
	case ActivityTaskDeleted:
		return fmt.Sprintf("%s deleted task %s", user, e.TaskTitle)
	}
	return ""
}

// MarshalJSON emits the structured entry together with the rendered action
// line the legacy API exposed.
func (e ActivityEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		User      primitive.ObjectID `json:"user"`
		Username  string             `json:"username"`
		Type      ActivityType       `json:"type"`
		Action    string             `json:"action"`
		CreatedAt time.Time          `json:"createdAt"`
	}
	return json.Marshal(alias{
		User:      e.User,
		Username:  e.Username,
		Type:      e.Type,
		Action:    e.Render(),
		CreatedAt: e.CreatedAt,
	})
}
