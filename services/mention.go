package services

import (
	"context"
	"regexp"

	"github.com/irfandhamhudi/APi-FocusFlow/models"
)

// A mention is an @username token in comment or reply text. Candidate
// usernames that resolve to nobody are silently dropped, as are duplicates.
var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns the unique candidate usernames in order of first
// appearance.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var usernames []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			usernames = append(usernames, m[1])
		}
	}
	return usernames
}

// NewMentions returns the usernames mentioned in newText but not in oldText.
// Editing a comment only notifies people who were not already mentioned in
// the previous version.
func NewMentions(oldText, newText string) []string {
	old := make(map[string]bool)
	for _, u := range ExtractMentions(oldText) {
		old[u] = true
	}
	var fresh []string
	for _, u := range ExtractMentions(newText) {
		if !old[u] {
			fresh = append(fresh, u)
		}
	}
	return fresh
}

// MentionResolver resolves candidate usernames against the user directory.
type MentionResolver struct {
	users UserRepository
}

func NewMentionResolver(users UserRepository) *MentionResolver {
	return &MentionResolver{users: users}
}

// Resolve maps candidate usernames to users via exact username match.
func (r *MentionResolver) Resolve(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	return r.users.FindManyByUsernames(ctx, usernames)
}
