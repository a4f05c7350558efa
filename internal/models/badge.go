package models

import "time"

type BadgeCategory string

const (
	BadgeUnreadMessages BadgeCategory = "unread_messages"
	BadgeMentions       BadgeCategory = "mentions"
	BadgeDirectMessages BadgeCategory = "direct_messages"
	BadgeTasks          BadgeCategory = "tasks"
)

func IsValidBadgeCategory(c BadgeCategory) bool {
	switch c {
	case BadgeUnreadMessages, BadgeMentions, BadgeDirectMessages, BadgeTasks:
		return true
	}
	return false
}

// BadgeCount holds the per-(user, workspace) unread counters that feed the
// badge number stamped onto outgoing payloads. Counters never go negative;
// decrements clamp at zero.
type BadgeCount struct {
	UserID         string    `json:"user_id" db:"user_id"`
	WorkspaceID    string    `json:"workspace_id" db:"workspace_id"`
	UnreadMessages int       `json:"unread_messages" db:"unread_messages"`
	Mentions       int       `json:"mentions" db:"mentions"`
	DirectMessages int       `json:"direct_messages" db:"direct_messages"`
	Tasks          int       `json:"tasks" db:"tasks"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Sum returns the total across every category for one workspace row.
func (b BadgeCount) Sum() int {
	return b.UnreadMessages + b.Mentions + b.DirectMessages + b.Tasks
}
