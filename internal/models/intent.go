package models

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	TypeMention         NotificationType = "mention"
	TypeDirectMessage   NotificationType = "direct_message"
	TypeThreadReply     NotificationType = "thread_reply"
	TypeTaskAssigned    NotificationType = "task_assigned"
	TypeTaskDue         NotificationType = "task_due"
	TypeTaskCompleted   NotificationType = "task_completed"
	TypeWorkspaceInvite NotificationType = "workspace_invite"
	// TypeMessage is the generic "every message" event; it is only delivered
	// to users who explicitly opted in to notify_every_message.
	TypeMessage NotificationType = "message"
)

func IsValidNotificationType(t NotificationType) bool {
	switch t {
	case TypeMention, TypeDirectMessage, TypeThreadReply, TypeTaskAssigned,
		TypeTaskDue, TypeTaskCompleted, TypeWorkspaceInvite, TypeMessage:
		return true
	}
	return false
}

type IntentPriority string

const (
	PriorityHigh   IntentPriority = "high"
	PriorityNormal IntentPriority = "normal"
)

type IntentStatus string

const (
	StatusPending    IntentStatus = "pending"
	StatusProcessing IntentStatus = "processing"
	StatusSent       IntentStatus = "sent"
	StatusFailed     IntentStatus = "failed"
	StatusCancelled  IntentStatus = "cancelled"
)

// DeviceFailure is one entry of an intent's per-device failure ledger.
type DeviceFailure struct {
	Token string `json:"token"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// NotificationIntent is the durable record of one decided-to-send
// notification. Intents are created only after an affirmative eligibility
// decision, mutated exclusively by the delivery worker afterwards, and kept
// in their terminal state for a bounded retention window for audit.
type NotificationIntent struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	WorkspaceID *string          `json:"workspace_id,omitempty" db:"workspace_id"`
	ThreadID    *string          `json:"thread_id,omitempty" db:"thread_id"`
	MessageID   *string          `json:"message_id,omitempty" db:"message_id"`
	Type        NotificationType `json:"type" db:"type"`
	Title       string           `json:"title" db:"title"`
	Body        string           `json:"body" db:"body"`
	Data        json.RawMessage  `json:"data,omitempty" db:"data"`
	Badge       int              `json:"badge" db:"badge"`
	Priority    IntentPriority   `json:"priority" db:"priority"`
	Status      IntentStatus     `json:"status" db:"status"`
	RetryCount  int              `json:"retry_count" db:"retry_count"`
	// DeviceErrors accumulates per-token failures across the item's delivery
	// attempt; it is audit data, not retry state.
	DeviceErrors []DeviceFailure `json:"device_errors,omitempty" db:"device_errors"`
	ScheduledFor time.Time       `json:"scheduled_for" db:"scheduled_for"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}
