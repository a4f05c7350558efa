package notification

import (
	"encoding/json"

	"github.com/cappiels/chat-notify-api/internal/gateway"
	"github.com/cappiels/chat-notify-api/internal/models"
)

const maskedBody = "New notification"

// androidChannels maps notification types to the Android notification
// channel the client app registers for them.
var androidChannels = map[models.NotificationType]string{
	models.TypeMention:         "mentions",
	models.TypeDirectMessage:   "direct_messages",
	models.TypeThreadReply:     "threads",
	models.TypeTaskAssigned:    "tasks",
	models.TypeTaskDue:         "tasks",
	models.TypeTaskCompleted:   "tasks",
	models.TypeWorkspaceInvite: "workspace",
	models.TypeMessage:         "messages",
}

// BuildMessage shapes one intent into a gateway message for one device. All
// platforms carry the same title/body/data triple; iOS additionally gets the
// badge number and sound, Android the notification channel id. The body is
// masked when the user disabled message previews.
func BuildMessage(intent models.NotificationIntent, prefs models.Preferences, token models.DeviceToken) gateway.Message {
	body := intent.Body
	if !prefs.ShowPreview {
		body = maskedBody
	}

	data := map[string]interface{}{
		"type": string(intent.Type),
	}
	if intent.WorkspaceID != nil {
		data["workspace_id"] = *intent.WorkspaceID
	}
	if intent.ThreadID != nil {
		data["thread_id"] = *intent.ThreadID
	}
	if intent.MessageID != nil {
		data["message_id"] = *intent.MessageID
	}
	if len(intent.Data) > 0 {
		var extra map[string]interface{}
		if err := json.Unmarshal(intent.Data, &extra); err == nil {
			for k, v := range extra {
				data[k] = v
			}
		}
	}

	msg := gateway.Message{
		To:       token.Token,
		Title:    intent.Title,
		Body:     body,
		Data:     data,
		Priority: string(intent.Priority),
	}

	switch token.Platform {
	case models.PlatformIOS:
		if prefs.SoundEnabled {
			msg.Sound = "default"
		}
		if prefs.BadgeEnabled {
			badge := intent.Badge
			msg.Badge = &badge
		}
	case models.PlatformAndroid:
		msg.ChannelID = androidChannels[intent.Type]
	}

	return msg
}
