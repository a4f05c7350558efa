package gateway

import (
	"context"
	"fmt"
)

// Message is one push addressed to a single device token. The platform
// shaping (badge/sound for iOS, channel id for Android) is done by the
// caller; the gateway transports whatever it is handed.
type Message struct {
	To        string                 `json:"to"`
	Title     string                 `json:"title,omitempty"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Sound     string                 `json:"sound,omitempty"`
	Badge     *int                   `json:"badge,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"`
	Priority  string                 `json:"priority,omitempty"`
}

// Receipt is the gateway's acknowledgement of an accepted message.
type Receipt struct {
	MessageID string
}

// Error codes the gateway returns for rejected messages. DeviceNotRegistered
// and InvalidToken mean the token will never work again.
const (
	CodeDeviceNotRegistered = "DeviceNotRegistered"
	CodeInvalidToken        = "InvalidToken"
	CodeMessageTooBig       = "MessageTooBig"
	CodeRateLimited         = "MessageRateExceeded"
)

// Error is a typed delivery failure reported by the push gateway.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Permanent reports whether the failure means the token is dead and should
// be deactivated. Everything else (network, rate limit, payload problems)
// leaves the token active.
func (e *Error) Permanent() bool {
	return e.Code == CodeDeviceNotRegistered || e.Code == CodeInvalidToken
}

// IsPermanent classifies an arbitrary delivery error.
func IsPermanent(err error) bool {
	gwErr, ok := err.(*Error)
	return ok && gwErr.Permanent()
}

// Gateway delivers one message to one device token and reports a typed
// outcome.
type Gateway interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
