package models

import "time"

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func IsValidPlatform(p Platform) bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

// DeviceToken identifies one installed client instance capable of receiving
// push delivery. A token is owned by exactly one user at a time; (user_id,
// token) is unique. Tokens are deactivated, never hard-deleted, when the
// gateway reports them permanently invalid or after a long idle period.
type DeviceToken struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Token      string    `json:"token" db:"token"`
	Platform   Platform  `json:"platform" db:"platform"`
	DeviceName string    `json:"device_name,omitempty" db:"device_name"`
	Active     bool      `json:"active" db:"active"`
	LastUsedAt time.Time `json:"last_used_at" db:"last_used_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
