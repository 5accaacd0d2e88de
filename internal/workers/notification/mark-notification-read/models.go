// internal/workers/notification/mark-notification-read/models.go
package marknotificationread

import (
	"time"

	"community-notifications/internal/workers/notification/shared"
)

const (
	StatusMarked      = "marked"
	StatusAlreadyRead = "already_read"
	StatusConflict    = "conflict"
)

type Input struct {
	Caller         *shared.Caller `json:"caller,omitempty"`
	AccessToken    string         `json:"accessToken,omitempty"`
	NotificationID string         `json:"notificationId"`
}

type Output struct {
	NotificationID string     `json:"notificationId"`
	Status         string     `json:"status"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}
