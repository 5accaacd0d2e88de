// internal/workers/notification/delete-notifications/models.go
package deletenotifications

import "community-notifications/internal/workers/notification/shared"

// Input names exactly one of NotificationID or Scope.
type Input struct {
	Caller         *shared.Caller `json:"caller,omitempty"`
	AccessToken    string         `json:"accessToken,omitempty"`
	NotificationID string         `json:"notificationId,omitempty"`
	Scope          string         `json:"scope,omitempty"`
}

type Output struct {
	Deleted int    `json:"deleted"`
	Total   int    `json:"total"`
	Scope   string `json:"scope,omitempty"`
}
