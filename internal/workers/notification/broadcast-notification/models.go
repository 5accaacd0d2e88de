// internal/workers/notification/broadcast-notification/models.go
package broadcastnotification

import (
	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"
)

const (
	StatusSent           = "sent"
	StatusReplayed       = "replayed"
	StatusEmptySelection = "empty_selection"
)

type Input struct {
	Caller      *shared.Caller               `json:"caller,omitempty"`
	AccessToken string                       `json:"accessToken,omitempty"`
	BatchID     string                       `json:"batchId,omitempty"`
	Rule        notification.TargetRule      `json:"rule"`
	Template    notification.MessageTemplate `json:"template"`
}

type Output struct {
	BatchID  string `json:"batchId,omitempty"`
	Count    int    `json:"count"`
	Created  int    `json:"created"`
	Replayed bool   `json:"replayed"`
	Status   string `json:"status"`
	Warning  string `json:"warning,omitempty"`
}
