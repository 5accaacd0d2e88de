// internal/workers/notification/list-notifications/models.go
package listnotifications

import (
	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"
)

type Input struct {
	Caller      *shared.Caller `json:"caller,omitempty"`
	AccessToken string         `json:"accessToken,omitempty"`
	Scope       string         `json:"scope"`
	Cursor      string         `json:"cursor,omitempty"`
	Direction   string         `json:"direction,omitempty"`
	PageSize    int            `json:"pageSize,omitempty"`
}

type Output struct {
	Records     []notification.DeliveryRecord `json:"records"`
	NextCursor  string                        `json:"nextCursor,omitempty"`
	PrevCursor  string                        `json:"prevCursor,omitempty"`
	IsLastPage  bool                          `json:"isLastPage"`
	UnreadCount *int                          `json:"unreadCount,omitempty"` // only for a single recipient scope
}
