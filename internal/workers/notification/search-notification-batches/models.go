// internal/workers/notification/search-notification-batches/models.go
package searchnotificationbatches

import (
	"community-notifications/internal/notification/audit"
	"community-notifications/internal/workers/notification/shared"
)

type Input struct {
	Caller      *shared.Caller `json:"caller,omitempty"`
	AccessToken string         `json:"accessToken,omitempty"`
	Text        string         `json:"text,omitempty"`
	RecordedBy  string         `json:"recordedBy,omitempty"`
	RuleKind    string         `json:"ruleKind,omitempty"`
	From        string         `json:"from,omitempty"` // RFC 3339
	To          string         `json:"to,omitempty"`
	Size        int            `json:"size,omitempty"`
}

type Output struct {
	Batches   []audit.BatchDocument `json:"batches"`
	TotalHits int64                 `json:"totalHits"`
	Took      int64                 `json:"took"` // milliseconds
}
