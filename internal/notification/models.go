// Package notification implements targeted fan-out of one logical message into per-recipient
// inbox records, cursor-paginated inbox reads and the unread/read/deleted record lifecycle.
package notification

import "time"

type Role string

const (
	RoleResident  Role = "resident"
	RoleAdmin     Role = "admin"
	RoleTreasurer Role = "treasurer"
	RoleOfficer   Role = "officer"
)

// StaffRoles lists the roles allowed to send, in the order "all staff" resolves them.
var StaffRoles = []Role{RoleAdmin, RoleTreasurer, RoleOfficer}

func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleAdmin, RoleTreasurer, RoleOfficer:
		return true
	}
	return false
}

func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleTreasurer || r == RoleOfficer
}

// Recipient is a user as seen by the directory. Read-only here.
type Recipient struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
}

const (
	MaxTitleLength = 50
	MaxBodyLength  = 1200

	// RecipientNamePlaceholder is replaced by the recipient's display name in the body.
	RecipientNamePlaceholder = "{{recipientName}}"
)

// MessageTemplate is the caller-authored message before personalization. Lengths are in
// characters, not bytes.
type MessageTemplate struct {
	Title    string `json:"title" validate:"notblank,max=50"`
	Body     string `json:"body" validate:"notblank,max=1200"`
	Link     string `json:"link,omitempty" validate:"omitempty,startswith=/"`
	ImageURL string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// RenderedMessage is the personalized message for one recipient.
type RenderedMessage struct {
	RecipientID string `json:"recipientId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// DeliveryRecord is one recipient's copy of a logical send.
type DeliveryRecord struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipientId"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Read        bool       `json:"read"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Link        string     `json:"link,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	BatchID     string     `json:"batchId"`
	RecordedBy  string     `json:"recordedBy"`
}

// Cursor returns the pagination position of the record.
func (r DeliveryRecord) Cursor() Cursor {
	return Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
}

type RuleKind string

const (
	RuleExplicit        RuleKind = "explicit"
	RuleAllOfRole       RuleKind = "allOfRole"
	RuleAllStaff        RuleKind = "allStaff"
	RuleUnpaidForPeriod RuleKind = "unpaidForPeriod"
)

// TargetRule selects recipients. Only the field matching Kind is read.
type TargetRule struct {
	Kind   RuleKind `json:"kind"`
	IDs    []string `json:"ids,omitempty"`
	Role   Role     `json:"role,omitempty"`
	Period string   `json:"period,omitempty"`
}

// Describe renders the rule for logs and the audit index.
func (r TargetRule) Describe() string {
	switch r.Kind {
	case RuleExplicit:
		return "explicit"
	case RuleAllOfRole:
		return "allOfRole:" + string(r.Role)
	case RuleUnpaidForPeriod:
		return "unpaidForPeriod:" + r.Period
	default:
		return string(r.Kind)
	}
}

// ScopeAll addresses every recipient's records. Any other scope value is a recipient ID.
const ScopeAll = "all"

type Direction string

const (
	DirectionNext Direction = "next" // older than the cursor
	DirectionPrev Direction = "prev" // newer than the cursor
)

// FanoutResult describes a committed (or replayed) logical send.
type FanoutResult struct {
	BatchID    string `json:"batchId"`
	Count      int    `json:"count"`
	Created    int    `json:"created"`
	SubBatches int    `json:"subBatches"`
	Replayed   bool   `json:"replayed"`
}

// BatchSummary is what post-commit observers learn about a send.
type BatchSummary struct {
	BatchID    string    `json:"batchId"`
	Title      string    `json:"title"`
	Rule       string    `json:"rule"`
	RuleKind   RuleKind  `json:"ruleKind"`
	Count      int       `json:"count"`
	Created    int       `json:"created"`
	RecordedBy string    `json:"recordedBy"`
	RecordedAt time.Time `json:"recordedAt"`
	Link       string    `json:"link,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
}

type Page struct {
	Records    []DeliveryRecord `json:"records"`
	NextCursor string           `json:"nextCursor,omitempty"`
	PrevCursor string           `json:"prevCursor,omitempty"`
	IsLastPage bool             `json:"isLastPage"`
}

type MarkReadResult struct {
	Changed  bool            `json:"changed"`
	Conflict bool            `json:"conflict"`
	Record   *DeliveryRecord `json:"record,omitempty"`
}

type DeleteResult struct {
	Deleted int `json:"deleted"`
	Total   int `json:"total"`
}
