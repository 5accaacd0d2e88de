package notification

import (
	"context"
	"fmt"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type InboxConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// ListRequest asks for one page of Scope (a recipient ID or ScopeAll). An empty Scope is the
// caller's own inbox; an empty Cursor starts at the newest record.
type ListRequest struct {
	Scope     string
	Cursor    string
	Direction Direction
	PageSize  int
}

// Inbox reads delivery records newest-first.
type Inbox struct {
	store Store
	cfg   InboxConfig
}

func NewInbox(store Store, cfg InboxConfig) *Inbox {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = min(DefaultPageSize, cfg.MaxPageSize)
	}
	return &Inbox{store: store, cfg: cfg}
}

func (i *Inbox) List(ctx context.Context, session Session, req ListRequest) (*Page, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	scope := req.Scope
	if scope == "" {
		scope = session.CallerID
	}
	if !session.canAccessScope(scope) {
		return nil, fmt.Errorf("%w: %s cannot read scope %s", ErrAccessDenied, session.CallerID, scope)
	}

	direction := req.Direction
	switch direction {
	case "":
		direction = DirectionNext
	case DirectionNext, DirectionPrev:
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidCursor, direction)
	}

	var after *Cursor
	if req.Cursor != "" {
		c, err := DecodeCursor(req.Cursor)
		if err != nil {
			return nil, err
		}
		after = c
	} else {
		// without a position there is nothing newer to walk back to
		direction = DirectionNext
	}

	pageSize := i.pageSize(req.PageSize)
	q := RecordQuery{Direction: direction, After: after, Limit: pageSize}
	if scope != ScopeAll {
		q.RecipientID = scope
	}

	records, err := i.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInboxQueryFailed, err)
	}
	if direction == DirectionPrev {
		reverse(records)
	}

	page := &Page{Records: records, IsLastPage: len(records) < pageSize}
	if page.Records == nil {
		page.Records = []DeliveryRecord{}
	}
	if n := len(records); n > 0 {
		page.PrevCursor = records[0].Cursor().Encode()
		page.NextCursor = records[n-1].Cursor().Encode()
	}
	return page, nil
}

// UnreadCount counts unread records of one recipient under the same access rule as List.
func (i *Inbox) UnreadCount(ctx context.Context, session Session, recipientID string) (int, error) {
	if err := session.Validate(); err != nil {
		return 0, err
	}
	if recipientID == "" {
		recipientID = session.CallerID
	}
	if recipientID == ScopeAll || !session.canAccessScope(recipientID) {
		return 0, fmt.Errorf("%w: %s cannot read scope %s", ErrAccessDenied, session.CallerID, recipientID)
	}

	n, err := i.store.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInboxQueryFailed, err)
	}
	return n, nil
}

func (i *Inbox) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return i.cfg.DefaultPageSize
	case requested > i.cfg.MaxPageSize:
		return i.cfg.MaxPageSize
	default:
		return requested
	}
}

func reverse(records []DeliveryRecord) {
	for l, r := 0, len(records)-1; l < r; l, r = l+1, r-1 {
		records[l], records[r] = records[r], records[l]
	}
}
