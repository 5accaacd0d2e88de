package notification

import (
	"context"
	"time"
)

// Directory reads users. GetRecipient returns nil, nil for an unknown ID.
type Directory interface {
	GetRecipientsByRole(ctx context.Context, role Role) ([]Recipient, error)
	GetRecipient(ctx context.Context, id string) (*Recipient, error)
}

// PaymentLedger answers whether a recipient has paid for a billing period.
type PaymentLedger interface {
	HasPayment(ctx context.Context, recipientID string, period Period) (bool, error)
}

type OpKind int

const (
	OpCreate OpKind = iota
	OpMarkRead
	OpDelete
)

// BatchOp is one write of an atomic batch. OpCreate uses Record, the others use ID;
// OpMarkRead also uses ReadAt.
type BatchOp struct {
	Kind   OpKind
	Record *DeliveryRecord
	ID     string
	ReadAt time.Time
}

// BatchOutcome counts rows actually changed. A create for a (batch, recipient) pair that
// already exists, a mark-read of a read or missing record and a delete of a missing record
// all count zero.
type BatchOutcome struct {
	Created int
	Updated int
	Deleted int
}

// RecordQuery selects one page. RecipientID "" means every recipient. With After set, Next
// returns records older than the cursor newest-first and Prev returns newer records
// oldest-first.
type RecordQuery struct {
	RecipientID string
	After       *Cursor
	Direction   Direction
	Limit       int
}

// Store persists delivery records.
type Store interface {
	// CommitBatch applies every op or none. Records created in one call share CreatedAt.
	CommitBatch(ctx context.Context, ops []BatchOp) (BatchOutcome, error)
	Query(ctx context.Context, q RecordQuery) ([]DeliveryRecord, error)
	// Get returns ErrRecordNotFound when id does not exist.
	Get(ctx context.Context, id string) (*DeliveryRecord, error)
	RecordIDs(ctx context.Context, recipientID string) ([]string, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// BatchGuard serializes sends sharing a caller-supplied batch ID.
type BatchGuard interface {
	// Acquire returns the stored result of a completed send, nil when the caller now holds
	// the batch, or ErrFanoutInProgress when another send holds it.
	Acquire(ctx context.Context, batchID string) (*FanoutResult, error)
	Complete(ctx context.Context, batchID string, result FanoutResult) error
	Release(ctx context.Context, batchID string) error
}

// FanoutObserver is told about every committed send. Its errors never undo the send.
type FanoutObserver interface {
	Name() string
	OnFanout(ctx context.Context, summary BatchSummary, messages []RenderedMessage) error
}

// NopGuard is the BatchGuard used when no coordination backend is configured.
type NopGuard struct{}

func (NopGuard) Acquire(context.Context, string) (*FanoutResult, error) { return nil, nil }
func (NopGuard) Complete(context.Context, string, FanoutResult) error   { return nil }
func (NopGuard) Release(context.Context, string) error                  { return nil }
