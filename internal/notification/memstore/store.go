// Package memstore is an in-memory notification store, directory and payment ledger for
// tests and local development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"community-notifications/internal/notification"
)

type batchKey struct {
	batchID     string
	recipientID string
}

// Store keeps records in memory. It honors the same atomicity and uniqueness rules as the
// Postgres store.
type Store struct {
	mu      sync.Mutex
	records map[string]notification.DeliveryRecord
	byBatch map[batchKey]string
	last    time.Time
	calls   int

	now        func() time.Time
	commitHook func(call int, ops []notification.BatchOp) error
}

func NewStore() *Store {
	return &Store{
		records: map[string]notification.DeliveryRecord{},
		byBatch: map[batchKey]string{},
		now:     time.Now,
	}
}

// FailCommits installs a hook run before every CommitBatch; a non-nil return aborts that
// commit without applying any op. call counts from 1.
func (s *Store) FailCommits(hook func(call int, ops []notification.BatchOp) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = hook
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// commitTime is strictly increasing at microsecond precision, like a database clock.
func (s *Store) commitTime() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) CommitBatch(ctx context.Context, ops []notification.BatchOp) (notification.BatchOutcome, error) {
	var outcome notification.BatchOutcome
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.commitHook != nil {
		if err := s.commitHook(s.calls, ops); err != nil {
			return outcome, err
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case notification.OpCreate:
			if op.Record == nil || op.Record.ID == "" || op.Record.RecipientID == "" {
				return outcome, fmt.Errorf("create op without record id or recipient")
			}
		case notification.OpMarkRead, notification.OpDelete:
			if op.ID == "" {
				return outcome, fmt.Errorf("op %d without id", op.Kind)
			}
		default:
			return outcome, fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}

	createdAt := s.commitTime()
	for _, op := range ops {
		switch op.Kind {
		case notification.OpCreate:
			key := batchKey{op.Record.BatchID, op.Record.RecipientID}
			if _, dup := s.byBatch[key]; dup {
				continue
			}
			rec := *op.Record
			rec.CreatedAt = createdAt
			rec.Read = false
			rec.ReadAt = nil
			s.records[rec.ID] = rec
			s.byBatch[key] = rec.ID
			outcome.Created++

		case notification.OpMarkRead:
			rec, ok := s.records[op.ID]
			if !ok || rec.Read {
				continue
			}
			readAt := op.ReadAt
			rec.Read = true
			rec.ReadAt = &readAt
			s.records[op.ID] = rec
			outcome.Updated++

		case notification.OpDelete:
			rec, ok := s.records[op.ID]
			if !ok {
				continue
			}
			delete(s.records, op.ID)
			delete(s.byBatch, batchKey{rec.BatchID, rec.RecipientID})
			outcome.Deleted++
		}
	}
	return outcome, nil
}

func (s *Store) Query(ctx context.Context, q notification.RecordQuery) ([]notification.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []notification.DeliveryRecord
	for _, rec := range s.records {
		if q.RecipientID != "" && rec.RecipientID != q.RecipientID {
			continue
		}
		if q.After != nil {
			c := rec.Cursor()
			if q.Direction == notification.DirectionPrev && !c.Before(*q.After) {
				continue
			}
			if q.Direction != notification.DirectionPrev && !q.After.Before(c) {
				continue
			}
		}
		out = append(out, rec)
	}

	ascending := q.Direction == notification.DirectionPrev && q.After != nil
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[j].Cursor().Before(out[i].Cursor())
		}
		return out[i].Cursor().Before(out[j].Cursor())
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*notification.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", notification.ErrRecordNotFound, id)
	}
	return &rec, nil
}

func (s *Store) RecordIDs(ctx context.Context, recipientID string) ([]string, error) {
	recs, err := s.Query(ctx, notification.RecordQuery{RecipientID: recipientID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *Store) CountUnread(ctx context.Context, recipientID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.records {
		if rec.RecipientID == recipientID && !rec.Read {
			n++
		}
	}
	return n, nil
}
