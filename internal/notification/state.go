package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community-notifications/internal/common/logger"
	"community-notifications/internal/common/metrics"
)

// StateMachine owns the unread -> read -> deleted lifecycle. Read never reverts and deletes
// are permanent.
type StateMachine struct {
	store       Store
	deleteChunk int
	log         logger.Logger
	now         func() time.Time
}

func NewStateMachine(store Store, deleteChunk int, log logger.Logger) *StateMachine {
	if deleteChunk <= 0 {
		deleteChunk = DefaultMaxBatchSize
	}
	return &StateMachine{
		store:       store,
		deleteChunk: deleteChunk,
		log:         log.WithFields(map[string]interface{}{"component": "state"}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MarkRead marks the caller's own record read. Repeating it is a no-op. A record that is gone
// (never existed or deleted concurrently) is a resolved conflict, not an error.
func (s *StateMachine) MarkRead(ctx context.Context, session Session, id string) (*MarkReadResult, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return s.conflict(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrInboxQueryFailed, id, err)
	}

	if rec.RecipientID != session.CallerID {
		return nil, fmt.Errorf("%w: %s does not own notification %s", ErrAccessDenied, session.CallerID, id)
	}
	if rec.Read {
		return &MarkReadResult{Record: rec}, nil
	}

	readAt := s.now()
	outcome, err := s.store.CommitBatch(ctx, []BatchOp{{Kind: OpMarkRead, ID: id, ReadAt: readAt}})
	if err != nil {
		return nil, fmt.Errorf("%w: mark %s read: %w", ErrInboxQueryFailed, id, err)
	}

	if outcome.Updated == 0 {
		// lost a race: either someone else marked it or it was deleted
		current, err := s.store.Get(ctx, id)
		if errors.Is(err, ErrRecordNotFound) {
			return s.conflict(id), nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %w", ErrInboxQueryFailed, id, err)
		}
		return &MarkReadResult{Record: current}, nil
	}

	metrics.RecordsMarkedRead.Inc()
	rec.Read = true
	rec.ReadAt = &readAt
	return &MarkReadResult{Changed: true, Record: rec}, nil
}

func (s *StateMachine) conflict(id string) *MarkReadResult {
	s.log.Warn("mark read on missing notification", map[string]interface{}{
		"notificationId": id,
		"error":          ErrReadStateConflict,
	})
	return &MarkReadResult{Conflict: true}
}

// DeleteOne deletes a single record. It reports false when the record does not exist.
func (s *StateMachine) DeleteOne(ctx context.Context, session Session, id string) (bool, error) {
	if err := session.Validate(); err != nil {
		return false, err
	}

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %w", ErrInboxQueryFailed, id, err)
	}
	if !session.canDelete(rec) {
		return false, fmt.Errorf("%w: %s cannot delete notification %s", ErrAccessDenied, session.CallerID, id)
	}

	outcome, err := s.store.CommitBatch(ctx, []BatchOp{{Kind: OpDelete, ID: id}})
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %w", ErrInboxQueryFailed, id, err)
	}
	metrics.RecordsDeleted.WithLabelValues("one").Add(float64(outcome.Deleted))
	return outcome.Deleted > 0, nil
}

// DeleteAll removes every record of scope in atomic chunks. Chunks already committed stay
// deleted when a later one fails; the result then carries that count alongside
// ErrDeletePartial.
func (s *StateMachine) DeleteAll(ctx context.Context, session Session, scope string) (*DeleteResult, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if scope == "" {
		scope = session.CallerID
	}
	if !session.canAccessScope(scope) {
		return nil, fmt.Errorf("%w: %s cannot delete scope %s", ErrAccessDenied, session.CallerID, scope)
	}

	recipientID := scope
	if scope == ScopeAll {
		recipientID = ""
	}
	ids, err := s.store.RecordIDs(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate %s: %w", ErrInboxQueryFailed, scope, err)
	}

	result := &DeleteResult{Total: len(ids)}
	for offset := 0; offset < len(ids); offset += s.deleteChunk {
		end := min(offset+s.deleteChunk, len(ids))

		ops := make([]BatchOp, 0, end-offset)
		for _, id := range ids[offset:end] {
			ops = append(ops, BatchOp{Kind: OpDelete, ID: id})
		}

		outcome, err := s.store.CommitBatch(ctx, ops)
		if err != nil {
			metrics.RecordsDeleted.WithLabelValues("all").Add(float64(result.Deleted))
			s.log.Error("bulk delete stopped", map[string]interface{}{
				"scope":   scope,
				"deleted": result.Deleted,
				"total":   result.Total,
				"error":   err,
			})
			return result, fmt.Errorf("%w: deleted %d of %d in scope %s: %w",
				ErrDeletePartial, result.Deleted, result.Total, scope, err)
		}
		result.Deleted += outcome.Deleted
	}

	metrics.RecordsDeleted.WithLabelValues("all").Add(float64(result.Deleted))
	s.log.Info("bulk delete finished", map[string]interface{}{"scope": scope, "deleted": result.Deleted})
	return result, nil
}
