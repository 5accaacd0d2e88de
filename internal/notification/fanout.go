package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community-notifications/internal/common/logger"
	"community-notifications/internal/common/metrics"

	"github.com/google/uuid"
)

// DefaultMaxBatchSize is the largest atomic write the store accepts.
const DefaultMaxBatchSize = 500

type FanoutConfig struct {
	MaxBatchSize int
}

// SendRequest carries the rendered messages of one logical send. BatchID is the caller's
// idempotency key; when empty a fresh one is generated and retries are not deduplicated.
type SendRequest struct {
	BatchID  string
	Messages []RenderedMessage
	Link     string
	ImageURL string
}

// Writer commits rendered messages as delivery records.
type Writer struct {
	store    Store
	guard    BatchGuard
	maxBatch int
	log      logger.Logger
}

func NewWriter(store Store, guard BatchGuard, cfg FanoutConfig, log logger.Logger) *Writer {
	if guard == nil {
		guard = NopGuard{}
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Writer{
		store:    store,
		guard:    guard,
		maxBatch: cfg.MaxBatchSize,
		log:      log.WithFields(map[string]interface{}{"component": "fanout"}),
	}
}

// Send writes one record per message. Up to MaxBatchSize records commit atomically; larger
// sends are split into sub-batches committed in order, and a failure after some of them
// returns a *FanoutError with the committed count.
func (w *Writer) Send(ctx context.Context, session Session, req SendRequest) (*FanoutResult, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if !session.IsStaff() {
		return nil, fmt.Errorf("%w: role %s cannot send notifications", ErrAccessDenied, session.Role)
	}

	messages := uniqueByRecipient(req.Messages)
	if len(messages) == 0 {
		return nil, ErrEmptySelection
	}

	batchID := req.BatchID
	keyed := batchID != ""
	if !keyed {
		batchID = uuid.NewString()
	}
	log := w.log.WithFields(map[string]interface{}{"batchId": batchID, "recipients": len(messages)})

	if keyed {
		prior, err := w.guard.Acquire(ctx, batchID)
		switch {
		case errors.Is(err, ErrFanoutInProgress):
			return nil, err
		case err != nil:
			// the unique (batch, recipient) constraint still deduplicates without the guard
			log.Warn("batch guard unavailable, continuing unguarded", map[string]interface{}{"error": err})
			keyed = false
		case prior != nil:
			replay := *prior
			replay.Replayed = true
			log.Info("replaying completed send", nil)
			return &replay, nil
		}
	}

	start := time.Now()
	result := &FanoutResult{BatchID: batchID}

	for offset := 0; offset < len(messages); offset += w.maxBatch {
		end := offset + w.maxBatch
		if end > len(messages) {
			end = len(messages)
		}

		outcome, err := w.store.CommitBatch(ctx, w.createOps(session, batchID, req, messages[offset:end]))
		if err != nil {
			if keyed {
				if rerr := w.guard.Release(ctx, batchID); rerr != nil {
					log.Warn("failed to release batch guard", map[string]interface{}{"error": rerr})
				}
			}
			fe := &FanoutError{BatchID: batchID, Committed: result.Count, Total: len(messages), Err: err}
			log.Error("fan-out write failed", map[string]interface{}{
				"committed": fe.Committed,
				"subBatch":  result.SubBatches + 1,
				"error":     err,
				"partial":   fe.Partial(),
			})
			return nil, fe
		}

		result.SubBatches++
		result.Count += end - offset
		result.Created += outcome.Created
	}

	metrics.FanoutDuration.Observe(time.Since(start).Seconds())
	metrics.FanoutRecordsCreated.Add(float64(result.Created))

	if keyed {
		if err := w.guard.Complete(ctx, batchID, *result); err != nil {
			log.Warn("failed to store fan-out result", map[string]interface{}{"error": err})
		}
	}

	log.Info("fan-out committed", map[string]interface{}{
		"created":    result.Created,
		"subBatches": result.SubBatches,
	})
	return result, nil
}

func (w *Writer) createOps(session Session, batchID string, req SendRequest, msgs []RenderedMessage) []BatchOp {
	ops := make([]BatchOp, 0, len(msgs))
	for _, m := range msgs {
		ops = append(ops, BatchOp{
			Kind: OpCreate,
			Record: &DeliveryRecord{
				ID:          uuid.NewString(),
				RecipientID: m.RecipientID,
				Title:       m.Title,
				Message:     m.Body,
				Link:        req.Link,
				ImageURL:    req.ImageURL,
				BatchID:     batchID,
				RecordedBy:  session.CallerID,
			},
		})
	}
	return ops
}

func uniqueByRecipient(msgs []RenderedMessage) []RenderedMessage {
	seen := make(map[string]bool, len(msgs))
	out := make([]RenderedMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.RecipientID == "" || seen[m.RecipientID] {
			continue
		}
		seen[m.RecipientID] = true
		out = append(out, m)
	}
	return out
}
