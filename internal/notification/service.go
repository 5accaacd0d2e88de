package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community-notifications/internal/common/config"
	"community-notifications/internal/common/logger"
	"community-notifications/internal/common/metrics"
	"community-notifications/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
)

type Config struct {
	Composer ComposerConfig
	Fanout   FanoutConfig
	Inbox    InboxConfig
}

// ConfigFrom maps the notifications config section.
func ConfigFrom(n config.NotificationConfig) Config {
	return Config{
		Composer: ComposerConfig{
			Salutation:   n.Composer.Salutation,
			FallbackName: n.Composer.FallbackName,
			Closing:      n.Composer.Closing,
		},
		Fanout: FanoutConfig{MaxBatchSize: n.Fanout.MaxBatchSize},
		Inbox: InboxConfig{
			DefaultPageSize: n.Inbox.DefaultPageSize,
			MaxPageSize:     n.Inbox.MaxPageSize,
		},
	}
}

// Dependencies are the adapters the service runs on. Guard and Observers are optional.
type Dependencies struct {
	Store     Store
	Directory Directory
	Ledger    PaymentLedger
	Guard     BatchGuard
	Observers []FanoutObserver
}

type BroadcastRequest struct {
	Rule     TargetRule
	Template MessageTemplate
	BatchID  string
}

// Service wires resolver, composer, writer, inbox and state machine together.
type Service struct {
	resolver  *Resolver
	composer  *Composer
	writer    *Writer
	inbox     *Inbox
	state     *StateMachine
	observers []FanoutObserver
	log       logger.Logger
}

func NewService(deps Dependencies, cfg Config, log logger.Logger) *Service {
	return &Service{
		resolver:  NewResolver(deps.Directory, deps.Ledger, log),
		composer:  NewComposer(cfg.Composer),
		writer:    NewWriter(deps.Store, deps.Guard, cfg.Fanout, log),
		inbox:     NewInbox(deps.Store, cfg.Inbox),
		state:     NewStateMachine(deps.Store, cfg.Fanout.MaxBatchSize, log),
		observers: deps.Observers,
		log:       log.WithFields(map[string]interface{}{"component": "notification-service"}),
	}
}

// Broadcast resolves the rule, personalizes the template and fans it out. Resolver and composer
// failures happen before anything is written. Observers run after the commit and cannot fail it.
func (s *Service) Broadcast(ctx context.Context, session Session, req BroadcastRequest) (result *FanoutResult, err error) {
	ctx, span := observability.StartSpan(ctx, "notification.broadcast",
		attribute.String("rule.kind", string(req.Rule.Kind)),
		attribute.String("caller.id", session.CallerID),
	)
	defer func() {
		metrics.FanoutBatches.WithLabelValues(broadcastOutcome(result, err)).Inc()
		observability.EndSpan(span, err)
	}()

	if err := session.Validate(); err != nil {
		return nil, err
	}
	if !session.IsStaff() {
		return nil, fmt.Errorf("%w: role %s cannot send notifications", ErrAccessDenied, session.Role)
	}
	if err := s.composer.ValidateTemplate(req.Template); err != nil {
		return nil, err
	}

	recipients, err := s.resolver.Resolve(ctx, req.Rule)
	if err != nil {
		return nil, err
	}

	messages, err := s.composer.Compose(req.Template, recipients)
	if err != nil {
		return nil, err
	}

	result, err = s.writer.Send(ctx, session, SendRequest{
		BatchID:  req.BatchID,
		Messages: messages,
		Link:     req.Template.Link,
		ImageURL: req.Template.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("batch.id", result.BatchID),
		attribute.Int("batch.count", result.Count),
		attribute.Bool("batch.replayed", result.Replayed),
	)

	if !result.Replayed {
		s.notify(ctx, BatchSummary{
			BatchID:    result.BatchID,
			Title:      req.Template.Title,
			Rule:       req.Rule.Describe(),
			RuleKind:   req.Rule.Kind,
			Count:      result.Count,
			Created:    result.Created,
			RecordedBy: session.CallerID,
			RecordedAt: time.Now().UTC(),
			Link:       req.Template.Link,
			ImageURL:   req.Template.ImageURL,
		}, messages)
	}
	return result, nil
}

func (s *Service) notify(ctx context.Context, summary BatchSummary, messages []RenderedMessage) {
	for _, o := range s.observers {
		if err := o.OnFanout(ctx, summary, messages); err != nil {
			metrics.ObserverFailures.WithLabelValues(o.Name()).Inc()
			s.log.Error("fan-out observer failed", map[string]interface{}{
				"observer": o.Name(),
				"batchId":  summary.BatchID,
				"error":    err,
			})
		}
	}
}

func broadcastOutcome(result *FanoutResult, err error) string {
	var fe *FanoutError
	switch {
	case err == nil && result != nil && result.Replayed:
		return "replayed"
	case err == nil:
		return "committed"
	case errors.Is(err, ErrEmptySelection):
		return "empty"
	case errors.Is(err, ErrFanoutInProgress):
		return "in_progress"
	case errors.As(err, &fe) && fe.Partial():
		return "partial"
	case errors.As(err, &fe):
		return "failed"
	default:
		return "rejected"
	}
}

func (s *Service) List(ctx context.Context, session Session, req ListRequest) (*Page, error) {
	ctx, span := observability.StartSpan(ctx, "notification.list", attribute.String("scope", req.Scope))
	page, err := s.inbox.List(ctx, session, req)
	observability.EndSpan(span, err)
	return page, err
}

func (s *Service) UnreadCount(ctx context.Context, session Session, recipientID string) (int, error) {
	return s.inbox.UnreadCount(ctx, session, recipientID)
}

func (s *Service) MarkRead(ctx context.Context, session Session, id string) (*MarkReadResult, error) {
	ctx, span := observability.StartSpan(ctx, "notification.mark_read", attribute.String("notification.id", id))
	res, err := s.state.MarkRead(ctx, session, id)
	observability.EndSpan(span, err)
	return res, err
}

func (s *Service) DeleteOne(ctx context.Context, session Session, id string) (bool, error) {
	ctx, span := observability.StartSpan(ctx, "notification.delete_one", attribute.String("notification.id", id))
	ok, err := s.state.DeleteOne(ctx, session, id)
	observability.EndSpan(span, err)
	return ok, err
}

func (s *Service) DeleteAll(ctx context.Context, session Session, scope string) (*DeleteResult, error) {
	ctx, span := observability.StartSpan(ctx, "notification.delete_all", attribute.String("scope", scope))
	res, err := s.state.DeleteAll(ctx, session, scope)
	observability.EndSpan(span, err)
	return res, err
}
