// internal/workers/notification/search-notification-batches/handler.go
package searchnotificationbatches

import (
	"context"
	"fmt"
	"time"

	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/notification"
	"community-notifications/internal/notification/audit"
	"community-notifications/internal/workers/notification/shared"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-notification-batches"
)

type Searcher interface {
	Search(ctx context.Context, q audit.SearchQuery) (*audit.SearchResult, error)
}

type Handler struct {
	config   *Config
	searcher Searcher
	job      *shared.Job
}

// NewHandler accepts a nil searcher when Elasticsearch is disabled; jobs then fail with
// SEARCH_UNAVAILABLE.
func NewHandler(config *Config, searcher Searcher, deps shared.Deps) *Handler {
	return &Handler{
		config:   config,
		searcher: searcher,
		job:      shared.NewJob(TaskType, config.Timeout, deps),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.job.Run(client, job, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := h.job.Decode(job, &input); err != nil {
			return nil, err
		}
		return h.execute(ctx, &input)
	})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	session, err := h.job.Sessions().Resolve(ctx, input.Caller, input.AccessToken)
	if err != nil {
		return nil, err
	}
	if !session.IsStaff() {
		return nil, fmt.Errorf("%w: role %s cannot search sent batches", notification.ErrAccessDenied, session.Role)
	}
	if h.searcher == nil {
		return nil, audit.ErrSearchUnavailable
	}

	query := audit.SearchQuery{
		Text:       input.Text,
		RecordedBy: input.RecordedBy,
		RuleKind:   input.RuleKind,
		Size:       input.Size,
	}
	if query.From, err = parseTime("from", input.From); err != nil {
		return nil, err
	}
	if query.To, err = parseTime("to", input.To); err != nil {
		return nil, err
	}

	result, err := h.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Output{Batches: result.Batches, TotalHits: result.TotalHits, Took: result.Took}, nil
}

func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.NewInputValidationError(fmt.Sprintf("%s: %v", field, err))
	}
	return &t, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
