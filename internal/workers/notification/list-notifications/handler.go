// internal/workers/notification/list-notifications/handler.go
package listnotifications

import (
	"context"

	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "list-notifications"
)

type InboxReader interface {
	List(ctx context.Context, session notification.Session, req notification.ListRequest) (*notification.Page, error)
	UnreadCount(ctx context.Context, session notification.Session, recipientID string) (int, error)
}

type Handler struct {
	config  *Config
	service InboxReader
	job     *shared.Job
}

func NewHandler(config *Config, service InboxReader, deps shared.Deps) *Handler {
	return &Handler{
		config:  config,
		service: service,
		job:     shared.NewJob(TaskType, config.Timeout, deps),
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

	page, err := h.service.List(ctx, session, notification.ListRequest{
		Scope:     input.Scope,
		Cursor:    input.Cursor,
		Direction: notification.Direction(input.Direction),
		PageSize:  input.PageSize,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		Records:    page.Records,
		NextCursor: page.NextCursor,
		PrevCursor: page.PrevCursor,
		IsLastPage: page.IsLastPage,
	}

	if input.Scope != notification.ScopeAll {
		unread, err := h.service.UnreadCount(ctx, session, input.Scope)
		if err != nil {
			return nil, err
		}
		out.UnreadCount = &unread
	}
	return out, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
