// internal/workers/notification/mark-notification-read/handler.go
package marknotificationread

import (
	"context"

	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "mark-notification-read"
)

type ReadMarker interface {
	MarkRead(ctx context.Context, session notification.Session, id string) (*notification.MarkReadResult, error)
}

type Handler struct {
	config  *Config
	service ReadMarker
	job     *shared.Job
}

func NewHandler(config *Config, service ReadMarker, deps shared.Deps) *Handler {
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

// execute completes a conflict instead of failing it: the record is gone, so there is
// nothing left to mark.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	session, err := h.job.Sessions().Resolve(ctx, input.Caller, input.AccessToken)
	if err != nil {
		return nil, err
	}

	result, err := h.service.MarkRead(ctx, session, input.NotificationID)
	if err != nil {
		return nil, err
	}

	out := &Output{NotificationID: input.NotificationID}
	switch {
	case result.Conflict:
		out.Status = StatusConflict
	case result.Changed:
		out.Status = StatusMarked
	default:
		out.Status = StatusAlreadyRead
	}
	if result.Record != nil {
		out.Read = result.Record.Read
		out.ReadAt = result.Record.ReadAt
	}
	return out, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
