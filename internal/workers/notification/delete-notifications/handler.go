// internal/workers/notification/delete-notifications/handler.go
package deletenotifications

import (
	"context"

	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "delete-notifications"
)

type Deleter interface {
	DeleteOne(ctx context.Context, session notification.Session, id string) (bool, error)
	DeleteAll(ctx context.Context, session notification.Session, scope string) (*notification.DeleteResult, error)
}

type Handler struct {
	config  *Config
	service Deleter
	job     *shared.Job
}

func NewHandler(config *Config, service Deleter, deps shared.Deps) *Handler {
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
	if (input.NotificationID == "") == (input.Scope == "") {
		return nil, apperrors.NewInputValidationError("exactly one of notificationId or scope is required")
	}

	session, err := h.job.Sessions().Resolve(ctx, input.Caller, input.AccessToken)
	if err != nil {
		return nil, err
	}

	if input.NotificationID != "" {
		deleted, err := h.service.DeleteOne(ctx, session, input.NotificationID)
		if err != nil {
			return nil, err
		}
		out := &Output{Total: 1}
		if deleted {
			out.Deleted = 1
		}
		return out, nil
	}

	result, err := h.service.DeleteAll(ctx, session, input.Scope)
	if err != nil {
		if result != nil {
			// the retry re-enumerates the scope, so the already-deleted chunks are not repeated
			h.job.Logger().Warn("bulk delete stopped early", map[string]interface{}{
				"scope":   input.Scope,
				"deleted": result.Deleted,
				"total":   result.Total,
			})
		}
		return nil, err
	}
	return &Output{Deleted: result.Deleted, Total: result.Total, Scope: input.Scope}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
