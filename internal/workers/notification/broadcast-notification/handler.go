// internal/workers/notification/broadcast-notification/handler.go
package broadcastnotification

import (
	"context"
	"errors"
	"fmt"

	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "broadcast-notification"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, session notification.Session, req notification.BroadcastRequest) (*notification.FanoutResult, error)
}

type Handler struct {
	config  *Config
	service Broadcaster
	job     *shared.Job
}

func NewHandler(config *Config, service Broadcaster, deps shared.Deps) *Handler {
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
		return h.ExecuteJob(ctx, job.Key, &input)
	})
}

// jobBatchID keys a send without a caller batch id on the job, which keeps its engine
// retries on the same batch.
func jobBatchID(input *Input, jobKey int64) string {
	if input.BatchID != "" || jobKey == 0 {
		return input.BatchID
	}
	return fmt.Sprintf("job-%d", jobKey)
}

func (h *Handler) execute(ctx context.Context, input *Input, batchID string) (*Output, error) {
	session, err := h.job.Sessions().Resolve(ctx, input.Caller, input.AccessToken)
	if err != nil {
		return nil, err
	}

	result, err := h.service.Broadcast(ctx, session, notification.BroadcastRequest{
		Rule:     input.Rule,
		Template: input.Template,
		BatchID:  batchID,
	})
	if errors.Is(err, notification.ErrEmptySelection) {
		// nobody matched; the process continues without a send
		warning := fmt.Sprintf("rule %s matched no recipients, nothing was sent", input.Rule.Describe())
		h.job.Logger().Warn("rule matched no recipients", map[string]interface{}{
			"rule":    input.Rule.Describe(),
			"batchId": batchID,
		})
		return &Output{BatchID: batchID, Status: StatusEmptySelection, Warning: warning}, nil
	}
	if errors.Is(err, notification.ErrFanoutWriteFailed) && batchID == "" {
		// an unkeyed retry would write every record again under a new batch
		stdErr := apperrors.FromError(err)
		stdErr.Retryable = false
		return nil, stdErr
	}
	if err != nil {
		return nil, err
	}

	status := StatusSent
	if result.Replayed {
		status = StatusReplayed
	}
	return &Output{
		BatchID:  result.BatchID,
		Count:    result.Count,
		Created:  result.Created,
		Replayed: result.Replayed,
		Status:   status,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input, input.BatchID)
}

// ExecuteJob runs the broadcast as the job with jobKey would.
func (h *Handler) ExecuteJob(ctx context.Context, jobKey int64, input *Input) (*Output, error) {
	return h.execute(ctx, input, jobBatchID(input, jobKey))
}
