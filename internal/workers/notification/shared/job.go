package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/common/logger"
	"community-notifications/internal/common/metrics"
	"community-notifications/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// InputValidator checks raw job variables against a task type's input schema.
type InputValidator interface {
	Validate(taskType, payload string) error
}

// Deps are shared by every notification worker.
type Deps struct {
	Validator     InputValidator
	Sessions      *SessionResolver
	Observability *observability.Observability
	Logger        logger.Logger
}

// Job wraps the per-job lifecycle: decode, run, then complete or fail.
type Job struct {
	TaskType string
	Timeout  time.Duration

	deps       Deps
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewJob(taskType string, timeout time.Duration, deps Deps) *Job {
	log := deps.Logger.WithFields(map[string]interface{}{"taskType": taskType})
	return &Job{
		TaskType:   taskType,
		Timeout:    timeout,
		deps:       deps,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

func (j *Job) Logger() logger.Logger { return j.logger }

func (j *Job) Sessions() *SessionResolver { return j.deps.Sessions }

// Decode validates the variables against the registered schema before unmarshalling.
func (j *Job) Decode(job entities.Job, input interface{}) error {
	if j.deps.Validator != nil {
		if err := j.deps.Validator.Validate(j.TaskType, job.Variables); err != nil {
			return err
		}
	}
	if err := json.Unmarshal([]byte(job.Variables), input); err != nil {
		return apperrors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return nil
}

// Run drives one job. run receives a context bounded by the worker timeout.
func (j *Job) Run(client worker.JobClient, job entities.Job, run func(ctx context.Context) (interface{}, error)) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(j.TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(j.TaskType).Dec()

	j.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()

	output, err := run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		bpmnErr := j.errHandler.HandleJobError(ctx, client, job, err)
		metrics.Observe(j.TaskType, elapsed.Seconds(), bpmnErr.Code)
		j.deps.Observability.RecordJob(ctx, j.TaskType, "failed", elapsed)
		return
	}

	j.complete(ctx, client, job, output)
	metrics.Observe(j.TaskType, elapsed.Seconds(), "")
	j.deps.Observability.RecordJob(ctx, j.TaskType, "completed", elapsed)
}

func (j *Job) complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		j.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		j.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	j.logger.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}
