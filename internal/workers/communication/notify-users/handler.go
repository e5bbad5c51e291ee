// internal/workers/communication/notify-users/handler.go
package notifyusers

import (
	"context"
	"fmt"
	"time"

	"lending-engine/internal/common/config"
	"lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/common/validation"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// TaskType lets a process send in-app notifications, such as due-date reminders,
// through the same dispatcher the API uses.
const TaskType = "notify-users"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, msg notification.Message) ([]models.Notification, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	notifier  Notifier
	errors    *errors.ErrorHandler
	jobWorker worker.JobWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Notifier     Notifier
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("%s requires a notifier", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:   workerConfig,
		logger:   log,
		notifier: opts.Notifier,
		errors:   errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.GetVariables())
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	raw := []byte(variables)
	if err := validation.NotifyUsersJob.Validate(raw); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewValidationError("Failed to parse job variables", err.Error())
	}
	return &input, nil
}

// Execute fans the message out. When some rows were written the job completes
// with the failure count so a retry does not duplicate the delivered ones.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	msg := notification.Message{
		Title:    input.Title,
		Body:     input.Message,
		Severity: models.Severity(input.Severity),
		Link:     input.Link,
	}

	persisted, err := h.notifier.Notify(ctx, input.RecipientIDs, msg)
	if err != nil && len(persisted) == 0 {
		return nil, err
	}

	out := &Output{
		NotificationIDs: make([]string, 0, len(persisted)),
		Delivered:       len(persisted),
	}
	for _, n := range persisted {
		out.NotificationIDs = append(out.NotificationIDs, n.ID.String())
	}
	if err != nil {
		out.Failed = len(dedupe(input.RecipientIDs)) - len(persisted)
		h.logger.Warn("Some notifications were not persisted", map[string]interface{}{
			"delivered": out.Delivered,
			"failed":    out.Failed,
			"error":     err.Error(),
		})
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Register(client zbc.Client) {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return
	}
	h.jobWorker = client.NewJobWorker().
		JobType(TaskType).
		Handler(h.Handle).
		MaxJobsActive(h.config.MaxJobsActive).
		Timeout(h.config.Timeout).
		Name(TaskType + "-worker").
		Open()
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}
