// internal/workers/loan/loan-action/handler.go
package loanaction

import (
	"context"
	"fmt"
	"time"

	"lending-engine/internal/common/config"
	"lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/common/validation"
	"lending-engine/internal/loan"
	"lending-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// TaskType drives a loan transition from a BPMN service task, for example an
// automatic return confirmation after a timer.
const TaskType = "loan-action"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type LoanApplier interface {
	Apply(ctx context.Context, loanID uuid.UUID, actor models.Actor, op loan.Operation) (*models.Loan, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	loans     LoanApplier
	users     UserLookup
	errors    *errors.ErrorHandler
	jobWorker worker.JobWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Loans        LoanApplier
	Users        UserLookup
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Loans == nil || opts.Users == nil {
		return nil, fmt.Errorf("%s requires a loan service and a user directory", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config: workerConfig,
		logger: log,
		loans:  opts.Loans,
		users:  opts.Users,
		errors: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing loan action", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

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
	if err := validation.LoanActionJob.Validate(raw); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewValidationError("Failed to parse job variables", err.Error())
	}
	return &input, nil
}

// Execute resolves the acting user and applies the requested operation with the
// same authority checks an HTTP caller would get.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	op, err := operationFor(input)
	if err != nil {
		return nil, err
	}

	user, err := h.users.GetUser(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.NewPermissionDeniedError("actor is inactive")
	}

	l, err := h.loans.Apply(ctx, input.LoanID, models.ActorFromUser(*user), op)
	if err != nil {
		return nil, err
	}

	return &Output{
		LoanID:      l.ID.String(),
		LoanStatus:  string(l.Status),
		Operation:   string(op),
		ProcessedAt: time.Now().UTC(),
	}, nil
}

func operationFor(input *Input) (loan.Operation, error) {
	switch input.Action {
	case ActionRespond:
		if input.Accept == nil {
			return "", errors.NewValidationError("accept is required for respond", "")
		}
		return loan.RespondOperation(*input.Accept), nil
	case ActionRatify:
		return loan.OpRatify, nil
	case ActionSignalReturn:
		return loan.OpSignalReturn, nil
	case ActionConfirmReturn:
		return loan.OpConfirmReturn, nil
	default:
		return "", errors.NewValidationError("unknown action", input.Action)
	}
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
		return
	}
	h.logger.Info("Loan action completed", map[string]interface{}{
		"jobKey":     job.GetKey(),
		"loanId":     output.LoanID,
		"loanStatus": output.LoanStatus,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

// Register opens the job worker on client.
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

	h.logger.Info("Worker registered", map[string]interface{}{
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}
