// internal/workers/loan/loan-action/handler_test.go
package loanaction

import (
	"context"
	"testing"
	"time"

	"lending-engine/internal/common/config"
	"lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/loan"
	"lending-engine/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLoans struct {
	mock.Mock
}

func (m *MockLoans) Apply(ctx context.Context, loanID uuid.UUID, actor models.Actor, op loan.Operation) (*models.Loan, error) {
	args := m.Called(ctx, loanID, actor, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.NewNotFoundError("user", id)
}

func newTestHandler(t *testing.T, loans LoanApplier, users UserLookup) *Handler {
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Loans:        loans,
		Users:        users,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr bool
	}{
		{
			name: "defaults",
			opts: HandlerOptions{Loans: &MockLoans{}, Users: fakeUsers{}},
		},
		{
			name:    "zero timeout",
			opts:    HandlerOptions{CustomConfig: &Config{MaxJobsActive: 1}, Loans: &MockLoans{}, Users: fakeUsers{}},
			wantErr: true,
		},
		{
			name:    "missing loan service",
			opts:    HandlerOptions{Users: fakeUsers{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 12, Timeout: 5000},
	}}

	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 12, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	cfg = createConfigFromAppConfig(&config.Config{}, nil)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockLoans{}, fakeUsers{})
	loanID := uuid.New()
	actorID := uuid.New()

	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{
			name:      "respond with accept",
			variables: `{"loanId":"` + loanID.String() + `","actorId":"` + actorID.String() + `","action":"respond","accept":true}`,
		},
		{
			name:      "ratify with extra process variables",
			variables: `{"loanId":"` + loanID.String() + `","actorId":"` + actorID.String() + `","action":"ratify","dueAt":"2026-01-01"}`,
		},
		{
			name:      "unknown action",
			variables: `{"loanId":"` + loanID.String() + `","actorId":"` + actorID.String() + `","action":"cancel"}`,
			wantErr:   true,
		},
		{
			name:      "missing actor",
			variables: `{"loanId":"` + loanID.String() + `","action":"ratify"}`,
			wantErr:   true,
		},
		{
			name:      "malformed id",
			variables: `{"loanId":"abc","actorId":"` + actorID.String() + `","action":"ratify"}`,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, loanID, input.LoanID)
			assert.Equal(t, actorID, input.ActorID)
		})
	}
}

func TestOperationFor(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		input   Input
		want    loan.Operation
		wantErr bool
	}{
		{Input{Action: ActionRespond, Accept: &yes}, loan.OpAccept, false},
		{Input{Action: ActionRespond, Accept: &no}, loan.OpReject, false},
		{Input{Action: ActionRespond}, "", true},
		{Input{Action: ActionRatify}, loan.OpRatify, false},
		{Input{Action: ActionSignalReturn}, loan.OpSignalReturn, false},
		{Input{Action: ActionConfirmReturn}, loan.OpConfirmReturn, false},
		{Input{Action: "extend"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input.Action, func(t *testing.T) {
			op, err := operationFor(&tt.input)
			if tt.wantErr {
				assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestHandler_Execute(t *testing.T) {
	owner := &models.User{ID: uuid.New(), Email: "owner@example.com", IsActive: true}
	retired := &models.User{ID: uuid.New(), Email: "retired@example.com"}
	users := fakeUsers{owner.ID: owner, retired.ID: retired}
	loanID := uuid.New()

	t.Run("applies operation as resolved actor", func(t *testing.T) {
		loans := &MockLoans{}
		loans.On("Apply", mock.Anything, loanID, models.ActorFromUser(*owner), loan.OpConfirmReturn).
			Return(&models.Loan{ID: loanID, Status: models.LoanStatusReturned}, nil)

		h := newTestHandler(t, loans, users)
		out, err := h.Execute(context.Background(), &Input{LoanID: loanID, ActorID: owner.ID, Action: ActionConfirmReturn})

		require.NoError(t, err)
		assert.Equal(t, loanID.String(), out.LoanID)
		assert.Equal(t, "RETURNED", out.LoanStatus)
		assert.Equal(t, "confirm-return", out.Operation)
		loans.AssertExpectations(t)
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		loans := &MockLoans{}
		loans.On("Apply", mock.Anything, loanID, mock.Anything, loan.OpRatify).
			Return(nil, errors.NewInvalidStateError("loan is not in accepted state"))

		h := newTestHandler(t, loans, users)
		_, err := h.Execute(context.Background(), &Input{LoanID: loanID, ActorID: owner.ID, Action: ActionRatify})

		assert.Equal(t, errors.ErrCodeInvalidState, errors.CodeOf(err))
		assert.Equal(t, "LOAN_INVALID_STATE", errors.ConvertToBPMNError(errors.Normalize(err)).Code)
	})

	t.Run("inactive actor", func(t *testing.T) {
		loans := &MockLoans{}
		h := newTestHandler(t, loans, users)
		_, err := h.Execute(context.Background(), &Input{LoanID: loanID, ActorID: retired.ID, Action: ActionRatify})

		assert.Equal(t, errors.ErrCodePermissionDenied, errors.CodeOf(err))
		loans.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown actor", func(t *testing.T) {
		h := newTestHandler(t, &MockLoans{}, users)
		_, err := h.Execute(context.Background(), &Input{LoanID: loanID, ActorID: uuid.New(), Action: ActionRatify})

		assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
	})
}
