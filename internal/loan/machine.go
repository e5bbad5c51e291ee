// Package loan implements the loan lifecycle: who may move a loan between
// statuses, and the conditional writes that make each move atomic.
package loan

import (
	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"
)

// Operation is one lifecycle step a caller can ask for.
type Operation string

const (
	OpRequest       Operation = "request"
	OpAccept        Operation = "accept"
	OpReject        Operation = "reject"
	OpRatify        Operation = "ratify"
	OpSignalReturn  Operation = "signal-return"
	OpConfirmReturn Operation = "confirm-return"
)

// Operations lists every operation that moves an existing loan.
var Operations = []Operation{OpAccept, OpReject, OpRatify, OpSignalReturn, OpConfirmReturn}

type edge struct {
	from models.LoanStatus
	op   Operation
}

var transitions = map[edge]models.LoanStatus{
	{models.LoanStatusPending, OpAccept}:              models.LoanStatusAccepted,
	{models.LoanStatusPending, OpReject}:              models.LoanStatusRejected,
	{models.LoanStatusAccepted, OpRatify}:             models.LoanStatusActive,
	{models.LoanStatusActive, OpSignalReturn}:         models.LoanStatusReturnPending,
	{models.LoanStatusActive, OpConfirmReturn}:        models.LoanStatusReturned,
	{models.LoanStatusReturnPending, OpConfirmReturn}: models.LoanStatusReturned,
}

var preconditions = map[Operation]string{
	OpAccept:        "loan is not in pending state",
	OpReject:        "loan is not in pending state",
	OpRatify:        "loan is not in accepted state",
	OpSignalReturn:  "loan is not active",
	OpConfirmReturn: "loan is not active or awaiting return",
}

// Decide returns the status op moves a loan in status from to, or an
// INVALID_STATE error when the pair is not an edge.
func Decide(from models.LoanStatus, op Operation) (models.LoanStatus, error) {
	if to, ok := transitions[edge{from, op}]; ok {
		return to, nil
	}
	msg, ok := preconditions[op]
	if !ok {
		msg = "unknown loan operation " + string(op)
	}
	return "", apperrors.NewInvalidStateError(msg).
		WithMetadata("status", string(from)).
		WithMetadata("operation", string(op))
}

// AllowedFrom lists the statuses op may start from, in lifecycle order.
func AllowedFrom(op Operation) []models.LoanStatus {
	var out []models.LoanStatus
	for _, s := range models.AllLoanStatuses {
		if _, ok := transitions[edge{s, op}]; ok {
			out = append(out, s)
		}
	}
	return out
}

// RespondOperation maps the accept flag of a respond call to its operation.
func RespondOperation(accept bool) Operation {
	if accept {
		return OpAccept
	}
	return OpReject
}
