// internal/workers/loan/loan-action/models.go
package loanaction

import (
	"time"

	"github.com/google/uuid"
)

// Actions a process may drive. "respond" carries the accept flag.
const (
	ActionRespond       = "respond"
	ActionRatify        = "ratify"
	ActionSignalReturn  = "signal-return"
	ActionConfirmReturn = "confirm-return"
)

type Input struct {
	LoanID  uuid.UUID `json:"loanId"`
	ActorID uuid.UUID `json:"actorId"`
	Action  string    `json:"action"`
	Accept  *bool     `json:"accept,omitempty"`
}

type Output struct {
	LoanID      string    `json:"loanId"`
	LoanStatus  string    `json:"loanStatus"`
	Operation   string    `json:"loanOperation"`
	ProcessedAt time.Time `json:"processedAt"`
}
