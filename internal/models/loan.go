// internal/models/loan.go
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusPending       LoanStatus = "PENDING"
	LoanStatusAccepted      LoanStatus = "ACCEPTED"
	LoanStatusRejected      LoanStatus = "REJECTED"
	LoanStatusActive        LoanStatus = "ACTIVE"
	LoanStatusReturnPending LoanStatus = "RETURN_PENDING"
	LoanStatusReturned      LoanStatus = "RETURNED"
)

// OpenLoanStatuses are the non-terminal statuses. An item holds at most one loan in
// any of them.
var OpenLoanStatuses = []LoanStatus{
	LoanStatusPending,
	LoanStatusAccepted,
	LoanStatusActive,
	LoanStatusReturnPending,
}

// AllLoanStatuses lists every status in lifecycle order.
var AllLoanStatuses = []LoanStatus{
	LoanStatusPending,
	LoanStatusAccepted,
	LoanStatusRejected,
	LoanStatusActive,
	LoanStatusReturnPending,
	LoanStatusReturned,
}

func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusRejected || s == LoanStatusReturned
}

func (s LoanStatus) Valid() bool {
	for _, known := range AllLoanStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// AuthorityKind tells who answers for a loan.
type AuthorityKind string

const (
	AuthorityPersonal      AuthorityKind = "PERSONAL"
	AuthorityCommunityPool AuthorityKind = "COMMUNITY_POOL"
)

// LoanAuthority is either Personal(owner) or CommunityPool(community). Community
// loans have no single accountable owner; their admins answer for them.
type LoanAuthority struct {
	kind AuthorityKind
	id   uuid.UUID
}

func Personal(ownerID uuid.UUID) LoanAuthority {
	return LoanAuthority{kind: AuthorityPersonal, id: ownerID}
}

func CommunityPool(communityID uuid.UUID) LoanAuthority {
	return LoanAuthority{kind: AuthorityCommunityPool, id: communityID}
}

func (a LoanAuthority) Kind() AuthorityKind { return a.kind }

// OwnerID returns the owner of a personal loan.
func (a LoanAuthority) OwnerID() (uuid.UUID, bool) {
	return a.id, a.kind == AuthorityPersonal
}

// CommunityID returns the community of a pooled loan.
func (a LoanAuthority) CommunityID() (uuid.UUID, bool) {
	return a.id, a.kind == AuthorityCommunityPool
}

func (a LoanAuthority) String() string {
	return fmt.Sprintf("%s(%s)", a.kind, a.id)
}

// Loan is one borrow transaction for exactly one item.
type Loan struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	ItemID      uuid.UUID     `db:"item_id" json:"item_id"`
	OwnerID     uuid.NullUUID `db:"owner_id" json:"owner_id"`
	CommunityID uuid.NullUUID `db:"community_id" json:"community_id"`
	RequesterID uuid.UUID     `db:"requester_id" json:"requester_id"`
	Status      LoanStatus    `db:"status" json:"status"`
	StartDate   time.Time     `db:"start_date" json:"start_date"`
	EndDate     time.Time     `db:"end_date" json:"end_date"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// NewLoan builds a PENDING loan with the authority columns filled from a.
func NewLoan(itemID, requesterID uuid.UUID, a LoanAuthority, start, end time.Time) *Loan {
	l := &Loan{
		ID:          uuid.New(),
		ItemID:      itemID,
		RequesterID: requesterID,
		Status:      LoanStatusPending,
		StartDate:   start,
		EndDate:     end,
		CreatedAt:   time.Now().UTC(),
	}
	if owner, ok := a.OwnerID(); ok {
		l.OwnerID = uuid.NullUUID{UUID: owner, Valid: true}
	}
	if community, ok := a.CommunityID(); ok {
		l.CommunityID = uuid.NullUUID{UUID: community, Valid: true}
	}
	return l
}

// Authority decodes the owner/community columns. Exactly one must be set.
func (l *Loan) Authority() (LoanAuthority, error) {
	switch {
	case l.OwnerID.Valid && !l.CommunityID.Valid:
		return Personal(l.OwnerID.UUID), nil
	case l.CommunityID.Valid && !l.OwnerID.Valid:
		return CommunityPool(l.CommunityID.UUID), nil
	default:
		return LoanAuthority{}, fmt.Errorf("loan %s must have exactly one of owner or community", l.ID)
	}
}

// LoanWindow is the requested borrow period.
type LoanWindow struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

func (w LoanWindow) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && !w.End.Before(w.Start)
}

// LoanEvent records one lifecycle step for the audit index.
type LoanEvent struct {
	LoanID     uuid.UUID  `json:"loan_id"`
	ItemID     uuid.UUID  `json:"item_id"`
	ActorID    uuid.UUID  `json:"actor_id"`
	Operation  string     `json:"operation"`
	FromStatus LoanStatus `json:"from_status,omitempty"`
	ToStatus   LoanStatus `json:"to_status"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// LoansPage is one page of loans plus the total count.
type LoansPage struct {
	Data  []Loan `json:"data"`
	Count int    `json:"count"`
}
