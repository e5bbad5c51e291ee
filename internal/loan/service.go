// internal/loan/service.go
package loan

import (
	"context"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/metrics"
	"lending-engine/internal/common/observability"
	"lending-engine/internal/models"
	"lending-engine/internal/notification"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

type ItemLookup interface {
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	IsPooled(ctx context.Context, communityID, itemID uuid.UUID) (bool, error)
}

// MemberAuthority is the part of the membership authority loans depend on.
type MemberAuthority interface {
	AdminChecker
	IsMember(ctx context.Context, communityID, userID uuid.UUID) (bool, error)
	ResolveAdmins(ctx context.Context, communityID uuid.UUID) ([]uuid.UUID, error)
	AdminCommunities(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipients []uuid.UUID, msg notification.Message) ([]models.Notification, error)
}

// AuditLog keeps the lifecycle history of loans.
type AuditLog interface {
	Record(ctx context.Context, ev models.LoanEvent) error
	History(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error)
}

// Request is a borrow request. CommunityID is set when borrowing from a community
// pool.
type Request struct {
	ItemID      uuid.UUID
	CommunityID *uuid.UUID
	Window      models.LoanWindow
}

type Service struct {
	store    Store
	items    ItemLookup
	members  MemberAuthority
	notifier Notifier
	audit    AuditLog
	obs      *observability.Observability
	logger   logger.Logger
}

// NewService wires the loan service. audit and obs may be nil.
func NewService(store Store, items ItemLookup, members MemberAuthority, notifier Notifier, audit AuditLog, obs *observability.Observability, log logger.Logger) *Service {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Service{
		store:    store,
		items:    items,
		members:  members,
		notifier: notifier,
		audit:    audit,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "loan"}),
	}
}

// RequestLoan creates a PENDING loan for req.ItemID on behalf of actor and tells
// the responsible party about it.
func (s *Service) RequestLoan(ctx context.Context, actor models.Actor, req Request) (l *models.Loan, err error) {
	ctx, span := s.obs.StartSpan(ctx, "loan.request",
		attribute.String("item.id", req.ItemID.String()),
		attribute.String("actor.id", actor.ID.String()),
	)
	start := time.Now()
	defer func() {
		s.finish(ctx, OpRequest, start, err)
		observability.EndSpan(span, err)
	}()

	item, err := s.items.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !req.Window.Valid() {
		return nil, apperrors.NewValidationError("invalid loan window", "start_date must not be after end_date")
	}
	if item.IsOwner(actor.ID) {
		return nil, apperrors.NewConflictError("you already own this item")
	}
	open, err := s.store.HasOpenLoan(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, apperrors.NewConflictError(openLoanConflict)
	}

	authority, err := s.resolveAuthority(ctx, item, actor, req.CommunityID)
	if err != nil {
		return nil, err
	}

	l = models.NewLoan(item.ID, actor.ID, authority, req.Window.Start, req.Window.End)
	if err := s.store.Insert(ctx, l); err != nil {
		return nil, err
	}

	s.logger.Info("Loan requested", map[string]interface{}{
		"loanId":    l.ID.String(),
		"itemId":    item.ID.String(),
		"authority": authority.String(),
	})
	s.record(ctx, l, actor, OpRequest, "")
	s.fanout(ctx, l, OpRequest, s.counterparty(ctx, l, actor), newLoanRequestMessage(actor, item))
	return l, nil
}

func (s *Service) resolveAuthority(ctx context.Context, item *models.Item, actor models.Actor, communityID *uuid.UUID) (models.LoanAuthority, error) {
	if communityID != nil {
		pooled, err := s.items.IsPooled(ctx, *communityID, item.ID)
		if err != nil {
			return models.LoanAuthority{}, err
		}
		if !pooled {
			return models.LoanAuthority{}, apperrors.NewInvalidStateError("item is not shared with this community")
		}
		member, err := s.members.IsMember(ctx, *communityID, actor.ID)
		if err != nil {
			return models.LoanAuthority{}, err
		}
		if !member {
			return models.LoanAuthority{}, apperrors.NewPermissionDeniedError("you are not a member of this community")
		}
		return models.CommunityPool(*communityID), nil
	}

	owner, ok := item.PrimaryOwner()
	if !ok {
		return models.LoanAuthority{}, apperrors.NewInvalidStateError("item has no owner to lend it")
	}
	return models.Personal(owner), nil
}

// Respond accepts or rejects a PENDING loan. Only the responsible party may
// respond.
func (s *Service) Respond(ctx context.Context, loanID uuid.UUID, actor models.Actor, accept bool) (*models.Loan, error) {
	return s.transition(ctx, loanID, actor, RespondOperation(accept), func(c Capabilities) error {
		if !c.CanRespond() {
			return apperrors.NewPermissionDeniedError("only the owner or a community admin can respond to this loan")
		}
		return nil
	})
}

// Ratify records that the requester received the item.
func (s *Service) Ratify(ctx context.Context, loanID uuid.UUID, actor models.Actor) (*models.Loan, error) {
	return s.transition(ctx, loanID, actor, OpRatify, requireRequester("only the requester can ratify this loan"))
}

// SignalReturn records that the requester handed the item back.
func (s *Service) SignalReturn(ctx context.Context, loanID uuid.UUID, actor models.Actor) (*models.Loan, error) {
	return s.transition(ctx, loanID, actor, OpSignalReturn, requireRequester("only the requester can signal a return"))
}

// ConfirmReturn closes the loan once the responsible party has the item back.
func (s *Service) ConfirmReturn(ctx context.Context, loanID uuid.UUID, actor models.Actor) (*models.Loan, error) {
	return s.transition(ctx, loanID, actor, OpConfirmReturn, func(c Capabilities) error {
		if !c.CanRespond() {
			return apperrors.NewPermissionDeniedError("only the owner or a community admin can confirm the return")
		}
		return nil
	})
}

// Apply runs op on the loan. It is the entry point for workflow jobs that name the
// operation as data.
func (s *Service) Apply(ctx context.Context, loanID uuid.UUID, actor models.Actor, op Operation) (*models.Loan, error) {
	switch op {
	case OpAccept:
		return s.Respond(ctx, loanID, actor, true)
	case OpReject:
		return s.Respond(ctx, loanID, actor, false)
	case OpRatify:
		return s.Ratify(ctx, loanID, actor)
	case OpSignalReturn:
		return s.SignalReturn(ctx, loanID, actor)
	case OpConfirmReturn:
		return s.ConfirmReturn(ctx, loanID, actor)
	default:
		return nil, apperrors.NewValidationError("unknown loan operation", string(op))
	}
}

func requireRequester(msg string) func(Capabilities) error {
	return func(c Capabilities) error {
		if !c.CanActAsRequester() {
			return apperrors.NewPermissionDeniedError(msg)
		}
		return nil
	}
}

// transition loads the loan, checks the actor's capability and the edge, and
// commits the move with a conditional write.
func (s *Service) transition(ctx context.Context, loanID uuid.UUID, actor models.Actor, op Operation, gate func(Capabilities) error) (l *models.Loan, err error) {
	ctx, span := s.obs.StartSpan(ctx, "loan."+string(op),
		attribute.String("loan.id", loanID.String()),
		attribute.String("actor.id", actor.ID.String()),
	)
	start := time.Now()
	defer func() {
		s.finish(ctx, op, start, err)
		observability.EndSpan(span, err)
	}()

	current, err := s.store.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	caps, err := ResolveCapabilities(ctx, s.members, current, actor)
	if err != nil {
		return nil, err
	}
	if err := gate(caps); err != nil {
		return nil, err
	}
	to, err := Decide(current.Status, op)
	if err != nil {
		return nil, err
	}

	l, err = s.store.Transition(ctx, loanID, AllowedFrom(op), to)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loan transitioned", map[string]interface{}{
		"loanId":    l.ID.String(),
		"operation": string(op),
		"from":      string(current.Status),
		"to":        string(l.Status),
	})
	s.record(ctx, l, actor, op, current.Status)
	s.notifyTransition(ctx, l, actor, op)
	return l, nil
}

func (s *Service) notifyTransition(ctx context.Context, l *models.Loan, actor models.Actor, op Operation) {
	item, err := s.items.GetItem(ctx, l.ItemID)
	if err != nil {
		s.logFanoutError(l, op, err)
		return
	}

	var recipients []uuid.UUID
	switch op {
	case OpAccept, OpReject, OpConfirmReturn:
		recipients = notification.Except([]uuid.UUID{l.RequesterID}, actor.ID)
	default:
		recipients = s.counterparty(ctx, l, actor)
	}
	s.fanout(ctx, l, op, recipients, transitionMessage(op, actor, item))
}

// counterparty resolves who answers for l, minus the actor.
func (s *Service) counterparty(ctx context.Context, l *models.Loan, actor models.Actor) []uuid.UUID {
	authority, err := l.Authority()
	if err != nil {
		s.logFanoutError(l, "resolve", err)
		return nil
	}
	if owner, ok := authority.OwnerID(); ok {
		return notification.Except([]uuid.UUID{owner}, actor.ID)
	}
	community, _ := authority.CommunityID()
	admins, err := s.members.ResolveAdmins(ctx, community)
	if err != nil {
		s.logFanoutError(l, "resolve", err)
		return nil
	}
	return notification.Except(admins, actor.ID)
}

func (s *Service) fanout(ctx context.Context, l *models.Loan, op Operation, recipients []uuid.UUID, msg notification.Message) {
	if len(recipients) == 0 {
		return
	}
	if _, err := s.notifier.Notify(ctx, recipients, msg); err != nil {
		s.logFanoutError(l, op, err)
	}
}

func (s *Service) logFanoutError(l *models.Loan, op Operation, err error) {
	s.logger.Error("Loan notification fanout failed", map[string]interface{}{
		"loanId":    l.ID.String(),
		"operation": string(op),
		"error":     err.Error(),
	})
}

func (s *Service) record(ctx context.Context, l *models.Loan, actor models.Actor, op Operation, from models.LoanStatus) {
	if s.audit == nil {
		return
	}
	ev := models.LoanEvent{
		LoanID:     l.ID,
		ItemID:     l.ItemID,
		ActorID:    actor.ID,
		Operation:  string(op),
		FromStatus: from,
		ToStatus:   l.Status,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Warn("Failed to record loan event", map[string]interface{}{
			"loanId":    l.ID.String(),
			"operation": string(op),
			"error":     err.Error(),
		})
	}
}

func (s *Service) finish(ctx context.Context, op Operation, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = string(apperrors.CodeOf(err))
	}
	metrics.LoanTransitions.WithLabelValues(string(op), result).Inc()
	s.obs.RecordAction(ctx, "loan."+string(op), result, time.Since(start))
}

// Get returns a loan the actor is a party to.
func (s *Service) Get(ctx context.Context, loanID uuid.UUID, actor models.Actor) (*models.Loan, error) {
	l, err := s.store.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	caps, err := ResolveCapabilities(ctx, s.members, l, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanView() {
		return nil, apperrors.NewPermissionDeniedError("you are not a party to this loan")
	}
	return l, nil
}

// History returns the recorded lifecycle events of a loan the actor can see.
func (s *Service) History(ctx context.Context, loanID uuid.UUID, actor models.Actor) ([]models.LoanEvent, error) {
	if _, err := s.Get(ctx, loanID, actor); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []models.LoanEvent{}, nil
	}
	return s.audit.History(ctx, loanID)
}

// ListIncoming lists loans the actor answers for.
func (s *Service) ListIncoming(ctx context.Context, actor models.Actor, skip, limit int) (*models.LoansPage, error) {
	communities, err := s.members.AdminCommunities(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	skip, limit = clampPage(skip, limit)
	return s.store.ListIncoming(ctx, IncomingQuery{
		ActorID:      actor.ID,
		CommunityIDs: communities,
		Skip:         skip,
		Limit:        limit,
	})
}

// ListOutgoing lists loans the actor requested.
func (s *Service) ListOutgoing(ctx context.Context, actor models.Actor, skip, limit int) (*models.LoansPage, error) {
	skip, limit = clampPage(skip, limit)
	return s.store.ListOutgoing(ctx, actor.ID, skip, limit)
}

func clampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return skip, limit
}
