// internal/loan/store.go
package loan

import (
	"context"
	"database/sql"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const loansTable = "loans"

const loanColumnList = `id, item_id, owner_id, community_id, requester_id, status, start_date, end_date, created_at`

var loanColumns = []interface{}{
	"id", "item_id", "owner_id", "community_id", "requester_id", "status", "start_date", "end_date", "created_at",
}

const openLoanConflict = "item already has an open loan"

// Store persists loans. Transition is the only way a stored status changes.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	Insert(ctx context.Context, l *models.Loan) error
	HasOpenLoan(ctx context.Context, itemID uuid.UUID) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []models.LoanStatus, to models.LoanStatus) (*models.Loan, error)
	ListIncoming(ctx context.Context, q IncomingQuery) (*models.LoansPage, error)
	ListOutgoing(ctx context.Context, requesterID uuid.UUID, skip, limit int) (*models.LoansPage, error)
}

// IncomingQuery selects loans an actor answers for: personal loans they own and
// pooled loans of communities they administer, excluding their own requests.
type IncomingQuery struct {
	ActorID      uuid.UUID
	CommunityIDs []uuid.UUID
	Skip         int
	Limit        int
}

type PostgresStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, dialect: goqu.Dialect("postgres")}
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var l models.Loan
	err := s.db.GetContext(ctx, &l, `SELECT `+loanColumnList+` FROM loans WHERE id = $1`, id)
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("loan", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get loan", err)
	}
	return &l, nil
}

// Insert writes a new loan. The partial unique index on open loans turns a
// racing second request for the same item into CONFLICT.
func (s *PostgresStore) Insert(ctx context.Context, l *models.Loan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (`+loanColumnList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.ItemID, l.OwnerID, l.CommunityID, l.RequesterID, l.Status, l.StartDate, l.EndDate, l.CreatedAt,
	)
	if err != nil {
		return apperrors.FromPQ("insert loan", err, openLoanConflict)
	}
	return nil
}

func (s *PostgresStore) HasOpenLoan(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM loans WHERE item_id = $1 AND status = ANY($2))`,
		itemID, pq.Array(statusStrings(models.OpenLoanStatuses)))
	if err != nil {
		return false, apperrors.NewStorageError("check open loans", err)
	}
	return exists, nil
}

// Transition moves the loan to status to, provided it is still in one of from.
// When no row matches, the loan changed underneath the caller and the result is
// INVALID_STATE.
func (s *PostgresStore) Transition(ctx context.Context, id uuid.UUID, from []models.LoanStatus, to models.LoanStatus) (*models.Loan, error) {
	var l models.Loan
	err := s.db.GetContext(ctx, &l, `
		UPDATE loans SET status = $1
		WHERE id = $2 AND status = ANY($3)
		RETURNING `+loanColumnList,
		to, id, pq.Array(statusStrings(from)))
	if apperrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewInvalidStateError("loan status changed concurrently").
			WithMetadata("loanId", id.String()).
			WithMetadata("targetStatus", string(to))
	}
	if err != nil {
		return nil, apperrors.FromPQ("transition loan", err, openLoanConflict)
	}
	return &l, nil
}

func (s *PostgresStore) ListIncoming(ctx context.Context, q IncomingQuery) (*models.LoansPage, error) {
	authority := []goqu.Expression{goqu.C("owner_id").Eq(q.ActorID.String())}
	if len(q.CommunityIDs) > 0 {
		ids := make([]interface{}, len(q.CommunityIDs))
		for i, id := range q.CommunityIDs {
			ids[i] = id.String()
		}
		authority = append(authority, goqu.C("community_id").In(ids...))
	}
	where := goqu.And(
		goqu.Or(authority...),
		goqu.C("requester_id").Neq(q.ActorID.String()),
	)
	return s.page(ctx, "list incoming loans", where, q.Skip, q.Limit)
}

func (s *PostgresStore) ListOutgoing(ctx context.Context, requesterID uuid.UUID, skip, limit int) (*models.LoansPage, error) {
	return s.page(ctx, "list outgoing loans", goqu.C("requester_id").Eq(requesterID.String()), skip, limit)
}

func (s *PostgresStore) page(ctx context.Context, op string, where goqu.Expression, skip, limit int) (*models.LoansPage, error) {
	query, args, err := s.dialect.From(loansTable).
		Prepared(true).
		Select(loanColumns...).
		Where(where).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Offset(uint(skip)).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	loans := []models.Loan{}
	if err := s.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, apperrors.NewStorageError(op, err)
	}

	countQuery, countArgs, err := s.dialect.From(loansTable).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
		return nil, apperrors.NewStorageError(op, err)
	}

	return &models.LoansPage{Data: loans, Count: count}, nil
}

func statusStrings(statuses []models.LoanStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
