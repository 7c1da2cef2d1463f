package contrib

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiffre-app/chiffre/internal/shared"
)

// Repository persists contribution periods and runs the turnover aggregation
// queries. Period reads for user-facing operations go through the owning
// user id; writes are guarded by status so paid rows stay frozen.
type Repository interface {
	AccountIDs(ctx context.Context, enterpriseID int64) ([]int64, error)
	Aggregate(ctx context.Context, accountIDs []int64, from, to time.Time) (Totals, error)
	GetByKey(ctx context.Context, enterpriseID int64, key string) (Period, error)
	UpsertPending(ctx context.Context, p Period, now time.Time) (Period, bool, error)
	ListByEnterprise(ctx context.Context, enterpriseID int64) ([]Period, error)
	GetOwned(ctx context.Context, userID, periodID int64) (Period, error)
	MarkPaidPending(ctx context.Context, userID, periodID int64, now time.Time) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// AccountIDs returns the accounts currently attached to the enterprise.
func (r *repository) AccountIDs(ctx context.Context, enterpriseID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM accounts WHERE micro_enterprise_id=$1 ORDER BY id`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Aggregate sums the window [from, to] inclusive across the given accounts.
// The exclusion flag removes a transaction from turnover only; expenses and
// net always see every row.
func (r *repository) Aggregate(ctx context.Context, accountIDs []int64, from, to time.Time) (Totals, error) {
	if len(accountIDs) == 0 {
		return Totals{}, nil
	}
	var t Totals
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE amount >= 0 AND NOT exclude_from_turnover), 0),
COALESCE(SUM(-amount) FILTER (WHERE amount < 0), 0),
COALESCE(SUM(amount), 0)
FROM transactions
WHERE account_id = ANY($1) AND tx_date BETWEEN $2 AND $3`,
		accountIDs, from, to).Scan(&t.Turnover, &t.Expenses, &t.Net)
	return t, err
}

const periodColumns = `id, enterprise_id, period_key, period_start, period_end, due_date, turnover,
social_rate, social_due, ir_rate, ir_due, cfp_rate, cfp_due,
chamber_type, chamber_rate, chamber_due, total_due, status, paid_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.EnterpriseID, &p.Key, &p.Start, &p.End, &p.DueDate, &p.Turnover,
		&p.SocialRate, &p.SocialDue, &p.IRRate, &p.IRDue, &p.CFPRate, &p.CFPDue,
		&p.ChamberType, &p.ChamberRate, &p.ChamberDue, &p.TotalDue, &p.Status, &p.PaidAt,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) GetByKey(ctx context.Context, enterpriseID int64, key string) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM contribution_periods WHERE enterprise_id=$1 AND period_key=$2`,
		enterpriseID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// UpsertPending inserts the period or refreshes it in place while it is still
// pending. The unique constraint on (enterprise_id, period_key) absorbs
// concurrent creation; the conditional DO UPDATE leaves paid and skipped rows
// untouched, in which case written is false and the caller re-reads.
func (r *repository) UpsertPending(ctx context.Context, p Period, now time.Time) (Period, bool, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO contribution_periods
(enterprise_id, period_key, period_start, period_end, due_date, turnover,
 social_rate, social_due, ir_rate, ir_due, cfp_rate, cfp_due,
 chamber_type, chamber_rate, chamber_due, total_due, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,'PENDING',$17,$17)
ON CONFLICT (enterprise_id, period_key) DO UPDATE SET
turnover=EXCLUDED.turnover,
social_rate=EXCLUDED.social_rate, social_due=EXCLUDED.social_due,
ir_rate=EXCLUDED.ir_rate, ir_due=EXCLUDED.ir_due,
cfp_rate=EXCLUDED.cfp_rate, cfp_due=EXCLUDED.cfp_due,
chamber_type=EXCLUDED.chamber_type, chamber_rate=EXCLUDED.chamber_rate, chamber_due=EXCLUDED.chamber_due,
total_due=EXCLUDED.total_due, updated_at=EXCLUDED.updated_at
WHERE contribution_periods.status = 'PENDING'
RETURNING `+periodColumns,
		p.EnterpriseID, p.Key, p.Start, p.End, p.DueDate, p.Turnover,
		p.SocialRate, p.SocialDue, p.IRRate, p.IRDue, p.CFPRate, p.CFPDue,
		p.ChamberType, p.ChamberRate, p.ChamberDue, p.TotalDue, now)

	stored, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row exists but is no longer pending; leave it frozen.
			return Period{}, false, nil
		}
		if isUniqueViolation(err) {
			// Lost a creation race against a concurrent request; the row is
			// there now, re-read it.
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	return stored, true, nil
}

func (r *repository) ListByEnterprise(ctx context.Context, enterpriseID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+periodColumns+` FROM contribution_periods
WHERE enterprise_id=$1 ORDER BY period_start DESC`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetOwned resolves a period through its enterprise's owner. A missing row
// and another user's row are indistinguishable.
func (r *repository) GetOwned(ctx context.Context, userID, periodID int64) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, `SELECT cp.id, cp.enterprise_id, cp.period_key,
cp.period_start, cp.period_end, cp.due_date, cp.turnover,
cp.social_rate, cp.social_due, cp.ir_rate, cp.ir_due, cp.cfp_rate, cp.cfp_due,
cp.chamber_type, cp.chamber_rate, cp.chamber_due, cp.total_due, cp.status, cp.paid_at,
cp.created_at, cp.updated_at
FROM contribution_periods cp
JOIN micro_enterprises me ON me.id = cp.enterprise_id
WHERE cp.id=$1 AND me.user_id=$2`, periodID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// MarkPaidPending conditionally flips a pending period to paid, scoped to the
// owning user. Zero rows affected means the row is missing, foreign, or no
// longer pending; the caller disambiguates by re-reading.
func (r *repository) MarkPaidPending(ctx context.Context, userID, periodID int64, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE contribution_periods cp
SET status='PAID', paid_at=$3, updated_at=$3
FROM micro_enterprises me
WHERE cp.id=$1 AND me.id=cp.enterprise_id AND me.user_id=$2 AND cp.status='PENDING'`,
		periodID, userID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
