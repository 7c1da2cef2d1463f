package enterprise

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiffre-app/chiffre/internal/shared"
)

// Repository persists enterprises, categories and account attachments.
// Every read and write is scoped by the owning user id, except the ListAll
// and UpdateSnapshot pair used by the internal ceiling sync.
type Repository interface {
	Insert(ctx context.Context, e MicroEnterprise) (MicroEnterprise, error)
	ListByUser(ctx context.Context, userID int64) ([]MicroEnterprise, error)
	GetOwned(ctx context.Context, userID, id int64) (MicroEnterprise, error)
	Update(ctx context.Context, e MicroEnterprise) error
	Delete(ctx context.Context, userID, id int64) error

	ListAll(ctx context.Context) ([]MicroEnterprise, error)
	UpdateSnapshot(ctx context.Context, enterpriseID int64, snap RateSnapshot) error

	SetAccountEnterprise(ctx context.Context, userID, accountID int64, enterpriseID *int64) error

	ListCategories(ctx context.Context, enterpriseID int64) ([]Category, error)
	InsertCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, enterpriseID, id int64) error

	YearTurnover(ctx context.Context, enterpriseID int64, asOf time.Time) (float64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const enterpriseColumns = `id, user_id, name, regime_label, activity_code, frequency, ir_liberatoire,
region, acre_rate, ceiling_override, vat_ceiling_override,
cached_social_rate, cached_ir_rate, cached_cfp_rate, cached_ceiling,
cached_vat_ceiling, cached_vat_ceiling_major, cached_vat_alert_ratio,
created_on, created_at, updated_at`

func scanEnterprise(row pgx.Row) (MicroEnterprise, error) {
	var e MicroEnterprise
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.RegimeLabel, &e.ActivityCode, &e.Frequency, &e.IRLiberatoire,
		&e.Region, &e.ACRERate, &e.CeilingOverride, &e.VATCeilingOverride,
		&e.Snapshot.SocialRate, &e.Snapshot.IRRate, &e.Snapshot.CFPRate, &e.Snapshot.Ceiling,
		&e.Snapshot.VATCeiling, &e.Snapshot.VATCeilingMajor, &e.Snapshot.VATAlertRatio,
		&e.CreatedOn, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) Insert(ctx context.Context, e MicroEnterprise) (MicroEnterprise, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO micro_enterprises
(user_id, name, regime_label, activity_code, frequency, ir_liberatoire, region,
 acre_rate, ceiling_override, vat_ceiling_override, created_on)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING `+enterpriseColumns,
		e.UserID, e.Name, e.RegimeLabel, e.ActivityCode, e.Frequency, e.IRLiberatoire, e.Region,
		e.ACRERate, e.CeilingOverride, e.VATCeilingOverride, e.CreatedOn)
	return scanEnterprise(row)
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]MicroEnterprise, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+enterpriseColumns+` FROM micro_enterprises WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MicroEnterprise
	for rows.Next() {
		e, err := scanEnterprise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetOwned resolves an enterprise by id for one user. Missing rows and rows
// owned by another user are indistinguishable to the caller.
func (r *repository) GetOwned(ctx context.Context, userID, id int64) (MicroEnterprise, error) {
	e, err := scanEnterprise(r.pool.QueryRow(ctx,
		`SELECT `+enterpriseColumns+` FROM micro_enterprises WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MicroEnterprise{}, shared.ErrNotFound
		}
		return MicroEnterprise{}, err
	}
	return e, nil
}

func (r *repository) Update(ctx context.Context, e MicroEnterprise) error {
	tag, err := r.pool.Exec(ctx, `UPDATE micro_enterprises SET
name=$3, regime_label=$4, activity_code=$5, frequency=$6, ir_liberatoire=$7, region=$8,
acre_rate=$9, ceiling_override=$10, vat_ceiling_override=$11, updated_at=now()
WHERE id=$1 AND user_id=$2`,
		e.ID, e.UserID, e.Name, e.RegimeLabel, e.ActivityCode, e.Frequency, e.IRLiberatoire, e.Region,
		e.ACRERate, e.CeilingOverride, e.VATCeilingOverride)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM micro_enterprises WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListAll(ctx context.Context) ([]MicroEnterprise, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+enterpriseColumns+` FROM micro_enterprises ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MicroEnterprise
	for rows.Next() {
		e, err := scanEnterprise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) UpdateSnapshot(ctx context.Context, enterpriseID int64, snap RateSnapshot) error {
	tag, err := r.pool.Exec(ctx, `UPDATE micro_enterprises SET
cached_social_rate=$2, cached_ir_rate=$3, cached_cfp_rate=$4, cached_ceiling=$5,
cached_vat_ceiling=$6, cached_vat_ceiling_major=$7, cached_vat_alert_ratio=$8, updated_at=now()
WHERE id=$1`,
		enterpriseID, snap.SocialRate, snap.IRRate, snap.CFPRate, snap.Ceiling,
		snap.VATCeiling, snap.VATCeilingMajor, snap.VATAlertRatio)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetAccountEnterprise attaches or detaches an account. A pure foreign-key
// update; transaction history is never copied or rewritten.
func (r *repository) SetAccountEnterprise(ctx context.Context, userID, accountID int64, enterpriseID *int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET micro_enterprise_id=$3 WHERE id=$1 AND user_id=$2`,
		accountID, userID, enterpriseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListCategories(ctx context.Context, enterpriseID int64) ([]Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, enterprise_id, name, kind, created_at
FROM micro_enterprise_categories WHERE enterprise_id=$1 ORDER BY name`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.EnterpriseID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) InsertCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO micro_enterprise_categories (enterprise_id, name, kind)
VALUES ($1,$2,$3) RETURNING id, created_at`,
		c.EnterpriseID, c.Name, c.Kind).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Category{}, err
	}
	return c, nil
}

func (r *repository) DeleteCategory(ctx context.Context, enterpriseID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM micro_enterprise_categories WHERE id=$1 AND enterprise_id=$2`, id, enterpriseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// YearTurnover sums qualifying revenue since January 1st of the asOf year
// across the accounts currently attached to the enterprise.
func (r *repository) YearTurnover(ctx context.Context, enterpriseID int64, asOf time.Time) (float64, error) {
	start := time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, asOf.Location())
	var turnover float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(t.amount), 0)
FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE a.micro_enterprise_id = $1
  AND t.amount >= 0
  AND NOT t.exclude_from_turnover
  AND t.tx_date BETWEEN $2 AND $3`,
		enterpriseID, start, asOf).Scan(&turnover)
	return turnover, err
}
