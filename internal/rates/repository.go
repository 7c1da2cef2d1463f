package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiffre-app/chiffre/internal/platform/db"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// Repository persists the active/draft/history rate tables.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListActive(ctx context.Context) ([]ActivityRate, error)
	GetActive(ctx context.Context, code string) (ActivityRate, error)
	ListDrafts(ctx context.Context) ([]Draft, error)
	InsertDraft(ctx context.Context, r ActivityRate) (Draft, error)
	UpdateDraft(ctx context.Context, id int64, r ActivityRate) (bool, error)
	DeleteDraft(ctx context.Context, id int64) (int64, error)
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)
	GetHistory(ctx context.Context, id int64) (HistoryEntry, error)
}

// TxRepository exposes the operations that must share one transaction.
type TxRepository interface {
	ListActive(ctx context.Context) ([]ActivityRate, error)
	ListDrafts(ctx context.Context) ([]Draft, error)
	InsertHistory(ctx context.Context, note *string, snapshot []ActivityRate, appliedAt time.Time) (int64, error)
	UpsertActive(ctx context.Context, r ActivityRate, now time.Time) error
	ReplaceActive(ctx context.Context, rs []ActivityRate, now time.Time) error
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	pool *pgxpool.Pool
}

type txRepository struct {
	tx pgx.Tx
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const activeColumns = `code, label, family, social_rate, income_tax_rate, cfp_rate,
chamber_type, chamber_rate, chamber_rate_alsace, chamber_rate_moselle,
ceiling, vat_ceiling, vat_ceiling_major, vat_alert_ratio, updated_at`

func scanActivityRate(row pgx.Row) (ActivityRate, error) {
	var ar ActivityRate
	err := row.Scan(&ar.Code, &ar.Label, &ar.Family, &ar.SocialRate, &ar.IncomeTaxRate, &ar.CFPRate,
		&ar.ChamberType, &ar.ChamberRate, &ar.ChamberRateAlsace, &ar.ChamberRateMoselle,
		&ar.Ceiling, &ar.VATCeiling, &ar.VATCeilingMajor, &ar.VATAlertRatio, &ar.UpdatedAt)
	return ar, err
}

func listActive(ctx context.Context, q querier) ([]ActivityRate, error) {
	rows, err := q.Query(ctx, `SELECT `+activeColumns+` FROM activity_rates ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityRate
	for rows.Next() {
		ar, err := scanActivityRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ar)
	}
	return out, rows.Err()
}

func listDrafts(ctx context.Context, q querier) ([]Draft, error) {
	rows, err := q.Query(ctx, `SELECT id, code, label, family, social_rate, income_tax_rate, cfp_rate,
chamber_type, chamber_rate, chamber_rate_alsace, chamber_rate_moselle,
ceiling, vat_ceiling, vat_ceiling_major, vat_alert_ratio, created_at, updated_at
FROM activity_rate_drafts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var d Draft
		err := rows.Scan(&d.ID, &d.Code, &d.Label, &d.Family, &d.SocialRate, &d.IncomeTaxRate, &d.CFPRate,
			&d.ChamberType, &d.ChamberRate, &d.ChamberRateAlsace, &d.ChamberRateMoselle,
			&d.Ceiling, &d.VATCeiling, &d.VATCeilingMajor, &d.VATAlertRatio, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) ListActive(ctx context.Context) ([]ActivityRate, error) {
	return listActive(ctx, r.pool)
}

func (r *repository) GetActive(ctx context.Context, code string) (ActivityRate, error) {
	ar, err := scanActivityRate(r.pool.QueryRow(ctx,
		`SELECT `+activeColumns+` FROM activity_rates WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActivityRate{}, shared.ErrNotFound
		}
		return ActivityRate{}, err
	}
	return ar, nil
}

func (r *repository) ListDrafts(ctx context.Context) ([]Draft, error) {
	return listDrafts(ctx, r.pool)
}

func (r *repository) InsertDraft(ctx context.Context, ar ActivityRate) (Draft, error) {
	var d Draft
	d.ActivityRate = ar
	err := r.pool.QueryRow(ctx, `INSERT INTO activity_rate_drafts
(code, label, family, social_rate, income_tax_rate, cfp_rate,
 chamber_type, chamber_rate, chamber_rate_alsace, chamber_rate_moselle,
 ceiling, vat_ceiling, vat_ceiling_major, vat_alert_ratio)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id, created_at, updated_at`,
		ar.Code, ar.Label, ar.Family, ar.SocialRate, ar.IncomeTaxRate, ar.CFPRate,
		ar.ChamberType, ar.ChamberRate, ar.ChamberRateAlsace, ar.ChamberRateMoselle,
		ar.Ceiling, ar.VATCeiling, ar.VATCeilingMajor, ar.VATAlertRatio).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Draft{}, fmt.Errorf("rates: draft for code %s: %w", ar.Code, shared.ErrDuplicate)
		}
		return Draft{}, err
	}
	return d, nil
}

func (r *repository) UpdateDraft(ctx context.Context, id int64, ar ActivityRate) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE activity_rate_drafts SET
code=$2, label=$3, family=$4, social_rate=$5, income_tax_rate=$6, cfp_rate=$7,
chamber_type=$8, chamber_rate=$9, chamber_rate_alsace=$10, chamber_rate_moselle=$11,
ceiling=$12, vat_ceiling=$13, vat_ceiling_major=$14, vat_alert_ratio=$15, updated_at=now()
WHERE id=$1`,
		id, ar.Code, ar.Label, ar.Family, ar.SocialRate, ar.IncomeTaxRate, ar.CFPRate,
		ar.ChamberType, ar.ChamberRate, ar.ChamberRateAlsace, ar.ChamberRateMoselle,
		ar.Ceiling, ar.VATCeiling, ar.VATCeilingMajor, ar.VATAlertRatio)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("rates: draft for code %s: %w", ar.Code, shared.ErrDuplicate)
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteDraft removes a draft row. Zero rows affected is not an error.
func (r *repository) DeleteDraft(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_rate_drafts WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, note, applied_at FROM activity_rate_history ORDER BY applied_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.Note, &h.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repository) GetHistory(ctx context.Context, id int64) (HistoryEntry, error) {
	var h HistoryEntry
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, note, applied_at, snapshot FROM activity_rate_history WHERE id=$1`, id).
		Scan(&h.ID, &h.Note, &h.AppliedAt, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return HistoryEntry{}, shared.ErrNotFound
		}
		return HistoryEntry{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &h.Snapshot); err != nil {
			return HistoryEntry{}, fmt.Errorf("rates: decode history snapshot: %w", err)
		}
	}
	return h, nil
}

func (t *txRepository) ListActive(ctx context.Context) ([]ActivityRate, error) {
	return listActive(ctx, t.tx)
}

func (t *txRepository) ListDrafts(ctx context.Context) ([]Draft, error) {
	return listDrafts(ctx, t.tx)
}

func (t *txRepository) InsertHistory(ctx context.Context, note *string, snapshot []ActivityRate, appliedAt time.Time) (int64, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("rates: encode history snapshot: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx,
		`INSERT INTO activity_rate_history (note, snapshot, applied_at) VALUES ($1, $2, $3) RETURNING id`,
		note, payload, appliedAt).Scan(&id)
	return id, err
}

func (t *txRepository) UpsertActive(ctx context.Context, ar ActivityRate, now time.Time) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO activity_rates
(code, label, family, social_rate, income_tax_rate, cfp_rate,
 chamber_type, chamber_rate, chamber_rate_alsace, chamber_rate_moselle,
 ceiling, vat_ceiling, vat_ceiling_major, vat_alert_ratio, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (code) DO UPDATE SET
label=EXCLUDED.label, family=EXCLUDED.family, social_rate=EXCLUDED.social_rate,
income_tax_rate=EXCLUDED.income_tax_rate, cfp_rate=EXCLUDED.cfp_rate,
chamber_type=EXCLUDED.chamber_type, chamber_rate=EXCLUDED.chamber_rate,
chamber_rate_alsace=EXCLUDED.chamber_rate_alsace, chamber_rate_moselle=EXCLUDED.chamber_rate_moselle,
ceiling=EXCLUDED.ceiling, vat_ceiling=EXCLUDED.vat_ceiling,
vat_ceiling_major=EXCLUDED.vat_ceiling_major, vat_alert_ratio=EXCLUDED.vat_alert_ratio,
updated_at=EXCLUDED.updated_at`,
		ar.Code, ar.Label, ar.Family, ar.SocialRate, ar.IncomeTaxRate, ar.CFPRate,
		ar.ChamberType, ar.ChamberRate, ar.ChamberRateAlsace, ar.ChamberRateMoselle,
		ar.Ceiling, ar.VATCeiling, ar.VATCeilingMajor, ar.VATAlertRatio, now)
	return err
}

func (t *txRepository) ReplaceActive(ctx context.Context, rs []ActivityRate, now time.Time) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM activity_rates`); err != nil {
		return err
	}
	for _, ar := range rs {
		if err := t.UpsertActive(ctx, ar, now); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
