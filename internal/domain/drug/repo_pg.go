package drug

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/health-assistant/health-assistant/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const drugCols = `id, name, common_names, tags, intro, usage, warnings, disclaimer, created_at, updated_at`

func scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.Name, &d.CommonNames, &d.Tags, &d.Intro,
		&d.Usage, &d.Warnings, &d.Disclaimer, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

// Search matches the keyword against the drug name and its common names.
func (r *repoPG) Search(ctx context.Context, keyword string, limit, offset int) ([]*Drug, int, error) {
	where := ``
	args := []interface{}{}
	if keyword != "" {
		where = ` WHERE name ILIKE $1 OR EXISTS (
			SELECT 1 FROM unnest(common_names) cn WHERE cn ILIKE $1)`
		args = append(args, "%"+keyword+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug_catalog`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitPos := len(args) + 1
	q := `SELECT ` + drugCols + ` FROM drug_catalog` + where +
		` ORDER BY name LIMIT $` + itoa(limitPos) + ` OFFSET $` + itoa(limitPos+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Drug, error) {
	return scanDrug(r.conn(ctx).QueryRow(ctx,
		`SELECT `+drugCols+` FROM drug_catalog WHERE id = $1`, id))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
