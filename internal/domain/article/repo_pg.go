package article

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

const articleCols = `id, title, category, content, cover_image, view_count, created_at, updated_at`

func scanArticle(row pgx.Row) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Category, &a.Content, &a.CoverImage,
		&a.ViewCount, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

// List filters by category and keyword (title or body substring).
func (r *repoPG) List(ctx context.Context, category, keyword string, limit, offset int) ([]*Article, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if category != "" {
		args = append(args, category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	if keyword != "" {
		args = append(args, "%"+keyword+"%")
		p := strconv.Itoa(len(args))
		where += ` AND (title ILIKE $` + p + ` OR content ILIKE $` + p + `)`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM article`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	q := `SELECT ` + articleCols + ` FROM article` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	return scanArticle(r.conn(ctx).QueryRow(ctx,
		`SELECT `+articleCols+` FROM article WHERE id = $1`, id))
}

func (r *repoPG) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE article SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}
