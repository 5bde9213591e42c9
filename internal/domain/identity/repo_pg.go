package identity

import (
	"context"

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

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, username, password_hash, nickname, avatar_url, role, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname,
		&u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO app_user (id, username, password_hash, nickname, avatar_url, role)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, u.PasswordHash, u.Nickname, u.AvatarURL, u.Role)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE username = $1`, username))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET nickname=$2, avatar_url=$3, password_hash=$4, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Nickname, u.AvatarURL, u.PasswordHash)
	return err
}
