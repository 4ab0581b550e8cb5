package passwordreset

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/hms/internal/platform/db"
	"github.com/medilink/hms/internal/platform/session"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed reset token repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) DeleteByUser(ctx context.Context, userType session.UserType, userID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE user_type = $1 AND user_id = $2`,
		userType, userID)
	return err
}

func (r *repoPG) Insert(ctx context.Context, t *Token) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO password_reset_tokens (id, user_type, user_id, email, token, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		t.ID, t.UserType, t.UserID, t.Email, t.Token, t.ExpiresAt).Scan(&t.CreatedAt)
}

func (r *repoPG) FindByToken(ctx context.Context, token string) (*Token, error) {
	var t Token
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_type, user_id, email, token, expires_at, created_at
		FROM password_reset_tokens WHERE token = $1`, token).
		Scan(&t.ID, &t.UserType, &t.UserID, &t.Email, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM password_reset_tokens WHERE token = $1`, token)
	return err
}
