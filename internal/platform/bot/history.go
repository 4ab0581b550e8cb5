package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/hms/internal/platform/db"
	"github.com/medilink/hms/internal/platform/session"
)

// Message is one stored chat exchange: the user's message and the reply it
// produced.
type Message struct {
	ID        uuid.UUID        `json:"id"`
	UserType  session.UserType `json:"user_type"`
	UserID    uuid.UUID        `json:"user_id"`
	Message   string           `json:"message"`
	Response  string           `json:"response"`
	CreatedAt time.Time        `json:"created_at"`
}

// HistoryRepository persists chat exchanges for signed-in users.
type HistoryRepository interface {
	Save(ctx context.Context, m *Message) error
	ListByUser(ctx context.Context, userType session.UserType, userID uuid.UUID, limit int) ([]*Message, error)
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type historyRepoPG struct{ pool *pgxpool.Pool }

// NewHistoryRepoPG creates the Postgres-backed chat history repository.
func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository { return &historyRepoPG{pool: pool} }

func (r *historyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *historyRepoPG) Save(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_messages (id, user_type, user_id, message, response)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		m.ID, m.UserType, m.UserID, m.Message, m.Response).Scan(&m.CreatedAt)
}

func (r *historyRepoPG) ListByUser(ctx context.Context, userType session.UserType, userID uuid.UUID, limit int) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, user_type, user_id, message, response, created_at
		FROM chat_messages
		WHERE user_type = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, userType, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserType, &m.UserID, &m.Message, &m.Response, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	// Newest rows come back first; flip to chronological order for display.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, rows.Err()
}
