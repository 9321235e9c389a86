package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ritasuite/internal/domain"
)

// ChatRepositoryPG implements domain.ChatRepository.
type ChatRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a chat history repository backed by PostgreSQL.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepositoryPG {
	return &ChatRepositoryPG{pool: pool}
}

// Append stores one conversation turn and returns it with id and timestamp.
func (r *ChatRepositoryPG) Append(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO chat_messages (user_id, role, content)
VALUES ($1, $2, $3)
RETURNING id, created_at;
`, msg.UserID, msg.Role, msg.Content)
	stored := *msg
	if err := row.Scan(&stored.ID, &stored.CreatedAt); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListByUser returns the user's conversation in chronological order.
func (r *ChatRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, role, content, created_at
FROM chat_messages
WHERE user_id = $1
ORDER BY id;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteAllForUser wipes the user's conversation.
func (r *ChatRepositoryPG) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1;`, userID)
	return err
}

var _ domain.ChatRepository = (*ChatRepositoryPG)(nil)
