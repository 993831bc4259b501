package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chirper/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Create inserts the message and advances the parent conversation's entry
// pointers in the same transaction. The pointer update is a single keyed
// UPDATE, never a read-modify-write of the whole row, so concurrent senders
// on one conversation cannot lose each other's update.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, text, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, m.ConversationID, m.Data.SenderID, m.Data.ReceiverID, m.Data.Text)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	upd, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET most_recent_entry_id = ?,
		    oldest_entry_id = COALESCE(oldest_entry_id, ?),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id, id, m.ConversationID)
	if err != nil {
		return fmt.Errorf("advance entry pointers: %w", err)
	}
	n, err := upd.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, text, created_at
		FROM messages
		WHERE id = ?
	`
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.ConversationID,
		&m.Data.SenderID,
		&m.Data.ReceiverID,
		&m.Data.Text,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m.Data.ConversationID = m.ConversationID
	return m, nil
}

// ListPageAfter fetches limit+1 rows to learn whether a further page exists
// without a second COUNT query.
func (r *MessageRepo) ListPageAfter(ctx context.Context, conversationID, afterID int64, limit int) ([]*domain.Message, bool, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, text, created_at
		FROM messages
		WHERE conversation_id = ? AND id > ?
		ORDER BY id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, afterID, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Data.SenderID,
			&m.Data.ReceiverID,
			&m.Data.Text,
			&m.CreatedAt,
		); err != nil {
			return nil, false, fmt.Errorf("scan message: %w", err)
		}
		m.Data.ConversationID = m.ConversationID
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasNext := false
	if len(res) > limit {
		hasNext = true
		res = res[:limit]
	}
	return res, hasNext, nil
}
