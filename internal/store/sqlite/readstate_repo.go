package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chirper/internal/domain"
)

type ReadStateRepo struct {
	db *sql.DB
}

func NewReadStateRepo(db *sql.DB) *ReadStateRepo {
	return &ReadStateRepo{db: db}
}

var _ domain.ReadStateRepository = (*ReadStateRepo)(nil)

// AdvanceLastRead is a monotonic compare-and-set: the WHERE clause only
// matches when the stored watermark is behind messageID, so an out-of-order
// acknowledgement can never regress read state.
func (r *ReadStateRepo) AdvanceLastRead(ctx context.Context, conversationID, userID, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_members
		SET last_read_message_id = ?
		WHERE conversation_id = ? AND user_id = ?
		AND (last_read_message_id IS NULL OR last_read_message_id < ?)
	`, messageID, conversationID, userID, messageID)
	if err != nil {
		return fmt.Errorf("advance last read: %w", err)
	}
	return nil
}

func (r *ReadStateRepo) SetLastSeen(ctx context.Context, userID, messageID int64) (*domain.SeenWatermark, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO seen_watermarks (user_id, last_seen_message_id, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			last_seen_message_id = excluded.last_seen_message_id,
			updated_at = CURRENT_TIMESTAMP
	`, userID, messageID)
	if err != nil {
		return nil, fmt.Errorf("set last seen: %w", err)
	}
	return r.GetLastSeen(ctx, userID)
}

func (r *ReadStateRepo) GetLastSeen(ctx context.Context, userID int64) (*domain.SeenWatermark, error) {
	w := &domain.SeenWatermark{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, last_seen_message_id, updated_at
		FROM seen_watermarks
		WHERE user_id = ?
	`, userID).Scan(&w.UserID, &w.LastSeenMessageID, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last seen: %w", err)
	}
	return w, nil
}

func (r *ReadStateRepo) RecordLeftAt(ctx context.Context, userID, conversationID, messageID int64) (*domain.LeftConversationAt, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO left_conversations (user_id, conversation_id, left_at_message_id, left_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, conversation_id) DO UPDATE SET
			left_at_message_id = excluded.left_at_message_id,
			left_at = CURRENT_TIMESTAMP
	`, userID, conversationID, messageID)
	if err != nil {
		return nil, fmt.Errorf("record left at: %w", err)
	}
	return r.GetLeftAt(ctx, userID, conversationID)
}

func (r *ReadStateRepo) GetLeftAt(ctx context.Context, userID, conversationID int64) (*domain.LeftConversationAt, error) {
	l := &domain.LeftConversationAt{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, conversation_id, left_at_message_id, left_at
		FROM left_conversations
		WHERE user_id = ? AND conversation_id = ?
	`, userID, conversationID).Scan(&l.UserID, &l.ConversationID, &l.LeftAtMessageID, &l.LeftAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get left at: %w", err)
	}
	return l, nil
}
