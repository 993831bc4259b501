package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"chirper/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (conversation_key, type, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, c.ConversationKey, string(c.Type))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id

	for _, uid := range c.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, accepted, joined_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		`, id, uid, c.HasAccepted(uid)); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *ConversationRepo) GetByKey(ctx context.Context, key string) (*domain.Conversation, error) {
	return r.getOne(ctx, `WHERE conversation_key = ?`, key)
}

func (r *ConversationRepo) getOne(ctx context.Context, where string, arg any) (*domain.Conversation, error) {
	query := `
		SELECT id, conversation_key, type, most_recent_entry_id, oldest_entry_id, created_at, updated_at
		FROM conversations ` + where
	c := &domain.Conversation{}
	var typ string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID,
		&c.ConversationKey,
		&typ,
		&c.MostRecentEntryID,
		&c.OldestEntryID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.Type = domain.ConversationType(typ)
	if err := r.loadMembers(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// loadMembers fills Members, AcceptedInvitation, and Participants from the
// membership rows, in join order so the invitation-acceptance sequence is
// preserved.
func (r *ConversationRepo) loadMembers(ctx context.Context, c *domain.Conversation) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, accepted, last_read_message_id
		FROM conversation_members
		WHERE conversation_id = ?
		ORDER BY joined_at ASC, rowid ASC
	`, c.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	c.Members = c.Members[:0]
	c.AcceptedInvitation = c.AcceptedInvitation[:0]
	c.Participants = c.Participants[:0]
	for rows.Next() {
		var uid int64
		var accepted bool
		var lastRead *int64
		if err := rows.Scan(&uid, &accepted, &lastRead); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		c.Members = append(c.Members, uid)
		if accepted {
			c.AcceptedInvitation = append(c.AcceptedInvitation, uid)
		}
		c.Participants = append(c.Participants, domain.Participant{
			UserID:            uid,
			LastReadMessageID: lastRead,
		})
	}
	return rows.Err()
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	query := `
		SELECT c.id, c.conversation_key, c.type, c.most_recent_entry_id, c.oldest_entry_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = ?
		ORDER BY c.updated_at DESC, c.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		var typ string
		if err := rows.Scan(
			&c.ID,
			&c.ConversationKey,
			&typ,
			&c.MostRecentEntryID,
			&c.OldestEntryID,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Type = domain.ConversationType(typ)
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range res {
		if err := r.loadMembers(ctx, c); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *ConversationRepo) FindByExactMembers(ctx context.Context, memberIDs []int64) (*domain.Conversation, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	ids := append([]int64(nil), memberIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Conversations containing every given member, no extra members, and the
	// same member count.
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT c.id
		FROM conversations c
		WHERE NOT EXISTS (
			SELECT 1 FROM conversation_members cm
			WHERE cm.conversation_id = c.id AND cm.user_id NOT IN (%s)
		)
		AND (
			SELECT COUNT(*) FROM conversation_members cm
			WHERE cm.conversation_id = c.id
		) = ?
		LIMIT 1
	`, placeholders)
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, len(ids))

	var convID int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&convID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by members: %w", err)
	}
	return r.GetByID(ctx, convID)
}

func (r *ConversationRepo) AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, accepted, joined_at)
			VALUES (?, ?, TRUE, CURRENT_TIMESTAMP)
		`, conversationID, uid); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) AppendAccepted(ctx context.Context, conversationID, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversation_members
		SET accepted = TRUE
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("append accepted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
