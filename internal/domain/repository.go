package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
}

// ConversationRepository defines persistence operations for conversations.
// Only this repository writes conversation identity and membership.
type ConversationRepository interface {
	// Create inserts the conversation with its members, accepted set, and one
	// participant row per member. Fills c.ID.
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	GetByKey(ctx context.Context, key string) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	// FindByExactMembers returns a conversation whose member set equals the
	// given set, or nil if none exists.
	FindByExactMembers(ctx context.Context, memberIDs []int64) (*Conversation, error)
	AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) error
	AppendAccepted(ctx context.Context, conversationID, userID int64) error
}

// MessageRepository defines persistence operations for the append-only
// message log.
type MessageRepository interface {
	// Create inserts the message and advances the parent conversation's
	// most-recent / oldest entry pointers as one atomic unit. Fills m.ID.
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	// ListPageAfter returns up to limit messages with id > afterID in
	// ascending id order, plus whether more eligible messages remain.
	ListPageAfter(ctx context.Context, conversationID, afterID int64, limit int) ([]*Message, bool, error)
}

// ReadStateRepository owns the per-user watermarks: read, seen, and left.
// It never touches membership or message content.
type ReadStateRepository interface {
	// AdvanceLastRead moves the participant's read watermark forward; a
	// messageID at or behind the stored watermark is a no-op.
	AdvanceLastRead(ctx context.Context, conversationID, userID, messageID int64) error
	SetLastSeen(ctx context.Context, userID, messageID int64) (*SeenWatermark, error)
	GetLastSeen(ctx context.Context, userID int64) (*SeenWatermark, error)
	RecordLeftAt(ctx context.Context, userID, conversationID, messageID int64) (*LeftConversationAt, error)
	GetLeftAt(ctx context.Context, userID, conversationID int64) (*LeftConversationAt, error)
}
