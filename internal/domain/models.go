package domain

import "time"

// User represents an application user. Only identity fields are owned here;
// the messaging core references users by id.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ConversationType distinguishes two-party conversations from group DMs.
type ConversationType string

const (
	ConversationOneOnOne ConversationType = "ONE_ON_ONE"
	ConversationGroupDM  ConversationType = "GROUP_DM"
)

// Conversation is the unit of messaging. ONE_ON_ONE conversations carry a
// canonical key derived from the sorted member pair so at most one exists per
// unordered pair; GROUP_DM keys are store-generated and carry no membership
// semantics.
type Conversation struct {
	ID                 int64            `db:"id" json:"id"`
	ConversationKey    string           `db:"conversation_key" json:"conversationId"`
	Type               ConversationType `db:"type" json:"type"`
	Members            []int64          `json:"members"`
	AcceptedInvitation []int64          `json:"acceptedInvitation"`
	Participants       []Participant    `json:"participants"`
	MostRecentEntryID  *int64           `db:"most_recent_entry_id" json:"mostRecentEntryId"`
	OldestEntryID      *int64           `db:"oldest_entry_id" json:"oldestEntryId"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Participant tracks a member's read watermark inside a conversation.
type Participant struct {
	UserID            int64  `db:"user_id" json:"userId"`
	LastReadMessageID *int64 `db:"last_read_message_id" json:"lastReadMessageId"`
}

// IsMember reports whether userID belongs to the conversation.
func (c *Conversation) IsMember(userID int64) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// HasAccepted reports whether userID has confirmed participation.
func (c *Conversation) HasAccepted(userID int64) bool {
	for _, id := range c.AcceptedInvitation {
		if id == userID {
			return true
		}
	}
	return false
}

// LastReadBy returns the read watermark for userID, nil if nothing was read.
func (c *Conversation) LastReadBy(userID int64) *int64 {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p.LastReadMessageID
		}
	}
	return nil
}

// MessageData is the payload of a message as stored and pushed to clients.
type MessageData struct {
	Text           string `json:"text"`
	SenderID       int64  `json:"senderId"`
	ReceiverID     *int64 `json:"receiverId,omitempty"`
	ConversationID int64  `json:"conversationId"`
}

// Message is one immutable entry in a conversation's log. IDs are strictly
// increasing within a conversation, so they double as pagination cursors.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID int64       `db:"conversation_id" json:"conversationId"`
	Data           MessageData `json:"messageData"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// LeftConversationAt is the watermark recorded when a user exits a
// conversation view. It bounds later pagination; history is never deleted.
type LeftConversationAt struct {
	UserID          int64     `db:"user_id" json:"userId"`
	ConversationID  int64     `db:"conversation_id" json:"conversationId"`
	LeftAtMessageID int64     `db:"left_at_message_id" json:"leftAtMessageId"`
	LeftAt          time.Time `db:"left_at" json:"leftAt"`
}

// SeenWatermark is the user-scoped "seen up to" pointer backing the global
// new-messages indicator. It is independent of any single conversation.
type SeenWatermark struct {
	UserID            int64     `db:"user_id" json:"userId"`
	LastSeenMessageID int64     `db:"last_seen_message_id" json:"lastSeenMessageId"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// MessagePage is one cursor-bounded slice of a conversation's log.
type MessagePage struct {
	Messages    []*Message `json:"messages"`
	HasNextPage bool       `json:"hasNextPage"`
}

// InboxEntry annotates a conversation with the caller's read state and the
// co-members needed for display.
type InboxEntry struct {
	Conversation      *Conversation `json:"conversation"`
	LastReadMessageID *int64        `json:"lastReadMessageId"`
	Unread            bool          `json:"unread"`
	Members           []*User       `json:"members"`
}
