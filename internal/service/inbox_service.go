package service

import (
	"context"
	"fmt"
	"log/slog"

	"chirper/internal/domain"
)

// InboxService composes the conversation and user stores into the caller's
// conversation list. It is read-only.
type InboxService struct {
	conversations domain.ConversationRepository
	users         domain.UserRepository
	logger        *slog.Logger
}

func NewInboxService(
	conversations domain.ConversationRepository,
	users domain.UserRepository,
	logger *slog.Logger,
) *InboxService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxService{
		conversations: conversations,
		users:         users,
		logger:        logger.With("component", "inbox"),
	}
}

// UserInbox lists every conversation the user belongs to, annotated with
// their read watermark, an unread flag, and the resolved members for display.
// A conversation that fails to resolve is logged and omitted; one bad entry
// never fails the whole inbox.
func (s *InboxService) UserInbox(ctx context.Context, userID int64) ([]*domain.InboxEntry, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	entries := make([]*domain.InboxEntry, 0, len(convs))
	for _, conv := range convs {
		members, err := s.users.ListByIDs(ctx, conv.Members)
		if err != nil {
			s.logger.Warn("skipping conversation in inbox",
				"conversation_id", conv.ID,
				"user_id", userID,
				"error", err)
			continue
		}

		lastRead := conv.LastReadBy(userID)
		unread := false
		if conv.MostRecentEntryID != nil {
			unread = lastRead == nil || *lastRead != *conv.MostRecentEntryID
		}
		entries = append(entries, &domain.InboxEntry{
			Conversation:      conv,
			LastReadMessageID: lastRead,
			Unread:            unread,
			Members:           members,
		})
	}
	return entries, nil
}
