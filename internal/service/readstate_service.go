package service

import (
	"context"
	"fmt"

	"chirper/internal/domain"
)

// ReadStateService tracks per-participant read, seen, and left watermarks.
// It writes only watermark fields, never membership or message content.
type ReadStateService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	readstates    domain.ReadStateRepository
}

func NewReadStateService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	readstates domain.ReadStateRepository,
) *ReadStateService {
	return &ReadStateService{
		conversations: conversations,
		messages:      messages,
		readstates:    readstates,
	}
}

// ReadConversation acknowledges that userID has read up to messageID. The
// stored watermark only moves forward: an acknowledgement arriving out of
// order behind the current watermark leaves it untouched.
func (s *ReadStateService) ReadConversation(ctx context.Context, conversationID, userID, messageID int64) (*domain.Conversation, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil || msg.ConversationID != conversationID {
		return nil, domain.ErrNotFound
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.IsMember(userID) {
		return nil, domain.ErrUnauthorized
	}

	if err := s.readstates.AdvanceLastRead(ctx, conversationID, userID, messageID); err != nil {
		return nil, err
	}
	return s.conversations.GetByID(ctx, conversationID)
}

// UpdateLastSeenMessage moves the caller's user-scoped seen pointer. It backs
// the global new-messages indicator and is independent of any conversation's
// read state.
func (s *ReadStateService) UpdateLastSeenMessage(ctx context.Context, userID, messageID int64) (*domain.SeenWatermark, error) {
	return s.readstates.SetLastSeen(ctx, userID, messageID)
}

// LeaveConversation snapshots the conversation's most recent entry as the
// caller's exit watermark. Membership is kept; the watermark only bounds
// later pagination.
func (s *ReadStateService) LeaveConversation(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.IsMember(userID) {
		return nil, domain.ErrUnauthorized
	}

	var leftAt int64
	if conv.MostRecentEntryID != nil {
		leftAt = *conv.MostRecentEntryID
	}
	if _, err := s.readstates.RecordLeftAt(ctx, userID, conversationID, leftAt); err != nil {
		return nil, err
	}
	return conv, nil
}
