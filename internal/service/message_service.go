package service

import (
	"context"
	"fmt"
	"strings"

	"chirper/internal/domain"
	"chirper/internal/pubsub"
)

// MessageService owns the append-only message log and its pagination. A
// successful append is published to the hub exactly once, after the store
// write commits; a failed append never publishes.
type MessageService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	readstates    domain.ReadStateRepository
	hub           *pubsub.Hub

	DefaultPageSize int
	MaxPageSize     int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	readstates domain.ReadStateRepository,
	hub *pubsub.Hub,
	defaultPageSize, maxPageSize int,
) *MessageService {
	return &MessageService{
		conversations:   conversations,
		messages:        messages,
		readstates:      readstates,
		hub:             hub,
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	}
}

const maxMessageLength = 5000

// Append validates, persists, and fans out one message. The message insert
// and the parent conversation's entry-pointer update are one atomic unit
// inside the repository.
func (s *MessageService) Append(ctx context.Context, conversationID, senderID int64, text string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text cannot be empty", domain.ErrValidation)
	}
	if len([]rune(text)) > maxMessageLength {
		return nil, fmt.Errorf("%w: message text exceeds %d characters", domain.ErrValidation, maxMessageLength)
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.IsMember(senderID) {
		return nil, domain.ErrUnauthorized
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		Data: domain.MessageData{
			Text:           text,
			SenderID:       senderID,
			ReceiverID:     receiverFor(conv, senderID),
			ConversationID: conversationID,
		},
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.hub.Publish(conversationID, msg)
	return msg, nil
}

// QueryPageInput bounds one page of a conversation's log. CursorID resumes
// after a previously returned message; LeftAtMessageID caps eligibility to
// messages created strictly after the caller's exit watermark.
type QueryPageInput struct {
	ConversationID  int64
	CursorID        *int64
	Limit           int
	LeftAtMessageID *int64
}

// QueryPage returns up to Limit messages in creation order. The effective
// lower bound is the larger of the cursor and the left-watermark; the
// caller's stored left-watermark is applied even when the request omits it.
func (s *MessageService) QueryPage(ctx context.Context, userID int64, in QueryPageInput) (*domain.MessagePage, error) {
	conv, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.IsMember(userID) {
		return nil, domain.ErrUnauthorized
	}

	limit := in.Limit
	if limit <= 0 {
		limit = s.DefaultPageSize
	}
	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		limit = s.MaxPageSize
	}

	var after int64
	if in.CursorID != nil {
		after = *in.CursorID
	}
	if in.LeftAtMessageID != nil && *in.LeftAtMessageID > after {
		after = *in.LeftAtMessageID
	}
	if stored, err := s.readstates.GetLeftAt(ctx, userID, in.ConversationID); err != nil {
		return nil, fmt.Errorf("get left watermark: %w", err)
	} else if stored != nil && stored.LeftAtMessageID > after {
		after = stored.LeftAtMessageID
	}

	msgs, hasNext, err := s.messages.ListPageAfter(ctx, in.ConversationID, after, limit)
	if err != nil {
		return nil, err
	}
	return &domain.MessagePage{Messages: msgs, HasNextPage: hasNext}, nil
}

// receiverFor resolves the counterpart of a ONE_ON_ONE message; group
// messages have no single receiver.
func receiverFor(conv *domain.Conversation, senderID int64) *int64 {
	if conv.Type != domain.ConversationOneOnOne {
		return nil
	}
	for _, id := range conv.Members {
		if id != senderID {
			r := id
			return &r
		}
	}
	return nil
}
