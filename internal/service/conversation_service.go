package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chirper/internal/domain"
)

// ConversationService owns conversation identity, membership, and invitation
// state. It is the only writer of those fields.
type ConversationService struct {
	conversations domain.ConversationRepository
	users         domain.UserRepository
}

func NewConversationService(
	conversations domain.ConversationRepository,
	users domain.UserRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		users:         users,
	}
}

// CanonicalKey returns the order-independent key for a ONE_ON_ONE pair.
func CanonicalKey(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// CreateOneOnOne starts a direct conversation between the caller and another
// user. The caller counts as having accepted; the other user stays a pending
// invitee until AcceptInvitation. At most one ONE_ON_ONE conversation exists
// per unordered pair.
func (s *ConversationService) CreateOneOnOne(ctx context.Context, authUserID, otherUserID int64) (*domain.Conversation, error) {
	if authUserID == otherUserID {
		return nil, fmt.Errorf("%w: cannot message yourself", domain.ErrValidation)
	}
	other, err := s.users.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if other == nil {
		return nil, domain.ErrNotFound
	}

	key := CanonicalKey(authUserID, otherUserID)
	existing, err := s.conversations.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find existing conversation: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	conv := &domain.Conversation{
		ConversationKey:    key,
		Type:               domain.ConversationOneOnOne,
		Members:            []int64{authUserID, otherUserID},
		AcceptedInvitation: []int64{authUserID},
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return s.conversations.GetByID(ctx, conv.ID)
}

// CreateGroup creates a conversation over the caller plus memberIDs. More
// than two distinct members makes it a GROUP_DM, otherwise ONE_ON_ONE. Group
// conversations have no invitation gating: every member may post and read
// immediately.
func (s *ConversationService) CreateGroup(ctx context.Context, authUserID int64, memberIDs []int64) (*domain.Conversation, error) {
	ids := dedupeWithCreator(authUserID, memberIDs)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: at least one other member is required", domain.ErrValidation)
	}

	conv := &domain.Conversation{
		Members:            ids,
		AcceptedInvitation: ids,
	}
	if len(ids) > 2 {
		conv.Type = domain.ConversationGroupDM
		conv.ConversationKey = uuid.New().String()
	} else {
		conv.Type = domain.ConversationOneOnOne
		conv.ConversationKey = CanonicalKey(ids[0], ids[1])
		existing, err := s.conversations.GetByKey(ctx, conv.ConversationKey)
		if err != nil {
			return nil, fmt.Errorf("find existing conversation: %w", err)
		}
		if existing != nil {
			return nil, domain.ErrAlreadyExists
		}
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return s.conversations.GetByID(ctx, conv.ID)
}

// AddMembersInput is the request for AddMembers. A nil ConversationID means
// "create a conversation for these members instead".
type AddMembersInput struct {
	ConversationID *int64
	MemberIDs      []int64
}

// AddMembers either grows an existing ONE_ON_ONE conversation or, when no
// conversation id is given, implicitly creates one following the
// single-member/multi-member branching of CreateOneOnOne/CreateGroup. The
// implicit path first looks for an existing conversation over the same member
// set and refuses to duplicate it.
func (s *ConversationService) AddMembers(ctx context.Context, authUserID int64, in AddMembersInput) (*domain.Conversation, error) {
	if len(in.MemberIDs) == 0 {
		return nil, fmt.Errorf("%w: member ids are required", domain.ErrValidation)
	}

	if in.ConversationID == nil {
		if len(in.MemberIDs) == 1 {
			return s.CreateOneOnOne(ctx, authUserID, in.MemberIDs[0])
		}
		ids := dedupeWithCreator(authUserID, in.MemberIDs)
		existing, err := s.conversations.FindByExactMembers(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("find existing conversation: %w", err)
		}
		if existing != nil {
			return nil, domain.ErrAlreadyExists
		}
		return s.CreateGroup(ctx, authUserID, in.MemberIDs)
	}

	conv, err := s.conversations.GetByID(ctx, *in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if conv.Type != domain.ConversationOneOnOne {
		return nil, domain.ErrInvalidConversationType
	}
	if !conv.IsMember(authUserID) {
		return nil, domain.ErrUnauthorized
	}

	var newIDs []int64
	for _, id := range in.MemberIDs {
		if !conv.IsMember(id) {
			newIDs = append(newIDs, id)
		}
	}
	if len(newIDs) > 0 {
		if err := s.conversations.AddMembers(ctx, conv.ID, newIDs); err != nil {
			return nil, err
		}
	}
	return s.conversations.GetByID(ctx, conv.ID)
}

// AcceptInvitation confirms the caller's participation in a conversation
// they were invited to.
func (s *ConversationService) AcceptInvitation(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
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
	if conv.HasAccepted(userID) {
		return nil, domain.ErrAlreadyAccepted
	}
	if err := s.conversations.AppendAccepted(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.conversations.GetByID(ctx, conversationID)
}

// GetForUser returns a conversation after checking the caller is a member.
func (s *ConversationService) GetForUser(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
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
	return conv, nil
}

// dedupeWithCreator returns creatorID followed by the distinct ids of the
// remaining members, preserving input order.
func dedupeWithCreator(creatorID int64, memberIDs []int64) []int64 {
	ids := make([]int64, 0, len(memberIDs)+1)
	seen := map[int64]struct{}{creatorID: {}}
	ids = append(ids, creatorID)
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
